// Package plugin provides an extensible plugin system for the rewards engine.
// Plugins can hook into settlement lifecycle events to extend functionality.
// Hooks run after the owning transaction committed; a failing hook is logged
// and never undoes a settlement.
package plugin

import (
	"context"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceSubmitted is called once a receipt was accepted, in either status.
type OnInvoiceSubmitted interface {
	Plugin
	OnInvoiceSubmitted(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceSettled is called when an invoice reaches approved together with
// the postings that distributed its coins.
type OnInvoiceSettled interface {
	Plugin
	OnInvoiceSettled(ctx context.Context, inv *invoice.Invoice, postings []*entry.Entry) error
}

// OnStandbyReplayed is called after a replay of a seller's standby invoices.
type OnStandbyReplayed interface {
	Plugin
	OnStandbyReplayed(ctx context.Context, l *link.Link, settled int) error
}

// OnSettlementFailed is called when a settlement unit rolled back.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, op string, err error) error
}

// ──────────────────────────────────────────────────
// Link hooks
// ──────────────────────────────────────────────────

// OnLinkRequested is called when a seller asks to join a store.
type OnLinkRequested interface {
	Plugin
	OnLinkRequested(ctx context.Context, l *link.Link) error
}

// OnLinkResponded is called after a store approved or rejected a link.
type OnLinkResponded interface {
	Plugin
	OnLinkResponded(ctx context.Context, l *link.Link) error
}

// OnLinkPercentageChanged is called after a store changed the seller share.
type OnLinkPercentageChanged interface {
	Plugin
	OnLinkPercentageChanged(ctx context.Context, l *link.Link, prior int) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryPosted is called for every committed ledger entry.
type OnEntryPosted interface {
	Plugin
	OnEntryPosted(ctx context.Context, e *entry.Entry) error
}
