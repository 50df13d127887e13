// Package audithook bridges rewards lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnInvoiceSubmitted      = (*Extension)(nil)
	_ plugin.OnInvoiceSettled        = (*Extension)(nil)
	_ plugin.OnStandbyReplayed       = (*Extension)(nil)
	_ plugin.OnSettlementFailed      = (*Extension)(nil)
	_ plugin.OnLinkRequested         = (*Extension)(nil)
	_ plugin.OnLinkResponded         = (*Extension)(nil)
	_ plugin.OnLinkPercentageChanged = (*Extension)(nil)
	_ plugin.OnEntryPosted           = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges rewards lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnInvoiceSubmitted implements plugin.OnInvoiceSubmitted. Receipts held in
// standby are recorded under their own action.
func (e *Extension) OnInvoiceSubmitted(ctx context.Context, inv *invoice.Invoice) error {
	action := ActionInvoiceSubmitted
	if inv.Status == invoice.StatusStandby {
		action = ActionInvoiceStandby
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategorySettlement, nil,
		"owner_id", inv.OwnerID.String(),
		"issuer", inv.IssuerID,
		"coins", inv.Coins,
		"status", string(inv.Status),
	)
}

// OnInvoiceSettled implements plugin.OnInvoiceSettled.
func (e *Extension) OnInvoiceSettled(ctx context.Context, inv *invoice.Invoice, postings []*entry.Entry) error {
	return e.record(ctx, ActionInvoiceSettled, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategorySettlement, nil,
		"owner_id", inv.OwnerID.String(),
		"coins", inv.Coins,
		"postings", len(postings),
	)
}

// OnStandbyReplayed implements plugin.OnStandbyReplayed.
func (e *Extension) OnStandbyReplayed(ctx context.Context, l *link.Link, settled int) error {
	return e.record(ctx, ActionStandbyReplayed, SeverityInfo, OutcomeSuccess,
		ResourceLink, l.ID.String(), CategorySettlement, nil,
		"seller_id", l.SellerID.String(),
		"store_id", l.StoreID.String(),
		"percentage", l.Percentage,
		"settled", settled,
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (e *Extension) OnSettlementFailed(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionSettlementFailed, SeverityCritical, OutcomeFailure,
		ResourceInvoice, "", CategorySettlement, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Link hooks
// ──────────────────────────────────────────────────

// OnLinkRequested implements plugin.OnLinkRequested.
func (e *Extension) OnLinkRequested(ctx context.Context, l *link.Link) error {
	return e.record(ctx, ActionLinkRequested, SeverityInfo, OutcomeSuccess,
		ResourceLink, l.ID.String(), CategoryAffiliation, nil,
		"seller_id", l.SellerID.String(),
		"store_id", l.StoreID.String(),
	)
}

// OnLinkResponded implements plugin.OnLinkResponded.
func (e *Extension) OnLinkResponded(ctx context.Context, l *link.Link) error {
	action := ActionLinkApproved
	if l.Status == link.StatusRejected {
		action = ActionLinkRejected
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceLink, l.ID.String(), CategoryAffiliation, nil,
		"seller_id", l.SellerID.String(),
		"store_id", l.StoreID.String(),
	)
}

// OnLinkPercentageChanged implements plugin.OnLinkPercentageChanged.
func (e *Extension) OnLinkPercentageChanged(ctx context.Context, l *link.Link, prior int) error {
	return e.record(ctx, ActionLinkPercentageChanged, SeverityWarning, OutcomeSuccess,
		ResourceLink, l.ID.String(), CategoryAffiliation, nil,
		"seller_id", l.SellerID.String(),
		"store_id", l.StoreID.String(),
		"prior", prior,
		"percentage", l.Percentage,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryPosted implements plugin.OnEntryPosted.
func (e *Extension) OnEntryPosted(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryPosted, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryLedger, nil,
		"account_id", en.AccountID.String(),
		"type", string(en.Type),
		"amount", strconv.FormatInt(en.Amount, 10),
		"related_id", en.RelatedID.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
