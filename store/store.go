package store

import (
	"context"
	"time"

	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
)

// Store is the unified storage interface for all rewards entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// so every backend is checked against one list.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	GetAccountByDocument(ctx context.Context, document string) (*account.Account, error)
	SetAccountStore(ctx context.Context, sellerID, storeID id.AccountID) error
	IncrementBalance(ctx context.Context, accountID id.AccountID, delta int64) error
	DeleteAccount(ctx context.Context, accountID id.AccountID) error

	// Ledger entry methods
	CreateEntry(ctx context.Context, e *entry.Entry) error
	ListEntries(ctx context.Context, accountID id.AccountID, opts entry.ListOpts) ([]*entry.Entry, error)
	SumEntries(ctx context.Context, accountID id.AccountID) (int64, error)
	CountEntries(ctx context.Context, accountID id.AccountID) (int64, error)

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, ownerID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	CountInvoices(ctx context.Context, ownerIDs []id.AccountID, status invoice.Status) (int64, error)
	MarkInvoiceApproved(ctx context.Context, invID id.InvoiceID, processedAt time.Time) error

	// Link methods
	CreateLink(ctx context.Context, l *link.Link) error
	GetLink(ctx context.Context, linkID id.LinkID) (*link.Link, error)
	FindSellerLink(ctx context.Context, sellerID id.AccountID, status link.Status) (*link.Link, error)
	ListLinks(ctx context.Context, opts link.ListOpts) ([]*link.Link, error)
	CountLinks(ctx context.Context, opts link.ListOpts) (int64, error)
	TransitionLink(ctx context.Context, linkID id.LinkID, from, to link.Status) error
	SetLinkPercentage(ctx context.Context, linkID id.LinkID, prior, next int) error

	// Issuer allow-list methods
	CreateIssuer(ctx context.Context, iss *issuer.Issuer) error
	GetIssuer(ctx context.Context, issuerID id.IssuerID) (*issuer.Issuer, error)
	GetIssuerByCode(ctx context.Context, code string) (*issuer.Issuer, error)
	ListIssuers(ctx context.Context, opts issuer.ListOpts) ([]*issuer.Issuer, error)
	SetIssuerActive(ctx context.Context, issuerID id.IssuerID, active bool) error
	DeleteIssuer(ctx context.Context, issuerID id.IssuerID) error

	// Atomic runs fn inside one storage transaction. The Store handed to fn is
	// bound to that transaction and fn must use it, together with the ctx it
	// receives, for every read and write. A nil return commits; any error rolls
	// everything back. Calling Atomic on a transaction-bound Store joins the
	// outer transaction.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store covers every entity store.
var (
	_ account.Store = (Store)(nil)
	_ entry.Store   = (Store)(nil)
	_ invoice.Store = (Store)(nil)
	_ link.Store    = (Store)(nil)
	_ issuer.Store  = (Store)(nil)
)
