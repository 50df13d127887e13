package invoice

import (
	"context"
	"time"

	"github.com/xraph/rewards/id"
)

type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*Invoice, error)
	ListInvoices(ctx context.Context, ownerID id.AccountID, opts ListOpts) ([]*Invoice, error)
	CountInvoices(ctx context.Context, ownerIDs []id.AccountID, status Status) (int64, error)
	// MarkInvoiceApproved flips a standby invoice to approved. It fails with
	// rewards.ErrInvoiceNotStandby when the invoice is no longer standby.
	MarkInvoiceApproved(ctx context.Context, invID id.InvoiceID, processedAt time.Time) error
}

// ListOpts filters invoice listings. Results are newest first unless
// Ascending is set.
type ListOpts struct {
	Status    Status
	Ascending bool
	Limit     int
	Offset    int
}
