package link

import (
	"context"

	"github.com/xraph/rewards/id"
)

type Store interface {
	CreateLink(ctx context.Context, l *Link) error
	GetLink(ctx context.Context, linkID id.LinkID) (*Link, error)
	// FindSellerLink returns the seller's first link in the given status.
	FindSellerLink(ctx context.Context, sellerID id.AccountID, status Status) (*Link, error)
	ListLinks(ctx context.Context, opts ListOpts) ([]*Link, error)
	CountLinks(ctx context.Context, opts ListOpts) (int64, error)
	// TransitionLink moves a link from one status to another. It fails with
	// rewards.ErrLinkModified when the stored status is no longer from.
	TransitionLink(ctx context.Context, linkID id.LinkID, from, to Status) error
	// SetLinkPercentage writes a new percentage if the stored value still
	// equals prior, failing with rewards.ErrLinkModified otherwise.
	SetLinkPercentage(ctx context.Context, linkID id.LinkID, prior, next int) error
}

// ListOpts filters link listings. Zero-valued fields match everything.
type ListOpts struct {
	SellerID id.AccountID
	StoreID  id.AccountID
	Statuses []Status
	Limit    int
	Offset   int
}

// Matches reports whether l satisfies the filter.
func (o ListOpts) Matches(l *Link) bool {
	if !o.SellerID.IsNil() && l.SellerID.String() != o.SellerID.String() {
		return false
	}
	if !o.StoreID.IsNil() && l.StoreID.String() != o.StoreID.String() {
		return false
	}
	if len(o.Statuses) == 0 {
		return true
	}
	for _, s := range o.Statuses {
		if l.Status == s {
			return true
		}
	}
	return false
}
