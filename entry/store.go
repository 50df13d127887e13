package entry

import (
	"context"

	"github.com/xraph/rewards/id"
)

type Store interface {
	CreateEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Entry, error)
	SumEntries(ctx context.Context, accountID id.AccountID) (int64, error)
	CountEntries(ctx context.Context, accountID id.AccountID) (int64, error)
}

// ListOpts pages an account history. Results are always newest first.
type ListOpts struct {
	Type   Type
	Limit  int
	Offset int
}
