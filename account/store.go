package account

import (
	"context"

	"github.com/xraph/rewards/id"
)

type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*Account, error)
	GetAccountByDocument(ctx context.Context, document string) (*Account, error)
	SetAccountStore(ctx context.Context, sellerID, storeID id.AccountID) error
	IncrementBalance(ctx context.Context, accountID id.AccountID, delta int64) error
	DeleteAccount(ctx context.Context, accountID id.AccountID) error
}
