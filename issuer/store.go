package issuer

import (
	"context"

	"github.com/xraph/rewards/id"
)

type Store interface {
	CreateIssuer(ctx context.Context, iss *Issuer) error
	GetIssuer(ctx context.Context, issuerID id.IssuerID) (*Issuer, error)
	GetIssuerByCode(ctx context.Context, code string) (*Issuer, error)
	ListIssuers(ctx context.Context, opts ListOpts) ([]*Issuer, error)
	SetIssuerActive(ctx context.Context, issuerID id.IssuerID, active bool) error
	DeleteIssuer(ctx context.Context, issuerID id.IssuerID) error
}

type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Checker answers whether receipts from an issuer are accepted.
type Checker interface {
	IsAllowed(ctx context.Context, code string) (bool, error)
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context, code string) (bool, error)

// IsAllowed implements Checker.
func (f CheckerFunc) IsAllowed(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}
