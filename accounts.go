package rewards

import (
	"context"
	"strings"

	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/types"
)

// ──────────────────────────────────────────────────
// Account management
// ──────────────────────────────────────────────────

// CreateAccount registers a participant. The balance always starts at zero
// and the store affiliation is only ever set by an approved link.
func (e *Engine) CreateAccount(ctx context.Context, a *account.Account) error {
	a.Document = strings.TrimSpace(a.Document)
	a.Name = strings.TrimSpace(a.Name)

	if err := e.validate.Struct(a); err != nil {
		return invalid("account", err.Error(), ErrInvalidInput)
	}
	if !a.Role.Valid() {
		return invalid("role", "unknown role "+string(a.Role), ErrInvalidRole)
	}

	if a.ID.IsNil() {
		a.ID = id.NewAccountID()
	}
	a.Entity = types.NewEntityAt(e.now().UTC())
	a.Balance = 0
	a.StoreID = id.Nil

	if err := e.store.CreateAccount(ctx, a); err != nil {
		return StorageError("create account", err)
	}

	e.logger.Debug("account created",
		"account_id", a.ID.String(),
		"role", a.Role,
	)
	return nil
}

// GetAccount retrieves an account by ID.
func (e *Engine) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, StorageError("get account", err)
	}
	return a, nil
}

// GetAccountByDocument retrieves an account by its document identifier.
func (e *Engine) GetAccountByDocument(ctx context.Context, document string) (*account.Account, error) {
	a, err := e.store.GetAccountByDocument(ctx, strings.TrimSpace(document))
	if err != nil {
		return nil, StorageError("get account by document", err)
	}
	return a, nil
}

// DeleteAccount removes an account that no link, invoice or ledger entry
// refers to. Ledger history is append-only, so any account that ever earned
// or spent coins stays.
func (e *Engine) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}

		for _, opts := range []link.ListOpts{{SellerID: accountID}, {StoreID: accountID}} {
			n, err := tx.CountLinks(ctx, opts)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrAccountInUse
			}
		}

		entries, err := tx.CountEntries(ctx, accountID)
		if err != nil {
			return err
		}
		invoices, err := tx.CountInvoices(ctx, []id.AccountID{accountID}, "")
		if err != nil {
			return err
		}
		if entries > 0 || invoices > 0 {
			return ErrAccountInUse
		}

		return tx.DeleteAccount(ctx, accountID)
	})
	if err != nil {
		return StorageError("delete account", err)
	}

	e.logger.Debug("account deleted", "account_id", accountID.String())
	return nil
}

// Statement is a point-in-time summary of one account.
type Statement struct {
	Account  *account.Account `json:"account"`
	Approved int64            `json:"approved_invoices"`
	Standby  int64            `json:"standby_invoices"`
	Recent   []*entry.Entry   `json:"recent_entries"`
}

// AccountStatement returns the account with its invoice counts and latest
// limit entries, all read in one transaction.
func (e *Engine) AccountStatement(ctx context.Context, accountID id.AccountID, limit int) (*Statement, error) {
	st := &Statement{}
	err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if st.Account, err = tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		owner := []id.AccountID{accountID}
		if st.Approved, err = tx.CountInvoices(ctx, owner, invoice.StatusApproved); err != nil {
			return err
		}
		if st.Standby, err = tx.CountInvoices(ctx, owner, invoice.StatusStandby); err != nil {
			return err
		}
		st.Recent, err = tx.ListEntries(ctx, accountID, entry.ListOpts{Limit: limit})
		return err
	})
	if err != nil {
		return nil, StorageError("account statement", err)
	}
	return st, nil
}
