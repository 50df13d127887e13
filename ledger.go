package rewards

import (
	"context"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/store"
)

// ──────────────────────────────────────────────────
// Ledger postings
// ──────────────────────────────────────────────────

// PostEntry appends one ledger entry and moves the account balance by amount
// in the same transaction. Amount may be negative; sufficiency checks belong
// to the caller (e.g. a redemption flow debiting with entry.TypeRedemptionDebit).
func (e *Engine) PostEntry(
	ctx context.Context,
	accountID id.AccountID,
	amount int64,
	typ entry.Type,
	description string,
	relatedID id.AnyID,
) (*entry.Entry, error) {
	if typ == "" {
		return nil, invalid("type", "entry type is required", ErrInvalidInput)
	}

	ctx = context.WithoutCancel(ctx)

	var posted *entry.Entry
	err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		posted, err = e.post(ctx, tx, accountID, amount, typ, description, relatedID)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, "post entry", err, "account_id", accountID.String())
	}

	e.plugins.EmitEntryPosted(ctx, posted)
	return posted, nil
}

// post writes an entry and its balance increment on tx. Callers own the
// enclosing transaction.
func (e *Engine) post(
	ctx context.Context,
	tx store.Store,
	accountID id.AccountID,
	amount int64,
	typ entry.Type,
	description string,
	relatedID id.AnyID,
) (*entry.Entry, error) {
	en := &entry.Entry{
		ID:          id.NewEntryID(),
		AccountID:   accountID,
		Amount:      amount,
		Type:        typ,
		Description: description,
		RelatedID:   relatedID,
		CreatedAt:   e.now().UTC(),
	}
	if err := tx.CreateEntry(ctx, en); err != nil {
		return nil, err
	}
	if err := tx.IncrementBalance(ctx, accountID, amount); err != nil {
		return nil, err
	}
	return en, nil
}

// LedgerHistory returns the account's entries, newest first.
func (e *Engine) LedgerHistory(ctx context.Context, accountID id.AccountID, opts entry.ListOpts) ([]*entry.Entry, error) {
	entries, err := e.store.ListEntries(ctx, accountID, opts)
	if err != nil {
		return nil, StorageError("ledger history", err)
	}
	return entries, nil
}

// Balance returns the account's cached coin balance.
func (e *Engine) Balance(ctx context.Context, accountID id.AccountID) (int64, error) {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, StorageError("balance", err)
	}
	return a.Balance, nil
}

// Reconciliation compares an account's cached balance with its ledger.
type Reconciliation struct {
	AccountID  id.AccountID `json:"account_id"`
	Cached     int64        `json:"cached"`
	Ledger     int64        `json:"ledger"`
	Entries    int64        `json:"entries"`
	Consistent bool         `json:"consistent"`
}

// Reconcile reads the cached balance and the entry sum in one transaction.
func (e *Engine) Reconcile(ctx context.Context, accountID id.AccountID) (*Reconciliation, error) {
	r := &Reconciliation{AccountID: accountID}
	err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		a, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		r.Cached = a.Balance
		if r.Ledger, err = tx.SumEntries(ctx, accountID); err != nil {
			return err
		}
		r.Entries, err = tx.CountEntries(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, StorageError("reconcile", err)
	}

	r.Consistent = r.Cached == r.Ledger
	if !r.Consistent {
		e.logger.Error("balance drift detected",
			"account_id", accountID.String(),
			"cached", r.Cached,
			"ledger", r.Ledger,
		)
	}
	return r, nil
}
