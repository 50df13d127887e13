package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/types"
)

// payout is the classification of a receipt at submission time.
type payout struct {
	standby bool
	storeID id.AccountID // nil: the submitter keeps the whole reward
	pct     int
}

// ──────────────────────────────────────────────────
// Invoice settlement
// ──────────────────────────────────────────────────

// SubmitInvoice accepts a receipt for submitterID. The invoice is created in
// standby when the submitter's store split is unresolved (a pending link or an
// approved link at 0%); otherwise its coins are posted in the same transaction.
func (e *Engine) SubmitInvoice(ctx context.Context, submitterID id.AccountID, accessKey string) (*invoice.Invoice, error) {
	accessKey = strings.TrimSpace(accessKey)
	if err := e.validate.Var(accessKey, e.accessKeyTag); err != nil {
		return nil, invalid("access_key",
			fmt.Sprintf("must be exactly %d digits", e.accessKeyLength), ErrInvalidAccessKey)
	}

	issuerCode, _ := issuer.FromAccessKey(accessKey)
	if e.enforceIssuers {
		if err := e.checkIssuer(ctx, issuerCode); err != nil {
			return nil, err
		}
	}

	// A started settlement runs to commit or rollback.
	ctx = context.WithoutCancel(ctx)

	now := e.now().UTC()
	inv := &invoice.Invoice{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewInvoiceID(),
		OwnerID:   submitterID,
		AccessKey: accessKey,
		IssuerID:  issuerCode,
		Coins:     e.rewardPerInvoice,
	}

	var postings []*entry.Entry
	err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetAccount(ctx, submitterID); err != nil {
			return err
		}

		p, err := classify(ctx, tx, submitterID)
		if err != nil {
			return err
		}

		if p.standby {
			inv.Status = invoice.StatusStandby
			inv.ProcessedAt = nil
			return tx.CreateInvoice(ctx, inv)
		}

		inv.Status = invoice.StatusApproved
		inv.ProcessedAt = &now
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		postings, err = e.distribute(ctx, tx, inv, submitterID, p.storeID, p.pct, false)
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, "submit invoice", err,
			"account_id", submitterID.String(),
			"access_key", accessKey,
		)
	}

	e.logger.Info("invoice submitted",
		"invoice_id", inv.ID.String(),
		"account_id", submitterID.String(),
		"status", inv.Status,
		"coins", inv.Coins,
		"postings", len(postings),
	)

	e.plugins.EmitInvoiceSubmitted(ctx, inv)
	if inv.Status == invoice.StatusApproved {
		e.plugins.EmitInvoiceSettled(ctx, inv, postings)
		e.plugins.EmitEntryPosted(ctx, postings...)
	}
	return inv, nil
}

// classify evaluates the rules in order: a pending link or an approved link
// at 0% holds the receipt; an approved link above 0% splits; no link pays the
// submitter in full.
func classify(ctx context.Context, tx store.Store, sellerID id.AccountID) (payout, error) {
	_, err := tx.FindSellerLink(ctx, sellerID, link.StatusPending)
	switch {
	case err == nil:
		return payout{standby: true}, nil
	case !errors.Is(err, ErrLinkNotFound):
		return payout{}, err
	}

	approved, err := tx.FindSellerLink(ctx, sellerID, link.StatusApproved)
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return payout{pct: link.MaxPercentage}, nil
	case err != nil:
		return payout{}, err
	case approved.HoldsStandby():
		return payout{standby: true}, nil
	}
	return payout{storeID: approved.StoreID, pct: approved.Percentage}, nil
}

// distribute posts the coins of an approved invoice. Zero shares produce no
// entry. Any posting error aborts the caller's transaction.
func (e *Engine) distribute(
	ctx context.Context,
	tx store.Store,
	inv *invoice.Invoice,
	sellerID, storeID id.AccountID,
	pct int,
	released bool,
) ([]*entry.Entry, error) {
	suffix := ""
	if released {
		suffix = " (released from standby)"
	}

	type share struct {
		account id.AccountID
		amount  int64
		typ     entry.Type
		desc    string
	}

	var shares []share
	if storeID.IsNil() {
		shares = []share{{
			sellerID, inv.Coins, entry.TypeInvoiceReward,
			"reward for receipt " + inv.AccessKey + suffix,
		}}
	} else {
		split := SplitReward(inv.Coins, pct)
		shares = []share{
			{
				sellerID, split.Seller, entry.TypeInvoiceReward,
				fmt.Sprintf("%d%% seller share of receipt %s%s", split.Percentage, inv.AccessKey, suffix),
			},
			{
				storeID, split.Store, entry.TypeInvoiceRewardCompany,
				fmt.Sprintf("%d%% store share of receipt %s%s", 100-split.Percentage, inv.AccessKey, suffix),
			},
		}
	}

	postings := make([]*entry.Entry, 0, len(shares))
	for _, s := range shares {
		if s.amount == 0 {
			continue
		}
		en, err := e.post(ctx, tx, s.account, s.amount, s.typ, s.desc, inv.ID)
		if err != nil {
			return nil, err
		}
		postings = append(postings, en)
	}
	return postings, nil
}

// replayStandby settles every standby invoice of sellerID with the given
// split, one transaction per invoice. It is a no-op unless pct is in
// (0,100]. Invoices already settled by a concurrent replay are skipped.
func (e *Engine) replayStandby(ctx context.Context, l *link.Link) (int, error) {
	sellerID, storeID, pct := l.SellerID, l.StoreID, l.Percentage
	if pct <= link.MinPercentage || pct > link.MaxPercentage {
		return 0, nil
	}

	unlock, err := e.lockKey(ctx, "replay", sellerID.String())
	if err != nil {
		return 0, err
	}
	defer unlock()

	standby, err := e.store.ListInvoices(ctx, sellerID, invoice.ListOpts{
		Status:    invoice.StatusStandby,
		Ascending: true,
	})
	if err != nil {
		return 0, StorageError("list standby invoices", err)
	}

	settled := 0
	for _, pending := range standby {
		inv := *pending
		var postings []*entry.Entry

		err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
			now := e.now().UTC()
			if err := tx.MarkInvoiceApproved(ctx, inv.ID, now); err != nil {
				return err
			}
			inv.Status = invoice.StatusApproved
			inv.ProcessedAt = &now
			inv.TouchAt(now)

			var err error
			postings, err = e.distribute(ctx, tx, &inv, sellerID, storeID, pct, true)
			return err
		})
		if errors.Is(err, ErrInvoiceNotStandby) {
			continue
		}
		if err != nil {
			e.plugins.EmitStandbyReplayed(ctx, l, settled)
			return settled, e.fail(ctx, "replay standby invoice", err,
				"invoice_id", inv.ID.String(),
				"seller_id", sellerID.String(),
			)
		}

		settled++
		e.plugins.EmitInvoiceSettled(ctx, &inv, postings)
		e.plugins.EmitEntryPosted(ctx, postings...)
	}

	e.logger.Info("standby invoices replayed",
		"seller_id", sellerID.String(),
		"store_id", storeID.String(),
		"percentage", pct,
		"settled", settled,
		"found", len(standby),
	)
	e.plugins.EmitStandbyReplayed(ctx, l, settled)
	return settled, nil
}

// ListInvoices returns the invoices submitted by accountID, newest first.
func (e *Engine) ListInvoices(ctx context.Context, accountID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	invoices, err := e.store.ListInvoices(ctx, accountID, opts)
	if err != nil {
		return nil, StorageError("list invoices", err)
	}
	return invoices, nil
}

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, StorageError("get invoice", err)
	}
	return inv, nil
}

// CountStandbyInvoices counts the standby invoices of every seller whose link
// to storeID currently holds receipts (pending, or approved at 0%).
func (e *Engine) CountStandbyInvoices(ctx context.Context, storeID id.AccountID) (int64, error) {
	links, err := e.store.ListLinks(ctx, link.ListOpts{
		StoreID:  storeID,
		Statuses: []link.Status{link.StatusPending, link.StatusApproved},
	})
	if err != nil {
		return 0, StorageError("list store links", err)
	}

	sellers := make([]id.AccountID, 0, len(links))
	for _, l := range links {
		if l.HoldsStandby() {
			sellers = append(sellers, l.SellerID)
		}
	}
	if len(sellers) == 0 {
		return 0, nil
	}

	n, err := e.store.CountInvoices(ctx, sellers, invoice.StatusStandby)
	if err != nil {
		return 0, StorageError("count standby invoices", err)
	}
	return n, nil
}

// ReplayError reports a standby replay that stopped early. The link change
// that triggered it is committed; Settled invoices were distributed before
// the failure and the rest stay in standby.
type ReplayError struct {
	LinkID  id.LinkID
	Settled int
	Err     error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("rewards: standby replay for link %s stopped after %d invoices: %v",
		e.LinkID, e.Settled, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }
