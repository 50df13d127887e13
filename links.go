package rewards

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/types"
)

// ──────────────────────────────────────────────────
// Link state machine
// ──────────────────────────────────────────────────

// RequestLink creates a pending link from sellerID to the store registered
// under storeDocument. A pair that already has a link, in any status, cannot
// be requested again, and a seller with an approved link gets
// ErrSellerAlreadyLinked.
func (e *Engine) RequestLink(ctx context.Context, sellerID id.AccountID, storeDocument string) (*link.Link, error) {
	storeDocument = strings.TrimSpace(storeDocument)
	if storeDocument == "" {
		return nil, invalid("store_document", "store document is required", ErrInvalidInput)
	}

	ctx = context.WithoutCancel(ctx)

	var l *link.Link
	err := e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetAccount(ctx, sellerID); err != nil {
			return err
		}

		storeAcct, err := tx.GetAccountByDocument(ctx, storeDocument)
		if err != nil {
			return err
		}
		if storeAcct.Role != account.RoleStore {
			return ErrInvalidRole
		}
		if storeAcct.ID.String() == sellerID.String() {
			return invalid("store_document", "an account cannot link to itself", ErrInvalidInput)
		}

		// A seller already settling with another store cannot queue a link.
		approved, err := tx.FindSellerLink(ctx, sellerID, link.StatusApproved)
		switch {
		case err == nil && approved.StoreID.String() != storeAcct.ID.String():
			return ErrSellerAlreadyLinked
		case err != nil && !errors.Is(err, ErrLinkNotFound):
			return err
		}

		l = &link.Link{
			Entity:   types.NewEntityAt(e.now().UTC()),
			ID:       id.NewLinkID(),
			SellerID: sellerID,
			StoreID:  storeAcct.ID,
			Status:   link.StatusPending,
		}
		return tx.CreateLink(ctx, l)
	})
	if err != nil {
		return nil, e.fail(ctx, "request link", err,
			"seller_id", sellerID.String(),
			"store_document", storeDocument,
		)
	}

	e.logger.Info("link requested",
		"link_id", l.ID.String(),
		"seller_id", sellerID.String(),
		"store_id", l.StoreID.String(),
	)
	e.plugins.EmitLinkRequested(ctx, l)
	return l, nil
}

// RespondToLink approves or rejects a pending link on behalf of storeID.
// Approval also moves the seller's store affiliation in the same transaction.
// If the approved link already carries a percentage the seller's standby
// invoices are settled before returning; a replay failure is reported as a
// *ReplayError alongside the committed link.
func (e *Engine) RespondToLink(ctx context.Context, linkID id.LinkID, storeID id.AccountID, approve bool) (*link.Link, error) {
	unlock, err := e.lockKey(ctx, "link", linkID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	next := link.StatusRejected
	if approve {
		next = link.StatusApproved
	}

	var l *link.Link
	err = e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		l, err = tx.GetLink(ctx, linkID)
		if err != nil {
			return err
		}
		if l.StoreID.String() != storeID.String() {
			return ErrForbidden
		}
		if !l.Status.CanTransition(next) {
			return ErrInvalidLinkState
		}

		if err := tx.TransitionLink(ctx, l.ID, l.Status, next); err != nil {
			return err
		}
		l.Status = next
		l.TouchAt(e.now().UTC())

		if approve {
			return tx.SetAccountStore(ctx, l.SellerID, l.StoreID)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "respond to link", err,
			"link_id", linkID.String(),
			"store_id", storeID.String(),
			"approve", approve,
		)
	}

	e.logger.Info("link responded",
		"link_id", l.ID.String(),
		"seller_id", l.SellerID.String(),
		"status", l.Status,
		"percentage", l.Percentage,
	)
	e.plugins.EmitLinkResponded(ctx, l)

	if l.Funds(link.StatePending) {
		if _, err := e.settleLink(ctx, l); err != nil {
			return l, err
		}
	}
	return l, nil
}

// UpdateLinkPercentage sets the seller's share on an approved link. Moving
// the percentage off zero settles the seller's standby invoices; any later
// change only affects future invoices.
func (e *Engine) UpdateLinkPercentage(ctx context.Context, linkID id.LinkID, storeID id.AccountID, percentage int) (*link.Link, error) {
	if err := e.validate.Var(percentage, "min=0,max=100"); err != nil {
		return nil, invalid("percentage", "must be between 0 and 100", ErrPercentageOutOfRange)
	}

	unlock, err := e.lockKey(ctx, "link", linkID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	var (
		l     *link.Link
		prior link.State
		old   int
	)
	err = e.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		l, err = tx.GetLink(ctx, linkID)
		if err != nil {
			return err
		}
		if l.StoreID.String() != storeID.String() {
			return ErrForbidden
		}
		if l.Status != link.StatusApproved {
			return ErrInvalidLinkState
		}

		prior, old = l.State(), l.Percentage
		if err := tx.SetLinkPercentage(ctx, l.ID, old, percentage); err != nil {
			return err
		}
		l.Percentage = percentage
		l.TouchAt(e.now().UTC())
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "update link percentage", err,
			"link_id", linkID.String(),
			"store_id", storeID.String(),
			"percentage", percentage,
		)
	}

	e.logger.Info("link percentage updated",
		"link_id", l.ID.String(),
		"seller_id", l.SellerID.String(),
		"prior", old,
		"percentage", percentage,
	)
	e.plugins.EmitLinkPercentageChanged(ctx, l, old)

	if l.Funds(prior) {
		if _, err := e.settleLink(ctx, l); err != nil {
			return l, err
		}
	}
	return l, nil
}

// SettleStandby re-runs the standby replay of an approved, funded link. It
// recovers invoices left in standby by a replay that stopped early and is a
// no-op when nothing is pending.
func (e *Engine) SettleStandby(ctx context.Context, linkID id.LinkID, storeID id.AccountID) (int, error) {
	unlock, err := e.lockKey(ctx, "link", linkID.String())
	if err != nil {
		return 0, err
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	l, err := e.store.GetLink(ctx, linkID)
	if err != nil {
		return 0, StorageError("get link", err)
	}
	if l.StoreID.String() != storeID.String() {
		return 0, ErrForbidden
	}
	if l.State() != link.StateApprovedFunded {
		return 0, ErrInvalidLinkState
	}
	return e.settleLink(ctx, l)
}

// settleLink replays the seller's standby invoices against l and wraps a
// partial failure in a ReplayError.
func (e *Engine) settleLink(ctx context.Context, l *link.Link) (int, error) {
	settled, err := e.replayStandby(ctx, l)
	if err != nil {
		return settled, &ReplayError{LinkID: l.ID, Settled: settled, Err: err}
	}
	return settled, nil
}

// ──────────────────────────────────────────────────
// Link views
// ──────────────────────────────────────────────────

// GetLink retrieves a link by ID.
func (e *Engine) GetLink(ctx context.Context, linkID id.LinkID) (*link.Link, error) {
	l, err := e.store.GetLink(ctx, linkID)
	if err != nil {
		return nil, StorageError("get link", err)
	}
	return l, nil
}

// ListLinks returns links matching opts, newest first.
func (e *Engine) ListLinks(ctx context.Context, opts link.ListOpts) ([]*link.Link, error) {
	links, err := e.store.ListLinks(ctx, opts)
	if err != nil {
		return nil, StorageError("list links", err)
	}
	return links, nil
}

// CountPendingLinks counts the link requests awaiting storeID's response.
func (e *Engine) CountPendingLinks(ctx context.Context, storeID id.AccountID) (int64, error) {
	n, err := e.store.CountLinks(ctx, link.ListOpts{
		StoreID:  storeID,
		Statuses: []link.Status{link.StatusPending},
	})
	if err != nil {
		return 0, StorageError("count pending links", err)
	}
	return n, nil
}

// PendingLinks lists the link requests awaiting storeID's response.
func (e *Engine) PendingLinks(ctx context.Context, storeID id.AccountID) ([]*link.Link, error) {
	return e.ListLinks(ctx, link.ListOpts{
		StoreID:  storeID,
		Statuses: []link.Status{link.StatusPending},
	})
}

// ApprovedLink returns the seller's approved link, or ErrLinkNotFound.
func (e *Engine) ApprovedLink(ctx context.Context, sellerID id.AccountID) (*link.Link, error) {
	l, err := e.store.FindSellerLink(ctx, sellerID, link.StatusApproved)
	if err != nil {
		return nil, StorageError("approved link", err)
	}
	return l, nil
}

// LinkSummary is one link with the number of invoices its seller has
// waiting in standby.
type LinkSummary struct {
	Link            *link.Link `json:"link"`
	StandbyInvoices int64      `json:"standby_invoices"`
}

// StoreLinks lists every link of storeID, newest first, with each seller's
// standby invoice count.
func (e *Engine) StoreLinks(ctx context.Context, storeID id.AccountID) ([]LinkSummary, error) {
	return e.linkSummaries(ctx, link.ListOpts{StoreID: storeID})
}

// SellerLinks lists every link sellerID has requested, newest first, with
// the seller's standby invoice count on each.
func (e *Engine) SellerLinks(ctx context.Context, sellerID id.AccountID) ([]LinkSummary, error) {
	return e.linkSummaries(ctx, link.ListOpts{SellerID: sellerID})
}

func (e *Engine) linkSummaries(ctx context.Context, opts link.ListOpts) ([]LinkSummary, error) {
	links, err := e.ListLinks(ctx, opts)
	if err != nil {
		return nil, err
	}

	standby := make(map[string]int64, len(links))
	out := make([]LinkSummary, 0, len(links))
	for _, l := range links {
		seller := l.SellerID.String()
		n, ok := standby[seller]
		if !ok {
			if n, err = e.store.CountInvoices(ctx, []id.AccountID{l.SellerID}, invoice.StatusStandby); err != nil {
				return nil, StorageError("count standby invoices", err)
			}
			standby[seller] = n
		}
		out = append(out, LinkSummary{Link: l, StandbyInvoices: n})
	}
	return out, nil
}

// IsReplayError reports whether err is a partial standby replay.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}
