package rewards_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/memory"
)

func TestSubmitInvoiceWithoutLinkPaysSubmitter(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)

	inv, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusApproved, inv.Status)
	assert.NotNil(t, inv.ProcessedAt)
	assert.Equal(t, testIssuer, inv.IssuerID)
	assert.Equal(t, rewards.DefaultRewardPerInvoice, inv.Coins)

	assert.Equal(t, int64(100), h.balance(seller))

	entries, err := h.engine.LedgerHistory(h.ctx, seller.ID, entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.TypeInvoiceReward, entries[0].Type)
	assert.Equal(t, inv.ID.String(), entries[0].RelatedID.String())
	h.requireReconciled(seller)
}

func TestSubmitInvoicePendingLinkHoldsStandby(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	_, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)

	inv, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusStandby, inv.Status)
	assert.Nil(t, inv.ProcessedAt)

	assert.Zero(t, h.balance(seller))
	assert.Zero(t, h.balance(st))

	n, err := h.engine.CountStandbyInvoices(h.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSubmitInvoiceApprovedAtZeroHoldsStandby(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	h.approvedLink(seller, st, 0)

	inv, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusStandby, inv.Status)
	assert.Zero(t, h.balance(seller))
	assert.Zero(t, h.balance(st))
}

func TestSubmitInvoiceSplitsByPercentage(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	h.approvedLink(seller, st, 30)

	inv, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusApproved, inv.Status)

	assert.Equal(t, int64(30), h.balance(seller))
	assert.Equal(t, int64(70), h.balance(st))

	storeEntries, err := h.engine.LedgerHistory(h.ctx, st.ID, entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, storeEntries, 1)
	assert.Equal(t, entry.TypeInvoiceRewardCompany, storeEntries[0].Type)
	h.requireReconciled(seller, st)
}

func TestSubmitInvoiceFullSellerShareSkipsStoreEntry(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	h.approvedLink(seller, st, 100)

	h.submit(seller.ID, 1)

	assert.Equal(t, int64(100), h.balance(seller))
	entries, err := h.engine.LedgerHistory(h.ctx, st.ID, entry.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitInvoiceDuplicateAccessKey(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	other := h.account(account.RoleSeller)

	h.submit(seller.ID, 1)

	_, err := h.engine.SubmitInvoice(h.ctx, other.ID, accessKey(1, testIssuer))
	require.ErrorIs(t, err, rewards.ErrDuplicateInvoice)
	assert.True(t, rewards.IsConflict(err))

	assert.Equal(t, int64(100), h.balance(seller))
	assert.Zero(t, h.balance(other))
}

func TestSubmitInvoiceRejectsMalformedKey(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)

	for _, key := range []string{
		"",
		"123",
		accessKey(1, testIssuer) + "9",
		accessKey(1, testIssuer)[:43] + "X",
	} {
		_, err := h.engine.SubmitInvoice(h.ctx, seller.ID, key)
		require.ErrorIsf(t, err, rewards.ErrInvalidAccessKey, "key %q", key)
		assert.True(t, rewards.IsValidation(err))
	}
}

func TestSubmitInvoiceTrimsWhitespace(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)

	inv, err := h.engine.SubmitInvoice(h.ctx, seller.ID, "  "+accessKey(1, testIssuer)+"\n")
	require.NoError(t, err)
	assert.Equal(t, accessKey(1, testIssuer), inv.AccessKey)
}

func TestSubmitInvoiceUnknownAccount(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.SubmitInvoice(h.ctx, id.NewAccountID(), accessKey(1, testIssuer))
	require.ErrorIs(t, err, rewards.ErrAccountNotFound)
	assert.True(t, rewards.IsNotFound(err))

	seller := h.account(account.RoleSeller)
	_, err = h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
	require.NoError(t, err, "a rejected submission must not reserve the key")
}

func TestSubmitInvoiceCustomReward(t *testing.T) {
	h := newHarness(t, rewards.WithRewardPerInvoice(7))
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	h.approvedLink(seller, st, 50)

	h.submit(seller.ID, 1)

	// 7 * 50% floors to 3 for the seller; the store keeps the remainder.
	assert.Equal(t, int64(3), h.balance(seller))
	assert.Equal(t, int64(4), h.balance(st))
}

func TestReplayOnFirstFunding(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)
	for n := 1; n <= 3; n++ {
		h.submit(seller.ID, n)
	}

	l, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.countStandby(seller.ID), "approval at 0% keeps receipts in standby")

	_, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 10)
	require.NoError(t, err)

	assert.Zero(t, h.countStandby(seller.ID))
	assert.Equal(t, int64(30), h.balance(seller))
	assert.Equal(t, int64(270), h.balance(st))

	entries, err := h.engine.LedgerHistory(h.ctx, seller.ID, entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, en := range entries {
		assert.Contains(t, en.Description, "released from standby")
	}
	h.requireReconciled(seller, st)
}

func TestReplayOnlyWhenLeavingZero(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	l := h.approvedLink(seller, st, 5)

	h.submit(seller.ID, 1)
	require.Equal(t, int64(5), h.balance(seller))

	_, err := h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), h.balance(seller), "past receipts keep their split")

	h.submit(seller.ID, 2)
	assert.Equal(t, int64(15), h.balance(seller))
	assert.Equal(t, int64(185), h.balance(st))
}

func TestReplayAfterReturningToZero(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	l := h.approvedLink(seller, st, 40)

	_, err := h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 0)
	require.NoError(t, err)
	h.submit(seller.ID, 1)
	require.Equal(t, int64(1), h.countStandby(seller.ID))

	_, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 25)
	require.NoError(t, err)
	assert.Zero(t, h.countStandby(seller.ID))
	assert.Equal(t, int64(25), h.balance(seller))
	assert.Equal(t, int64(75), h.balance(st))
}

func TestRejectedLinkReleasesSeller(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)
	h.submit(seller.ID, 1)

	_, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, false)
	require.NoError(t, err)

	h.submit(seller.ID, 2)
	assert.Equal(t, int64(100), h.balance(seller), "with no live link the seller keeps the full reward")
	assert.Equal(t, int64(1), h.countStandby(seller.ID), "standby from the rejected link is not released")
}

func TestConcurrentPercentageUpdatesReplayOnce(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	l := h.approvedLink(seller, st, 0)

	const invoices = 5
	for n := 1; n <= invoices; n++ {
		h.submit(seller.ID, n)
	}

	var wg sync.WaitGroup
	for _, pct := range []int{10, 20, 30, 40} {
		wg.Add(1)
		go func(pct int) {
			defer wg.Done()
			_, err := h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, pct)
			assert.NoError(t, err)
		}(pct)
	}
	wg.Wait()

	assert.Zero(t, h.countStandby(seller.ID))
	total := h.balance(seller) + h.balance(st)
	assert.Equal(t, int64(invoices*100), total, "every standby receipt is distributed exactly once")
	h.requireReconciled(seller, st)
}

func TestConcurrentSubmissionsOfSameKey(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, rewards.ErrDuplicateInvoice)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int64(100), h.balance(seller))
}

// flakyStore fails MarkInvoiceApproved once failAt calls have been made.
type flakyStore struct {
	store.Store
	calls  *atomic.Int32
	failAt int32
}

func (f *flakyStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return f.Store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &flakyStore{Store: tx, calls: f.calls, failAt: f.failAt})
	})
}

func (f *flakyStore) MarkInvoiceApproved(ctx context.Context, invID id.InvoiceID, at time.Time) error {
	if f.failAt > 0 && f.calls.Add(1) == f.failAt {
		return errors.New("disk full")
	}
	return f.Store.MarkInvoiceApproved(ctx, invID, at)
}

func TestPartialReplayIsRecoverable(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), calls: new(atomic.Int32), failAt: 2}
	h := newHarnessWithStore(t, fs)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	l := h.approvedLink(seller, st, 0)

	for n := 1; n <= 3; n++ {
		h.submit(seller.ID, n)
	}

	updated, err := h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 50)
	require.Error(t, err)
	require.NotNil(t, updated, "the percentage change is committed")
	assert.Equal(t, 50, updated.Percentage)

	var re *rewards.ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Settled)
	assert.True(t, rewards.IsReplayError(err))
	assert.True(t, rewards.IsRetryable(err))
	assert.Equal(t, int64(2), h.countStandby(seller.ID))
	h.requireReconciled(seller, st)

	settled, err := h.engine.SettleStandby(h.ctx, l.ID, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)
	assert.Zero(t, h.countStandby(seller.ID))
	assert.Equal(t, int64(150), h.balance(seller))
	assert.Equal(t, int64(150), h.balance(st))
	h.requireReconciled(seller, st)
}

func TestSettleStandbyRequiresFundedLink(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)
	l := h.approvedLink(seller, st, 0)

	_, err := h.engine.SettleStandby(h.ctx, l.ID, st.ID)
	require.ErrorIs(t, err, rewards.ErrInvalidLinkState)

	_, err = h.engine.SettleStandby(h.ctx, l.ID, seller.ID)
	require.ErrorIs(t, err, rewards.ErrForbidden)
}

func TestSplitConservation(t *testing.T) {
	h := newHarness(t)

	for _, pct := range []int{1, 3, 33, 50, 67, 99, 100} {
		seller := h.account(account.RoleSeller)
		st := h.account(account.RoleStore)
		h.approvedLink(seller, st, pct)

		h.submit(seller.ID, 1000+pct)

		assert.Equalf(t, rewards.DefaultRewardPerInvoice, h.balance(seller)+h.balance(st), "percentage %d", pct)
		h.requireReconciled(seller, st)
	}
}

func TestListInvoicesAndStatement(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	h.submit(seller.ID, 1)
	_, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)
	h.submit(seller.ID, 2)
	h.submit(seller.ID, 3)

	all, err := h.engine.ListInvoices(h.ctx, seller.ID, invoice.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	standby, err := h.engine.ListInvoices(h.ctx, seller.ID, invoice.ListOpts{Status: invoice.StatusStandby})
	require.NoError(t, err)
	assert.Len(t, standby, 2)

	got, err := h.engine.GetInvoice(h.ctx, standby[0].ID)
	require.NoError(t, err)
	assert.Equal(t, standby[0].AccessKey, got.AccessKey)

	stmt, err := h.engine.AccountStatement(h.ctx, seller.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stmt.Approved)
	assert.Equal(t, int64(2), stmt.Standby)
	assert.Len(t, stmt.Recent, 1)
	assert.Equal(t, int64(100), stmt.Account.Balance)
}
