package rewards_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/link"
)

func TestRequestLink(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, " "+st.Document+" ")
	require.NoError(t, err)
	assert.Equal(t, link.StatusPending, l.Status)
	assert.Zero(t, l.Percentage)
	assert.Equal(t, st.ID.String(), l.StoreID.String())

	n, err := h.engine.CountPendingLinks(h.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := h.engine.PendingLinks(h.ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, l.ID.String(), pending[0].ID.String())
}

func TestRequestLinkErrors(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	other := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	tests := []struct {
		name     string
		sellerID id.AccountID
		document string
		want     error
	}{
		{"empty document", seller.ID, "  ", rewards.ErrInvalidInput},
		{"unknown store", seller.ID, "00000000000", rewards.ErrAccountNotFound},
		{"target is not a store", seller.ID, other.Document, rewards.ErrInvalidRole},
		{"unknown seller", id.NewAccountID(), st.Document, rewards.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.RequestLink(h.ctx, tt.sellerID, tt.document)
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("self link", func(t *testing.T) {
		_, err := h.engine.RequestLink(h.ctx, st.ID, st.Document)
		require.Error(t, err)
		assert.True(t, rewards.IsValidation(err))
	})
}

func TestRequestLinkDuplicatePair(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)

	_, err = h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.ErrorIs(t, err, rewards.ErrDuplicateLink)

	_, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, false)
	require.NoError(t, err)

	_, err = h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.ErrorIs(t, err, rewards.ErrDuplicateLink, "a rejected pair cannot be requested again")
}

func TestRespondToLink(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)

	_, err = h.engine.RespondToLink(h.ctx, l.ID, seller.ID, true)
	require.ErrorIs(t, err, rewards.ErrForbidden)
	assert.True(t, rewards.IsForbidden(err))

	l, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, true)
	require.NoError(t, err)
	assert.Equal(t, link.StatusApproved, l.Status)
	assert.Equal(t, link.StateApprovedUnfunded, l.State())

	got, err := h.engine.GetAccount(h.ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, st.ID.String(), got.StoreID.String(), "approval sets the seller's store")

	approved, err := h.engine.ApprovedLink(h.ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID.String(), approved.ID.String())

	_, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, false)
	require.ErrorIs(t, err, rewards.ErrInvalidLinkState, "approved is terminal")

	_, err = h.engine.RespondToLink(h.ctx, id.NewLinkID(), st.ID, true)
	require.ErrorIs(t, err, rewards.ErrLinkNotFound)
}

func TestRejectLinkLeavesSellerUnaffiliated(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)

	l, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, false)
	require.NoError(t, err)
	assert.Equal(t, link.StatusRejected, l.Status)

	got, err := h.engine.GetAccount(h.ctx, seller.ID)
	require.NoError(t, err)
	assert.True(t, got.StoreID.IsNil())

	_, err = h.engine.ApprovedLink(h.ctx, seller.ID)
	require.ErrorIs(t, err, rewards.ErrLinkNotFound)
}

func TestSellerHoldsOneApprovedLink(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	first := h.account(account.RoleStore)
	second := h.account(account.RoleStore)

	l1, err := h.engine.RequestLink(h.ctx, seller.ID, first.Document)
	require.NoError(t, err)
	l2, err := h.engine.RequestLink(h.ctx, seller.ID, second.Document)
	require.NoError(t, err)

	_, err = h.engine.RespondToLink(h.ctx, l1.ID, first.ID, true)
	require.NoError(t, err)

	_, err = h.engine.RespondToLink(h.ctx, l2.ID, second.ID, true)
	require.ErrorIs(t, err, rewards.ErrSellerAlreadyLinked)

	got, err := h.engine.GetLink(h.ctx, l2.ID)
	require.NoError(t, err)
	assert.Equal(t, link.StatusPending, got.Status, "the failed approval is rolled back")

	_, err = h.engine.RespondToLink(h.ctx, l2.ID, second.ID, false)
	require.NoError(t, err)
}

func TestUpdateLinkPercentage(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)

	_, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 10)
	require.ErrorIs(t, err, rewards.ErrInvalidLinkState, "pending links have no split")

	_, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, true)
	require.NoError(t, err)

	for _, pct := range []int{-1, 101} {
		_, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, pct)
		require.ErrorIs(t, err, rewards.ErrPercentageOutOfRange)
		assert.True(t, rewards.IsValidation(err))
	}

	_, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, seller.ID, 10)
	require.ErrorIs(t, err, rewards.ErrForbidden)

	for _, pct := range []int{0, 100, 45} {
		l, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, pct)
		require.NoError(t, err)
		assert.Equal(t, pct, l.Percentage)
	}

	got, err := h.engine.GetLink(h.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, got.Percentage)
}

func TestStoreLinks(t *testing.T) {
	h := newHarness(t)
	st := h.account(account.RoleStore)
	waiting := h.account(account.RoleSeller)
	funded := h.account(account.RoleSeller)

	_, err := h.engine.RequestLink(h.ctx, waiting.ID, st.Document)
	require.NoError(t, err)
	h.submit(waiting.ID, 1)
	h.submit(waiting.ID, 2)

	h.approvedLink(funded, st, 20)
	h.submit(funded.ID, 3)

	summaries, err := h.engine.StoreLinks(h.ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	bySeller := map[string]int64{}
	for _, s := range summaries {
		bySeller[s.Link.SellerID.String()] = s.StandbyInvoices
	}
	assert.Equal(t, int64(2), bySeller[waiting.ID.String()])
	assert.Zero(t, bySeller[funded.ID.String()])

	n, err := h.engine.CountStandbyInvoices(h.ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	links, err := h.engine.ListLinks(h.ctx, link.ListOpts{SellerID: funded.ID})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestRequestLinkWhileApprovedElsewhere(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	first := h.account(account.RoleStore)
	second := h.account(account.RoleStore)

	h.approvedLink(seller, first, 50)

	_, err := h.engine.RequestLink(h.ctx, seller.ID, second.Document)
	require.ErrorIs(t, err, rewards.ErrSellerAlreadyLinked)

	_, err = h.engine.RequestLink(h.ctx, seller.ID, first.Document)
	require.ErrorIs(t, err, rewards.ErrDuplicateLink, "the approved pair still reports a duplicate")

	n, err := h.engine.CountPendingLinks(h.ctx, second.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.submit(seller.ID, 1)
	assert.Zero(t, h.countStandby(seller.ID), "receipts keep settling through the approved link")
	assert.Positive(t, h.balance(seller))
	assert.Positive(t, h.balance(first))
	assert.Zero(t, h.balance(second))
	h.requireReconciled(seller, first, second)
}

func TestLinkSummariesCountEveryLink(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	waiting := h.account(account.RoleStore)
	declined := h.account(account.RoleStore)

	_, err := h.engine.RequestLink(h.ctx, seller.ID, waiting.Document)
	require.NoError(t, err)
	rejected, err := h.engine.RequestLink(h.ctx, seller.ID, declined.Document)
	require.NoError(t, err)
	_, err = h.engine.RespondToLink(h.ctx, rejected.ID, declined.ID, false)
	require.NoError(t, err)

	h.submit(seller.ID, 1)
	h.submit(seller.ID, 2)

	summaries, err := h.engine.StoreLinks(h.ctx, declined.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, link.StatusRejected, summaries[0].Link.Status)
	assert.Equal(t, int64(2), summaries[0].StandbyInvoices)

	mine, err := h.engine.SellerLinks(h.ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, s := range mine {
		assert.Equal(t, seller.ID.String(), s.Link.SellerID.String())
		assert.Equal(t, int64(2), s.StandbyInvoices)
	}

	none, err := h.engine.SellerLinks(h.ctx, id.NewAccountID())
	require.NoError(t, err)
	assert.Empty(t, none)
}
