// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/types"
)

// Factory returns a fresh, migrated and empty store.
type Factory func(t *testing.T) store.Store

// base is the clock every fixture derives its timestamps from. Fixtures are
// created with strictly increasing times so ordering is deterministic.
var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(n int) time.Time { return base.Add(time.Duration(n) * time.Second) }

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AccountCRUD", testAccountCRUD},
		{"AccountDuplicateDocument", testAccountDuplicateDocument},
		{"IncrementBalance", testIncrementBalance},
		{"EntriesNewestFirst", testEntriesNewestFirst},
		{"InvoiceUniqueAccessKey", testInvoiceUniqueAccessKey},
		{"InvoiceListAndCount", testInvoiceListAndCount},
		{"MarkInvoiceApproved", testMarkInvoiceApproved},
		{"LinkUniquePair", testLinkUniquePair},
		{"LinkTransition", testLinkTransition},
		{"OneApprovedLinkPerSeller", testOneApprovedLinkPerSeller},
		{"LinkPercentage", testLinkPercentage},
		{"LinkListing", testLinkListing},
		{"Issuers", testIssuers},
		{"AtomicCommit", testAtomicCommit},
		{"AtomicRollback", testAtomicRollback},
		{"AtomicNested", testAtomicNested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// ──────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────

var seq int

func newAccount(t *testing.T, s store.Store, role account.Role, n int) *account.Account {
	t.Helper()
	seq++
	a := &account.Account{
		Entity:   types.NewEntityAt(at(n)),
		ID:       id.NewAccountID(),
		Role:     role,
		Document: fmt.Sprintf("doc-%d-%d", n, seq),
		Name:     string(role),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func newInvoice(owner id.AccountID, key string, status invoice.Status, n int) *invoice.Invoice {
	inv := &invoice.Invoice{
		Entity:    types.NewEntityAt(at(n)),
		ID:        id.NewInvoiceID(),
		OwnerID:   owner,
		AccessKey: key,
		IssuerID:  "12345678000199",
		Coins:     100,
		Status:    status,
	}
	if status == invoice.StatusApproved {
		p := at(n)
		inv.ProcessedAt = &p
	}
	return inv
}

func newLink(sellerID, storeID id.AccountID, status link.Status, n int) *link.Link {
	return &link.Link{
		Entity:   types.NewEntityAt(at(n)),
		ID:       id.NewLinkID(),
		SellerID: sellerID,
		StoreID:  storeID,
		Status:   status,
	}
}

func newEntry(accountID id.AccountID, amount int64, n int) *entry.Entry {
	return &entry.Entry{
		ID:          id.NewEntryID(),
		AccountID:   accountID,
		Amount:      amount,
		Type:        entry.TypeInvoiceReward,
		Description: fmt.Sprintf("entry %d", n),
		CreatedAt:   at(n),
	}
}

// ──────────────────────────────────────────────────
// Accounts and ledger
// ──────────────────────────────────────────────────

func testAccountCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	storeAcct := newAccount(t, s, account.RoleStore, 1)
	seller := newAccount(t, s, account.RoleSeller, 2)

	got, err := s.GetAccount(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, seller.ID.String(), got.ID.String())
	assert.Equal(t, account.RoleSeller, got.Role)
	assert.True(t, got.StoreID.IsNil())

	got, err = s.GetAccountByDocument(ctx, storeAcct.Document)
	require.NoError(t, err)
	assert.Equal(t, storeAcct.ID.String(), got.ID.String())

	require.NoError(t, s.SetAccountStore(ctx, seller.ID, storeAcct.ID))
	got, err = s.GetAccount(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, storeAcct.ID.String(), got.StoreID.String())

	require.NoError(t, s.DeleteAccount(ctx, seller.ID))
	_, err = s.GetAccount(ctx, seller.ID)
	assert.ErrorIs(t, err, rewards.ErrAccountNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, seller.ID), rewards.ErrAccountNotFound)

	_, err = s.GetAccountByDocument(ctx, "missing")
	assert.ErrorIs(t, err, rewards.ErrAccountNotFound)
}

func testAccountDuplicateDocument(t *testing.T, s store.Store) {
	a := newAccount(t, s, account.RoleSeller, 1)
	dup := &account.Account{
		Entity:   types.NewEntityAt(at(2)),
		ID:       id.NewAccountID(),
		Role:     account.RoleSeller,
		Document: a.Document,
	}
	assert.ErrorIs(t, s.CreateAccount(context.Background(), dup), rewards.ErrDuplicateDocument)
}

func testIncrementBalance(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)

	require.NoError(t, s.IncrementBalance(ctx, a.ID, 70))
	require.NoError(t, s.IncrementBalance(ctx, a.ID, -20))

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Balance)

	assert.ErrorIs(t, s.IncrementBalance(ctx, id.NewAccountID(), 1), rewards.ErrAccountNotFound)
}

func testEntriesNewestFirst(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)
	other := newAccount(t, s, account.RoleSeller, 2)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.CreateEntry(ctx, newEntry(a.ID, int64(i*10), 10+i)))
	}
	debit := newEntry(a.ID, -5, 20)
	debit.Type = entry.TypeRedemptionDebit
	require.NoError(t, s.CreateEntry(ctx, debit))
	require.NoError(t, s.CreateEntry(ctx, newEntry(other.ID, 999, 21)))

	entries, err := s.ListEntries(ctx, a.ID, entry.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, []int64{-5, 30, 20, 10}, amounts(entries))

	paged, err := s.ListEntries(ctx, a.ID, entry.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 20}, amounts(paged))

	tail, err := s.ListEntries(ctx, a.ID, entry.ListOpts{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 10}, amounts(tail))

	// A negative offset reads from the start.
	head, err := s.ListEntries(ctx, a.ID, entry.ListOpts{Limit: 2, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, []int64{-5, 30}, amounts(head))

	rewardsOnly, err := s.ListEntries(ctx, a.ID, entry.ListOpts{Type: entry.TypeInvoiceReward})
	require.NoError(t, err)
	assert.Len(t, rewardsOnly, 3)

	sum, err := s.SumEntries(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(55), sum)

	n, err := s.CountEntries(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	sum, err = s.SumEntries(ctx, id.NewAccountID())
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func amounts(entries []*entry.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Amount
	}
	return out
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func testInvoiceUniqueAccessKey(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)
	b := newAccount(t, s, account.RoleSeller, 2)

	require.NoError(t, s.CreateInvoice(ctx, newInvoice(a.ID, "key-1", invoice.StatusApproved, 3)))
	err := s.CreateInvoice(ctx, newInvoice(b.ID, "key-1", invoice.StatusStandby, 4))
	assert.ErrorIs(t, err, rewards.ErrDuplicateInvoice)

	got, err := s.GetInvoiceByAccessKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID.String(), got.OwnerID.String())
	assert.Equal(t, invoice.StatusApproved, got.Status)
	require.NotNil(t, got.ProcessedAt)

	_, err = s.GetInvoice(ctx, id.NewInvoiceID())
	assert.ErrorIs(t, err, rewards.ErrInvoiceNotFound)
}

func testInvoiceListAndCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)
	b := newAccount(t, s, account.RoleSeller, 2)

	first := newInvoice(a.ID, "a-1", invoice.StatusStandby, 10)
	second := newInvoice(a.ID, "a-2", invoice.StatusApproved, 11)
	third := newInvoice(a.ID, "a-3", invoice.StatusStandby, 12)
	for _, inv := range []*invoice.Invoice{first, second, third, newInvoice(b.ID, "b-1", invoice.StatusStandby, 13)} {
		require.NoError(t, s.CreateInvoice(ctx, inv))
	}

	all, err := s.ListInvoices(ctx, a.ID, invoice.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-3", "a-2", "a-1"}, keys(all))

	standby, err := s.ListInvoices(ctx, a.ID, invoice.ListOpts{Status: invoice.StatusStandby, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1", "a-3"}, keys(standby))
	assert.Nil(t, standby[0].ProcessedAt)

	limited, err := s.ListInvoices(ctx, a.ID, invoice.ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-3"}, keys(limited))

	n, err := s.CountInvoices(ctx, []id.AccountID{a.ID, b.ID}, invoice.StatusStandby)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.CountInvoices(ctx, []id.AccountID{a.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.CountInvoices(ctx, nil, invoice.StatusStandby)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func keys(invoices []*invoice.Invoice) []string {
	out := make([]string, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.AccessKey
	}
	return out
}

func testMarkInvoiceApproved(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)
	inv := newInvoice(a.ID, "k", invoice.StatusStandby, 2)
	require.NoError(t, s.CreateInvoice(ctx, inv))

	require.NoError(t, s.MarkInvoiceApproved(ctx, inv.ID, at(5)))

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusApproved, got.Status)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(at(5)))

	assert.ErrorIs(t, s.MarkInvoiceApproved(ctx, inv.ID, at(6)), rewards.ErrInvoiceNotStandby)
	assert.ErrorIs(t, s.MarkInvoiceApproved(ctx, id.NewInvoiceID(), at(6)), rewards.ErrInvoiceNotFound)
}

// ──────────────────────────────────────────────────
// Links
// ──────────────────────────────────────────────────

func testLinkUniquePair(t *testing.T, s store.Store) {
	ctx := context.Background()
	seller := newAccount(t, s, account.RoleSeller, 1)
	shop := newAccount(t, s, account.RoleStore, 2)

	require.NoError(t, s.CreateLink(ctx, newLink(seller.ID, shop.ID, link.StatusRejected, 3)))
	err := s.CreateLink(ctx, newLink(seller.ID, shop.ID, link.StatusPending, 4))
	assert.ErrorIs(t, err, rewards.ErrDuplicateLink)

	_, err = s.GetLink(ctx, id.NewLinkID())
	assert.ErrorIs(t, err, rewards.ErrLinkNotFound)
}

func testLinkTransition(t *testing.T, s store.Store) {
	ctx := context.Background()
	seller := newAccount(t, s, account.RoleSeller, 1)
	shop := newAccount(t, s, account.RoleStore, 2)
	l := newLink(seller.ID, shop.ID, link.StatusPending, 3)
	require.NoError(t, s.CreateLink(ctx, l))

	found, err := s.FindSellerLink(ctx, seller.ID, link.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, l.ID.String(), found.ID.String())

	require.NoError(t, s.TransitionLink(ctx, l.ID, link.StatusPending, link.StatusApproved))
	assert.ErrorIs(t,
		s.TransitionLink(ctx, l.ID, link.StatusPending, link.StatusRejected),
		rewards.ErrLinkModified)

	got, err := s.GetLink(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, link.StatusApproved, got.Status)

	_, err = s.FindSellerLink(ctx, seller.ID, link.StatusPending)
	assert.ErrorIs(t, err, rewards.ErrLinkNotFound)
}

func testOneApprovedLinkPerSeller(t *testing.T, s store.Store) {
	ctx := context.Background()
	seller := newAccount(t, s, account.RoleSeller, 1)
	shopA := newAccount(t, s, account.RoleStore, 2)
	shopB := newAccount(t, s, account.RoleStore, 3)

	a := newLink(seller.ID, shopA.ID, link.StatusPending, 4)
	b := newLink(seller.ID, shopB.ID, link.StatusPending, 5)
	require.NoError(t, s.CreateLink(ctx, a))
	require.NoError(t, s.CreateLink(ctx, b))

	require.NoError(t, s.TransitionLink(ctx, a.ID, link.StatusPending, link.StatusApproved))
	err := s.TransitionLink(ctx, b.ID, link.StatusPending, link.StatusApproved)
	assert.ErrorIs(t, err, rewards.ErrSellerAlreadyLinked)

	got, err := s.GetLink(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, link.StatusPending, got.Status)

	require.NoError(t, s.TransitionLink(ctx, b.ID, link.StatusPending, link.StatusRejected))
}

func testLinkPercentage(t *testing.T, s store.Store) {
	ctx := context.Background()
	seller := newAccount(t, s, account.RoleSeller, 1)
	shop := newAccount(t, s, account.RoleStore, 2)
	l := newLink(seller.ID, shop.ID, link.StatusPending, 3)
	require.NoError(t, s.CreateLink(ctx, l))

	assert.ErrorIs(t, s.SetLinkPercentage(ctx, l.ID, 0, 10), rewards.ErrLinkModified)

	require.NoError(t, s.TransitionLink(ctx, l.ID, link.StatusPending, link.StatusApproved))
	require.NoError(t, s.SetLinkPercentage(ctx, l.ID, 0, 30))
	assert.ErrorIs(t, s.SetLinkPercentage(ctx, l.ID, 0, 40), rewards.ErrLinkModified)
	require.NoError(t, s.SetLinkPercentage(ctx, l.ID, 30, 40))

	got, err := s.GetLink(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Percentage)
	assert.Equal(t, link.StateApprovedFunded, got.State())

	assert.ErrorIs(t, s.SetLinkPercentage(ctx, id.NewLinkID(), 0, 1), rewards.ErrLinkNotFound)
}

func testLinkListing(t *testing.T, s store.Store) {
	ctx := context.Background()
	shop := newAccount(t, s, account.RoleStore, 1)
	other := newAccount(t, s, account.RoleStore, 2)
	s1 := newAccount(t, s, account.RoleSeller, 3)
	s2 := newAccount(t, s, account.RoleSeller, 4)
	s3 := newAccount(t, s, account.RoleSeller, 5)

	l1 := newLink(s1.ID, shop.ID, link.StatusPending, 10)
	l2 := newLink(s2.ID, shop.ID, link.StatusRejected, 11)
	l3 := newLink(s3.ID, shop.ID, link.StatusPending, 12)
	l4 := newLink(s1.ID, other.ID, link.StatusPending, 13)
	for _, l := range []*link.Link{l1, l2, l3, l4} {
		require.NoError(t, s.CreateLink(ctx, l))
	}

	pending := link.ListOpts{StoreID: shop.ID, Statuses: []link.Status{link.StatusPending}}
	links, err := s.ListLinks(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, []string{l3.ID.String(), l1.ID.String()}, linkIDs(links))

	n, err := s.CountLinks(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	bySeller, err := s.ListLinks(ctx, link.ListOpts{SellerID: s1.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{l4.ID.String(), l1.ID.String()}, linkIDs(bySeller))

	all, err := s.ListLinks(ctx, link.ListOpts{StoreID: shop.ID, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{l2.ID.String(), l1.ID.String()}, linkIDs(all))

	first, err := s.FindSellerLink(ctx, s1.ID, link.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, l1.ID.String(), first.ID.String())
}

func linkIDs(links []*link.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.ID.String()
	}
	return out
}

// ──────────────────────────────────────────────────
// Issuers
// ──────────────────────────────────────────────────

func testIssuers(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := &issuer.Issuer{Entity: types.NewEntityAt(at(1)), ID: id.NewIssuerID(), Code: "11111111000111", Name: "A", Active: true}
	b := &issuer.Issuer{Entity: types.NewEntityAt(at(2)), ID: id.NewIssuerID(), Code: "22222222000122", Name: "B", Active: true}
	require.NoError(t, s.CreateIssuer(ctx, a))
	require.NoError(t, s.CreateIssuer(ctx, b))

	dup := &issuer.Issuer{Entity: types.NewEntityAt(at(3)), ID: id.NewIssuerID(), Code: a.Code}
	assert.ErrorIs(t, s.CreateIssuer(ctx, dup), rewards.ErrDuplicateIssuer)

	got, err := s.GetIssuerByCode(ctx, a.Code)
	require.NoError(t, err)
	assert.Equal(t, a.ID.String(), got.ID.String())
	assert.True(t, got.Active)

	require.NoError(t, s.SetIssuerActive(ctx, a.ID, false))
	got, err = s.GetIssuer(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err := s.ListIssuers(ctx, issuer.ListOpts{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.Code, active[0].Code)

	all, err := s.ListIssuers(ctx, issuer.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.Code, all[0].Code)

	require.NoError(t, s.DeleteIssuer(ctx, a.ID))
	_, err = s.GetIssuerByCode(ctx, a.Code)
	assert.ErrorIs(t, err, rewards.ErrIssuerNotFound)
	assert.ErrorIs(t, s.DeleteIssuer(ctx, a.ID), rewards.ErrIssuerNotFound)
	assert.ErrorIs(t, s.SetIssuerActive(ctx, a.ID, true), rewards.ErrIssuerNotFound)
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

func testAtomicCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateEntry(ctx, newEntry(a.ID, 100, 2)); err != nil {
			return err
		}
		return tx.IncrementBalance(ctx, a.ID, 100)
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)

	n, err := s.CountEntries(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)
	inv := newInvoice(a.ID, "rollback", invoice.StatusStandby, 2)
	require.NoError(t, s.CreateInvoice(ctx, inv))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.MarkInvoiceApproved(ctx, inv.ID, at(3)); err != nil {
			return err
		}
		if err := tx.CreateEntry(ctx, newEntry(a.ID, 100, 3)); err != nil {
			return err
		}
		if err := tx.IncrementBalance(ctx, a.ID, 100); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusStandby, got.Status)
	assert.Nil(t, got.ProcessedAt)

	acct, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, acct.Balance)

	n, err := s.CountEntries(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testAtomicNested(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(t, s, account.RoleSeller, 1)

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		inner := tx.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
			return tx.IncrementBalance(ctx, a.ID, 10)
		})
		if inner != nil {
			return inner
		}

		got, err := tx.GetAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		if got.Balance != 10 {
			return fmt.Errorf("nested write not visible: balance %d", got.Balance)
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Balance, "nested work must roll back with the outer transaction")
}
