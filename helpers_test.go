package rewards_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/memory"
)

const testIssuer = "12345678000190"

var docSeq atomic.Int64

// accessKey builds a well-formed 44-digit receipt key carrying issuerCode.
func accessKey(n int, issuerCode string) string {
	return "351904" + issuerCode + fmt.Sprintf("%024d", n)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *rewards.Engine
	store  store.Store
}

func newHarness(t *testing.T, opts ...rewards.Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.New(), opts...)
}

func newHarnessWithStore(t *testing.T, s store.Store, opts ...rewards.Option) *harness {
	t.Helper()
	ctx := context.Background()

	opts = append([]rewards.Option{rewards.WithLogger(quietLogger())}, opts...)
	e := rewards.New(s, opts...)
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() { _ = e.Stop() })

	_, err := e.AddIssuer(ctx, testIssuer, "Test Issuer")
	require.NoError(t, err)

	return &harness{t: t, ctx: ctx, engine: e, store: s}
}

func (h *harness) account(role account.Role) *account.Account {
	h.t.Helper()
	a := &account.Account{
		Role:     role,
		Document: fmt.Sprintf("%011d", docSeq.Add(1)),
		Name:     string(role),
	}
	require.NoError(h.t, h.engine.CreateAccount(h.ctx, a))
	return a
}

func (h *harness) submit(owner id.AccountID, n int) {
	h.t.Helper()
	_, err := h.engine.SubmitInvoice(h.ctx, owner, accessKey(n, testIssuer))
	require.NoError(h.t, err)
}

// approvedLink links seller to st and approves it at percentage.
func (h *harness) approvedLink(seller, st *account.Account, percentage int) *link.Link {
	h.t.Helper()
	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(h.t, err)
	l, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, true)
	require.NoError(h.t, err)
	if percentage > 0 {
		l, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, percentage)
		require.NoError(h.t, err)
	}
	return l
}

func (h *harness) balance(a *account.Account) int64 {
	h.t.Helper()
	b, err := h.engine.Balance(h.ctx, a.ID)
	require.NoError(h.t, err)
	return b
}

// requireReconciled asserts that each account's cached balance matches the
// sum of its ledger entries.
func (h *harness) requireReconciled(accounts ...*account.Account) {
	h.t.Helper()
	for _, a := range accounts {
		r, err := h.engine.Reconcile(h.ctx, a.ID)
		require.NoError(h.t, err)
		require.Truef(h.t, r.Consistent, "account %s: cached %d, ledger %d", a.ID, r.Cached, r.Ledger)
	}
}

func (h *harness) countStandby(owner id.AccountID) int64 {
	h.t.Helper()
	st, err := h.engine.AccountStatement(h.ctx, owner, 0)
	require.NoError(h.t, err)
	return st.Standby
}
