package rewards_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/issuer"
)

func TestAddIssuer(t *testing.T) {
	h := newHarness(t)

	iss, err := h.engine.AddIssuer(h.ctx, "11.222.333/0001-81", " Corner Shop ")
	require.NoError(t, err)
	assert.Equal(t, "11222333000181", iss.Code)
	assert.Equal(t, "Corner Shop", iss.Name)
	assert.True(t, iss.Active)

	_, err = h.engine.AddIssuer(h.ctx, "11222333000181", "again")
	require.ErrorIs(t, err, rewards.ErrDuplicateIssuer)

	for _, code := range []string{"", "123", "112223330001810"} {
		_, err = h.engine.AddIssuer(h.ctx, code, "bad")
		require.ErrorIsf(t, err, rewards.ErrInvalidIssuerCode, "code %q", code)
	}
}

func TestIssuerAllowList(t *testing.T) {
	h := newHarness(t)
	seller := h.account(account.RoleSeller)
	const unknown = "99888777000166"

	_, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, unknown))
	require.ErrorIs(t, err, rewards.ErrIssuerNotAllowed)
	assert.True(t, rewards.IsForbidden(err))

	iss, err := h.engine.AddIssuer(h.ctx, unknown, "Late Issuer")
	require.NoError(t, err)
	_, err = h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, unknown))
	require.NoError(t, err)

	_, err = h.engine.ToggleIssuer(h.ctx, iss.ID, false)
	require.NoError(t, err)
	_, err = h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(2, unknown))
	require.ErrorIs(t, err, rewards.ErrIssuerNotAllowed, "inactive issuers are rejected")

	ok, err := h.engine.IsIssuerAllowed(h.ctx, unknown)
	require.NoError(t, err)
	assert.False(t, ok)

	active, err := h.engine.ListIssuers(h.ctx, issuer.ListOpts{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, h.engine.RemoveIssuer(h.ctx, iss.ID))
	all, err := h.engine.ListIssuers(h.ctx, issuer.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIssuerAllowListDisabled(t *testing.T) {
	h := newHarness(t, rewards.WithIssuerAllowList(false))
	seller := h.account(account.RoleSeller)

	inv, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, "99888777000166"))
	require.NoError(t, err)
	assert.Equal(t, "99888777000166", inv.IssuerID)
}

func TestIssuerCheckerFailure(t *testing.T) {
	down := issuer.CheckerFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("connection refused")
	})
	h := newHarness(t, rewards.WithIssuerChecker(down))
	seller := h.account(account.RoleSeller)

	_, err := h.engine.SubmitInvoice(h.ctx, seller.ID, accessKey(1, testIssuer))
	require.ErrorIs(t, err, rewards.ErrIssuerCheckFailure)
	assert.True(t, rewards.IsRetryable(err))
}
