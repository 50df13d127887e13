package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/rewards/audit_hook"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Action)
	}
	return out
}

func testLink(status link.Status, pct int) *link.Link {
	return &link.Link{
		ID:         id.NewLinkID(),
		SellerID:   id.NewAccountID(),
		StoreID:    id.NewAccountID(),
		Status:     status,
		Percentage: pct,
	}
}

func TestExtensionRecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	ext := audithook.New(s)

	inv := &invoice.Invoice{ID: id.NewInvoiceID(), OwnerID: id.NewAccountID(), Status: invoice.StatusStandby, Coins: 100}
	require.NoError(t, ext.OnInvoiceSubmitted(ctx, inv))
	require.NoError(t, ext.OnLinkRequested(ctx, testLink(link.StatusPending, 0)))
	require.NoError(t, ext.OnLinkResponded(ctx, testLink(link.StatusApproved, 0)))
	require.NoError(t, ext.OnLinkResponded(ctx, testLink(link.StatusRejected, 0)))
	require.NoError(t, ext.OnLinkPercentageChanged(ctx, testLink(link.StatusApproved, 30), 0))
	require.NoError(t, ext.OnStandbyReplayed(ctx, testLink(link.StatusApproved, 30), 1))

	inv.Status = invoice.StatusApproved
	require.NoError(t, ext.OnInvoiceSettled(ctx, inv, nil))
	require.NoError(t, ext.OnEntryPosted(ctx, &entry.Entry{ID: id.NewEntryID(), AccountID: inv.OwnerID, Amount: 30}))

	assert.Equal(t, []string{
		audithook.ActionInvoiceStandby,
		audithook.ActionLinkRequested,
		audithook.ActionLinkApproved,
		audithook.ActionLinkRejected,
		audithook.ActionLinkPercentageChanged,
		audithook.ActionStandbyReplayed,
		audithook.ActionInvoiceSettled,
		audithook.ActionEntryPosted,
	}, s.actions())

	pct := s.events[4]
	assert.Equal(t, audithook.ResourceLink, pct.Resource)
	assert.Equal(t, 0, pct.Metadata["prior"])
	assert.Equal(t, 30, pct.Metadata["percentage"])
}

func TestExtensionRecordsFailureReason(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)

	require.NoError(t, ext.OnSettlementFailed(context.Background(), "replay standby invoice", errors.New("disk full")))
	require.Len(t, s.events, 1)
	evt := s.events[0]
	assert.Equal(t, audithook.OutcomeFailure, evt.Outcome)
	assert.Equal(t, audithook.SeverityCritical, evt.Severity)
	assert.Equal(t, "disk full", evt.Reason)
	assert.Equal(t, "replay standby invoice", evt.Metadata["op"])
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	l := testLink(link.StatusPending, 0)

	s := &sink{}
	ext := audithook.New(s, audithook.WithEnabledActions(audithook.ActionLinkRequested))
	require.NoError(t, ext.OnLinkRequested(ctx, l))
	require.NoError(t, ext.OnEntryPosted(ctx, &entry.Entry{ID: id.NewEntryID()}))
	assert.Equal(t, []string{audithook.ActionLinkRequested}, s.actions())

	s = &sink{}
	ext = audithook.New(s, audithook.WithDisabledActions(audithook.ActionEntryPosted))
	require.NoError(t, ext.OnLinkRequested(ctx, l))
	require.NoError(t, ext.OnEntryPosted(ctx, &entry.Entry{ID: id.NewEntryID()}))
	assert.Equal(t, []string{audithook.ActionLinkRequested}, s.actions())
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store down")
	})
	ext := audithook.New(failing)
	assert.NoError(t, ext.OnLinkRequested(context.Background(), testLink(link.StatusPending, 0)))
}
