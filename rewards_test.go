package rewards_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/plugin"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
	inited bool
}

func (l *eventLog) Name() string { return "event-log" }

func (l *eventLog) add(evt string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	return nil
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) OnInit(_ context.Context, engine interface{}) error {
	_, l.inited = engine.(*rewards.Engine)
	return nil
}

func (l *eventLog) OnInvoiceSubmitted(_ context.Context, inv *invoice.Invoice) error {
	return l.add("submitted:" + string(inv.Status))
}

func (l *eventLog) OnInvoiceSettled(_ context.Context, _ *invoice.Invoice, _ []*entry.Entry) error {
	return l.add("settled")
}

func (l *eventLog) OnStandbyReplayed(_ context.Context, _ *link.Link, _ int) error {
	return l.add("replayed")
}

func (l *eventLog) OnLinkRequested(_ context.Context, _ *link.Link) error {
	return l.add("requested")
}

func (l *eventLog) OnLinkResponded(_ context.Context, lk *link.Link) error {
	return l.add("responded:" + string(lk.Status))
}

func (l *eventLog) OnLinkPercentageChanged(_ context.Context, _ *link.Link, _ int) error {
	return l.add("percentage")
}

func (l *eventLog) OnEntryPosted(_ context.Context, _ *entry.Entry) error {
	return l.add("entry")
}

var (
	_ plugin.OnInit                  = (*eventLog)(nil)
	_ plugin.OnInvoiceSubmitted      = (*eventLog)(nil)
	_ plugin.OnStandbyReplayed       = (*eventLog)(nil)
	_ plugin.OnLinkPercentageChanged = (*eventLog)(nil)
)

func TestPluginLifecycleEvents(t *testing.T) {
	rec := &eventLog{}
	h := newHarness(t, rewards.WithPlugin(rec))
	seller := h.account(account.RoleSeller)
	st := h.account(account.RoleStore)

	assert.True(t, rec.inited)
	assert.Equal(t, 1, h.engine.Plugins().Count())

	l, err := h.engine.RequestLink(h.ctx, seller.ID, st.Document)
	require.NoError(t, err)
	h.submit(seller.ID, 1)
	_, err = h.engine.RespondToLink(h.ctx, l.ID, st.ID, true)
	require.NoError(t, err)
	_, err = h.engine.UpdateLinkPercentage(h.ctx, l.ID, st.ID, 40)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"requested",
		"submitted:standby",
		"responded:approved",
		"percentage",
		"settled",
		"entry",
		"entry",
		"replayed",
	}, rec.snapshot())
}

func TestStartMigratesStore(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Store().Ping(h.ctx))
	require.NoError(t, h.engine.Start(h.ctx), "start is repeatable")
}
