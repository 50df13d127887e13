package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/plugin"
)

type recorder struct {
	name string

	mu      sync.Mutex
	events  []string
	failOn  string
	blockOn string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(evt string) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	if evt == r.blockOn {
		time.Sleep(200 * time.Millisecond)
	}
	if evt == r.failOn {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnInvoiceSubmitted(_ context.Context, _ *invoice.Invoice) error {
	return r.add("submitted")
}

func (r *recorder) OnInvoiceSettled(_ context.Context, _ *invoice.Invoice, postings []*entry.Entry) error {
	if len(postings) == 0 {
		return r.add("settled-empty")
	}
	return r.add("settled")
}

func (r *recorder) OnLinkPercentageChanged(_ context.Context, _ *link.Link, _ int) error {
	return r.add("percentage")
}

func (r *recorder) OnEntryPosted(_ context.Context, _ *entry.Entry) error {
	return r.add("entry")
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	assert.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := newRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(rec))

	ctx := context.Background()
	r.EmitInvoiceSubmitted(ctx, &invoice.Invoice{})
	r.EmitInvoiceSettled(ctx, &invoice.Invoice{}, []*entry.Entry{{}, {}})
	r.EmitEntryPosted(ctx, &entry.Entry{}, &entry.Entry{})
	r.EmitLinkPercentageChanged(ctx, &link.Link{}, 0)
	r.EmitLinkRequested(ctx, &link.Link{})

	assert.Equal(t, []string{"submitted", "settled", "entry", "entry", "percentage"}, rec.seen())
}

func TestEmitContinuesAfterFailure(t *testing.T) {
	r := newRegistry()
	failing := &recorder{name: "failing", failOn: "submitted"}
	healthy := &recorder{name: "healthy"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(healthy))

	r.EmitInvoiceSubmitted(context.Background(), &invoice.Invoice{})

	assert.Equal(t, []string{"submitted"}, failing.seen())
	assert.Equal(t, []string{"submitted"}, healthy.seen())
}

func TestEmitTimesOutSlowPlugin(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	slow := &recorder{name: "slow", blockOn: "entry"}
	require.NoError(t, r.Register(slow))

	start := time.Now()
	r.EmitEntryPosted(context.Background(), &entry.Entry{})

	assert.Less(t, time.Since(start), 150*time.Millisecond)
}
