// Package observability provides a metrics extension for the rewards engine
// that records settlement and link lifecycle events as Prometheus metrics.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSubmitted      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSettled        = (*MetricsExtension)(nil)
	_ plugin.OnStandbyReplayed       = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed      = (*MetricsExtension)(nil)
	_ plugin.OnLinkRequested         = (*MetricsExtension)(nil)
	_ plugin.OnLinkResponded         = (*MetricsExtension)(nil)
	_ plugin.OnLinkPercentageChanged = (*MetricsExtension)(nil)
	_ plugin.OnEntryPosted           = (*MetricsExtension)(nil)
)

const namespace = "rewards"

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a rewards plugin to track settlement throughput.
type MetricsExtension struct {
	// Invoice metrics
	InvoicesSubmitted *prometheus.CounterVec
	InvoicesSettled   prometheus.Counter
	StandbyReleased   prometheus.Counter
	StandbyReplays    prometheus.Counter

	// Link metrics
	LinksRequested   prometheus.Counter
	LinkResponses    *prometheus.CounterVec
	LinkPercentage   prometheus.Histogram
	PercentageUpdate prometheus.Counter

	// Ledger metrics
	EntriesPosted *prometheus.CounterVec
	CoinsCredited *prometheus.CounterVec
	CoinsDebited  *prometheus.CounterVec

	// Error metrics
	SettlementFailures *prometheus.CounterVec
}

// NewMetricsExtension creates a MetricsExtension and registers its
// collectors with reg. Pass prometheus.DefaultRegisterer to expose them on
// the default /metrics handler.
func NewMetricsExtension(reg prometheus.Registerer) (*MetricsExtension, error) {
	m := &MetricsExtension{
		InvoicesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_submitted_total",
			Help:      "Accepted receipts by initial status.",
		}, []string{"status"}),
		InvoicesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_settled_total",
			Help:      "Receipts whose coins were posted to the ledger.",
		}),
		StandbyReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "standby_released_total",
			Help:      "Standby receipts settled by a replay.",
		}),
		StandbyReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "standby_replays_total",
			Help:      "Standby replays run after a link became funded.",
		}),

		LinksRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_requested_total",
			Help:      "Seller to store link requests.",
		}),
		LinkResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_responses_total",
			Help:      "Store responses to link requests by outcome.",
		}, []string{"status"}),
		LinkPercentage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_percentage",
			Help:      "Seller share set on approved links.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		PercentageUpdate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_percentage_updates_total",
			Help:      "Seller share changes on approved links.",
		}),

		EntriesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_posted_total",
			Help:      "Ledger entries by type.",
		}, []string{"type"}),
		CoinsCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_credited_total",
			Help:      "Coins added to balances by entry type.",
		}, []string{"type"}),
		CoinsDebited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_debited_total",
			Help:      "Coins removed from balances by entry type.",
		}, []string{"type"}),

		SettlementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Settlement units rolled back by a dependency failure.",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{
		m.InvoicesSubmitted, m.InvoicesSettled, m.StandbyReleased, m.StandbyReplays,
		m.LinksRequested, m.LinkResponses, m.LinkPercentage, m.PercentageUpdate,
		m.EntriesPosted, m.CoinsCredited, m.CoinsDebited,
		m.SettlementFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnInvoiceSubmitted implements plugin.OnInvoiceSubmitted.
func (m *MetricsExtension) OnInvoiceSubmitted(_ context.Context, inv *invoice.Invoice) error {
	m.InvoicesSubmitted.WithLabelValues(string(inv.Status)).Inc()
	return nil
}

// OnInvoiceSettled implements plugin.OnInvoiceSettled.
func (m *MetricsExtension) OnInvoiceSettled(_ context.Context, _ *invoice.Invoice, _ []*entry.Entry) error {
	m.InvoicesSettled.Inc()
	return nil
}

// OnStandbyReplayed implements plugin.OnStandbyReplayed.
func (m *MetricsExtension) OnStandbyReplayed(_ context.Context, _ *link.Link, settled int) error {
	m.StandbyReplays.Inc()
	m.StandbyReleased.Add(float64(settled))
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, op string, _ error) error {
	m.SettlementFailures.WithLabelValues(op).Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Link hooks
// ──────────────────────────────────────────────────

// OnLinkRequested implements plugin.OnLinkRequested.
func (m *MetricsExtension) OnLinkRequested(_ context.Context, _ *link.Link) error {
	m.LinksRequested.Inc()
	return nil
}

// OnLinkResponded implements plugin.OnLinkResponded.
func (m *MetricsExtension) OnLinkResponded(_ context.Context, l *link.Link) error {
	m.LinkResponses.WithLabelValues(string(l.Status)).Inc()
	return nil
}

// OnLinkPercentageChanged implements plugin.OnLinkPercentageChanged.
func (m *MetricsExtension) OnLinkPercentageChanged(_ context.Context, l *link.Link, _ int) error {
	m.PercentageUpdate.Inc()
	m.LinkPercentage.Observe(float64(l.Percentage))
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryPosted implements plugin.OnEntryPosted.
func (m *MetricsExtension) OnEntryPosted(_ context.Context, e *entry.Entry) error {
	typ := string(e.Type)
	m.EntriesPosted.WithLabelValues(typ).Inc()
	switch {
	case e.Amount > 0:
		m.CoinsCredited.WithLabelValues(typ).Add(float64(e.Amount))
	case e.Amount < 0:
		m.CoinsDebited.WithLabelValues(typ).Add(float64(-e.Amount))
	}
	return nil
}
