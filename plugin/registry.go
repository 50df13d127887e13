package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/link"
)

// DefaultTimeout bounds every hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emission never re-inspects plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onInvoiceSubmitted      []OnInvoiceSubmitted
	onInvoiceSettled        []OnInvoiceSettled
	onStandbyReplayed       []OnStandbyReplayed
	onSettlementFailed      []OnSettlementFailed
	onLinkRequested         []OnLinkRequested
	onLinkResponded         []OnLinkResponded
	onLinkPercentageChanged []OnLinkPercentageChanged
	onEntryPosted           []OnEntryPosted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvoiceSubmitted); ok {
		r.onInvoiceSubmitted = append(r.onInvoiceSubmitted, v)
	}
	if v, ok := p.(OnInvoiceSettled); ok {
		r.onInvoiceSettled = append(r.onInvoiceSettled, v)
	}
	if v, ok := p.(OnStandbyReplayed); ok {
		r.onStandbyReplayed = append(r.onStandbyReplayed, v)
	}
	if v, ok := p.(OnSettlementFailed); ok {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
	}
	if v, ok := p.(OnLinkRequested); ok {
		r.onLinkRequested = append(r.onLinkRequested, v)
	}
	if v, ok := p.(OnLinkResponded); ok {
		r.onLinkResponded = append(r.onLinkResponded, v)
	}
	if v, ok := p.(OnLinkPercentageChanged); ok {
		r.onLinkPercentageChanged = append(r.onLinkPercentageChanged, v)
	}
	if v, ok := p.(OnEntryPosted); ok {
		r.onEntryPosted = append(r.onEntryPosted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)
	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnInvoiceSubmitted", reflect.TypeOf((*OnInvoiceSubmitted)(nil)).Elem()},
	{"OnInvoiceSettled", reflect.TypeOf((*OnInvoiceSettled)(nil)).Elem()},
	{"OnStandbyReplayed", reflect.TypeOf((*OnStandbyReplayed)(nil)).Elem()},
	{"OnSettlementFailed", reflect.TypeOf((*OnSettlementFailed)(nil)).Elem()},
	{"OnLinkRequested", reflect.TypeOf((*OnLinkRequested)(nil)).Elem()},
	{"OnLinkResponded", reflect.TypeOf((*OnLinkResponded)(nil)).Elem()},
	{"OnLinkPercentageChanged", reflect.TypeOf((*OnLinkPercentageChanged)(nil)).Elem()},
	{"OnEntryPosted", reflect.TypeOf((*OnEntryPosted)(nil)).Elem()},
}

// implementedInterfaces returns the hook names implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit dispatches call to every plugin in hooks, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()

	emit(ctx, r, "OnInit", hooks, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()

	emit(ctx, r, "OnShutdown", hooks, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitInvoiceSubmitted emits an invoice submitted event.
func (r *Registry) EmitInvoiceSubmitted(ctx context.Context, inv *invoice.Invoice) {
	r.mu.RLock()
	hooks := r.onInvoiceSubmitted
	r.mu.RUnlock()

	emit(ctx, r, "OnInvoiceSubmitted", hooks, func(p OnInvoiceSubmitted) error {
		return p.OnInvoiceSubmitted(ctx, inv)
	})
}

// EmitInvoiceSettled emits an invoice settled event.
func (r *Registry) EmitInvoiceSettled(ctx context.Context, inv *invoice.Invoice, postings []*entry.Entry) {
	r.mu.RLock()
	hooks := r.onInvoiceSettled
	r.mu.RUnlock()

	emit(ctx, r, "OnInvoiceSettled", hooks, func(p OnInvoiceSettled) error {
		return p.OnInvoiceSettled(ctx, inv, postings)
	})
}

// EmitStandbyReplayed emits a standby replay event.
func (r *Registry) EmitStandbyReplayed(ctx context.Context, l *link.Link, settled int) {
	r.mu.RLock()
	hooks := r.onStandbyReplayed
	r.mu.RUnlock()

	emit(ctx, r, "OnStandbyReplayed", hooks, func(p OnStandbyReplayed) error {
		return p.OnStandbyReplayed(ctx, l, settled)
	})
}

// EmitSettlementFailed emits a settlement failure event.
func (r *Registry) EmitSettlementFailed(ctx context.Context, op string, err error) {
	r.mu.RLock()
	hooks := r.onSettlementFailed
	r.mu.RUnlock()

	emit(ctx, r, "OnSettlementFailed", hooks, func(p OnSettlementFailed) error {
		return p.OnSettlementFailed(ctx, op, err)
	})
}

// EmitLinkRequested emits a link requested event.
func (r *Registry) EmitLinkRequested(ctx context.Context, l *link.Link) {
	r.mu.RLock()
	hooks := r.onLinkRequested
	r.mu.RUnlock()

	emit(ctx, r, "OnLinkRequested", hooks, func(p OnLinkRequested) error {
		return p.OnLinkRequested(ctx, l)
	})
}

// EmitLinkResponded emits a link responded event.
func (r *Registry) EmitLinkResponded(ctx context.Context, l *link.Link) {
	r.mu.RLock()
	hooks := r.onLinkResponded
	r.mu.RUnlock()

	emit(ctx, r, "OnLinkResponded", hooks, func(p OnLinkResponded) error {
		return p.OnLinkResponded(ctx, l)
	})
}

// EmitLinkPercentageChanged emits a percentage change event.
func (r *Registry) EmitLinkPercentageChanged(ctx context.Context, l *link.Link, prior int) {
	r.mu.RLock()
	hooks := r.onLinkPercentageChanged
	r.mu.RUnlock()

	emit(ctx, r, "OnLinkPercentageChanged", hooks, func(p OnLinkPercentageChanged) error {
		return p.OnLinkPercentageChanged(ctx, l, prior)
	})
}

// EmitEntryPosted emits one event per posted entry.
func (r *Registry) EmitEntryPosted(ctx context.Context, entries ...*entry.Entry) {
	r.mu.RLock()
	hooks := r.onEntryPosted
	r.mu.RUnlock()

	for _, e := range entries {
		emit(ctx, r, "OnEntryPosted", hooks, func(p OnEntryPosted) error {
			return p.OnEntryPosted(ctx, e)
		})
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
