package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/lock"
	lockmemory "github.com/xraph/rewards/lock/memory"
	"github.com/xraph/rewards/plugin"
	"github.com/xraph/rewards/store"
)

// Policy defaults.
const (
	DefaultRewardPerInvoice int64 = 100
	DefaultAccessKeyLength        = 44
)

// Engine is the settlement core: it accepts receipts, drives the seller to
// store link state machine and posts coins to the ledger.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	locker   lock.Locker
	issuers  issuer.Checker
	validate *validator.Validate
	now      func() time.Time

	// Policy
	rewardPerInvoice int64
	accessKeyLength  int
	enforceIssuers   bool
	accessKeyTag     string
}

// New creates a new Engine on top of s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		locker:           lockmemory.New(),
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		now:              time.Now,
		rewardPerInvoice: DefaultRewardPerInvoice,
		accessKeyLength:  DefaultAccessKeyLength,
		enforceIssuers:   true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.issuers == nil {
		e.issuers = storeChecker{store: s}
	}
	e.accessKeyTag = fmt.Sprintf("required,number,len=%d", e.accessKeyLength)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRewardPerInvoice sets the coins granted for every accepted receipt.
func WithRewardPerInvoice(coins int64) Option {
	return func(e *Engine) {
		if coins >= 0 {
			e.rewardPerInvoice = coins
		}
	}
}

// WithAccessKeyLength sets the exact number of digits of a receipt access key.
func WithAccessKeyLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.accessKeyLength = n
		}
	}
}

// WithIssuerAllowList turns the issuer allow-list gate on or off.
// The gate is on by default.
func WithIssuerAllowList(enabled bool) Option {
	return func(e *Engine) { e.enforceIssuers = enabled }
}

// WithIssuerChecker replaces the store-backed issuer allow-list.
func WithIssuerChecker(c issuer.Checker) Option {
	return func(e *Engine) { e.issuers = c }
}

// WithLocker sets the keyed lock used to serialize link updates and
// standby replays. Use lock/redis when several engines share a database.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("rewards engine started",
		"reward_per_invoice", e.rewardPerInvoice,
		"access_key_length", e.accessKeyLength,
		"issuer_allow_list", e.enforceIssuers,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// lockKey serializes work on one resource.
func (e *Engine) lockKey(ctx context.Context, namespace, ident string) (func(), error) {
	unlock, err := e.locker.Lock(ctx, lock.Key(namespace, ident))
	if err != nil {
		return nil, StorageError("acquire "+namespace+" lock", err)
	}
	return unlock, nil
}

// fail logs a rolled-back settlement unit and notifies plugins.
func (e *Engine) fail(ctx context.Context, op string, err error, attrs ...any) error {
	err = StorageError(op, err)
	if IsRetryable(err) {
		e.logger.Error("settlement failed", append([]any{"op", op, "error", err}, attrs...)...)
		e.plugins.EmitSettlementFailed(ctx, op, err)
	} else {
		e.logger.Debug("settlement rejected", append([]any{"op", op, "error", err}, attrs...)...)
	}
	return err
}
