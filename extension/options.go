package extension

import (
	"time"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/plugin"
	"github.com/xraph/rewards/store"
)

// Option configures the rewards Forge extension.
type Option func(*Extension)

// WithStore sets the store for the rewards engine. It takes precedence over
// StoreDriver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a rewards.Option through to the underlying engine.
func WithEngineOption(opt rewards.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a rewards plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, rewards.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithRewardPerInvoice sets the coins granted per accepted receipt.
func WithRewardPerInvoice(coins int64) Option {
	return func(e *Extension) { e.config.RewardPerInvoice = coins }
}

// WithDisableIssuerAllowList accepts receipts from any issuer.
func WithDisableIssuerAllowList() Option {
	return func(e *Extension) { e.config.DisableIssuerAllowList = true }
}

// WithStoreDriver selects a backend by name and connection string.
func WithStoreDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.StoreDriver = driver
		e.config.StoreDSN = dsn
	}
}

// WithRedisLock serializes link updates across instances through Redis.
func WithRedisLock(addr string, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.RedisAddr = addr
		e.config.LockTTL = ttl
	}
}
