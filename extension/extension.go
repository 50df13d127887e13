// Package extension provides the Forge extension adapter for the rewards
// engine.
//
// It implements the forge.Extension interface to integrate rewards into a
// Forge application with store selection, DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.rewards" or "rewards" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rewards"
	redislock "github.com/xraph/rewards/lock/redis"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/gormstore"
	"github.com/xraph/rewards/store/memory"
	mongostore "github.com/xraph/rewards/store/mongo"
	"github.com/xraph/rewards/store/postgres"
	"github.com/xraph/rewards/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "rewards"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Receipt rewards ledger with seller to store revenue sharing"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the rewards engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *rewards.Engine
	store      store.Store
	redis      *goredis.Client
	engineOpts []rewards.Option
}

// New creates a new rewards Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying rewards engine.
// This is nil until Register is called.
func (e *Extension) Engine() *rewards.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration, opens the
// store, builds the engine and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := OpenStore(context.Background(), e.config)
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = rewards.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*rewards.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("rewards: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("rewards: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// OpenStore builds the backend named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.Open(ctx, cfg.StoreDSN)
	case DriverPostgres:
		return postgres.Open(ctx, cfg.StoreDSN)
	case DriverGorm:
		return gormstore.OpenPostgres(cfg.StoreDSN)
	case DriverMongo:
		client, err := mongodriver.Connect(options.Client().ApplyURI(cfg.StoreDSN))
		if err != nil {
			return nil, fmt.Errorf("rewards: connect mongo: %w", err)
		}
		name := cfg.MongoDatabase
		if name == "" {
			name = DefaultConfig().MongoDatabase
		}
		return mongostore.New(client.Database(name)), nil
	default:
		return nil, fmt.Errorf("rewards: unknown store driver %q", cfg.StoreDriver)
	}
}

// buildEngineOpts constructs rewards.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []rewards.Option {
	opts := make([]rewards.Option, 0, len(e.engineOpts)+4)

	opts = append(opts,
		rewards.WithRewardPerInvoice(e.config.RewardPerInvoice),
		rewards.WithAccessKeyLength(e.config.AccessKeyLength),
		rewards.WithIssuerAllowList(!e.config.DisableIssuerAllowList),
	)

	if e.config.RedisAddr != "" {
		e.redis = goredis.NewClient(&goredis.Options{Addr: e.config.RedisAddr})
		opts = append(opts, rewards.WithLocker(
			redislock.New(e.redis, redislock.WithTTL(e.config.LockTTL)),
		))
	}

	// Pass-through engine options win over config.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("rewards: configuration is required but not found in config files; " +
				"ensure 'extensions.rewards' or 'rewards' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("rewards: configuration loaded",
		forge.F("reward_per_invoice", e.config.RewardPerInvoice),
		forge.F("access_key_length", e.config.AccessKeyLength),
		forge.F("disable_issuer_allow_list", e.config.DisableIssuerAllowList),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("redis_lock", e.config.RedisAddr != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.rewards", "rewards"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("rewards: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("rewards: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.RewardPerInvoice == 0 {
		cfg.RewardPerInvoice = defaults.RewardPerInvoice
	}
	if cfg.AccessKeyLength == 0 {
		cfg.AccessKeyLength = defaults.AccessKeyLength
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = defaults.MongoDatabase
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and bool
// flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableIssuerAllowList {
		yamlConfig.DisableIssuerAllowList = true
	}

	if yamlConfig.RewardPerInvoice == 0 {
		yamlConfig.RewardPerInvoice = programmaticConfig.RewardPerInvoice
	}
	if yamlConfig.AccessKeyLength == 0 {
		yamlConfig.AccessKeyLength = programmaticConfig.AccessKeyLength
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
		yamlConfig.StoreDSN = programmaticConfig.StoreDSN
	}
	if yamlConfig.MongoDatabase == "" {
		yamlConfig.MongoDatabase = programmaticConfig.MongoDatabase
	}
	if yamlConfig.RedisAddr == "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}
	if yamlConfig.LockTTL == 0 {
		yamlConfig.LockTTL = programmaticConfig.LockTTL
	}

	return mergeWithDefaults(yamlConfig)
}
