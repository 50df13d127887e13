package extension

import "time"

// Store drivers understood by Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverGorm     = "gorm"
)

// Config holds the rewards extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.rewards" or "rewards" keys).
type Config struct {
	// RewardPerInvoice is the number of coins granted per accepted receipt
	// (default: 100).
	RewardPerInvoice int64 `json:"reward_per_invoice" mapstructure:"reward_per_invoice" yaml:"reward_per_invoice"`

	// AccessKeyLength is the exact number of digits of a receipt access key
	// (default: 44).
	AccessKeyLength int `json:"access_key_length" mapstructure:"access_key_length" yaml:"access_key_length"`

	// DisableIssuerAllowList accepts receipts from any issuer.
	DisableIssuerAllowList bool `json:"disable_issuer_allow_list" mapstructure:"disable_issuer_allow_list" yaml:"disable_issuer_allow_list"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// StoreDriver selects the backend when no store is set programmatically:
	// memory, sqlite, postgres, gorm (PostgreSQL through GORM) or mongo
	// (default: memory).
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// StoreDSN is the connection string for the selected driver.
	StoreDSN string `json:"store_dsn" mapstructure:"store_dsn" yaml:"store_dsn"`

	// MongoDatabase names the database used by the mongo driver
	// (default: "rewards").
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database"`

	// RedisAddr enables the Redis lock so several instances sharing one
	// database serialize link updates and replays.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// LockTTL bounds how long a Redis lock is held (default: 30s).
	LockTTL time.Duration `json:"lock_ttl" mapstructure:"lock_ttl" yaml:"lock_ttl"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RewardPerInvoice: 100,
		AccessKeyLength:  44,
		StoreDriver:      DriverMemory,
		MongoDatabase:    "rewards",
		LockTTL:          30 * time.Second,
	}
}
