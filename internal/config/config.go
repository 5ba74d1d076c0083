package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"token-alerts/internal/logging"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	Logging   logging.Config    `mapstructure:"logging"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Ethereum  EthereumConfig    `mapstructure:"ethereum"`
	Slack     SlackConfig       `mapstructure:"slack"`
	Heartbeat HeartbeatConfig   `mapstructure:"heartbeat"`
	Server    ServerConfig      `mapstructure:"server"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Secrets   map[string]string `mapstructure:"secrets"`
	Export    ExportConfig      `mapstructure:"export"`
	Retention RetentionConfig   `mapstructure:"retention"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects the durable KV backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig encapsulates Redis connectivity.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// EthereumConfig covers on-chain data access. RPCOverrides maps a decimal chain
// id to a full RPC URL used instead of the provider URL. The API key is still required.
type EthereumConfig struct {
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	RPCOverrides   map[string]string `mapstructure:"rpc_overrides"`
}

// SlackConfig tunes webhook delivery.
type SlackConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// HeartbeatConfig sets the liveness cadence.
type HeartbeatConfig struct {
	Cadence uint64 `mapstructure:"cadence"`
}

// ServerConfig governs the event intake listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig names the Prometheus namespace.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// RetentionConfig controls pruning of the alert audit table while serving.
type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKENALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tokenalerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.backend", BackendMemory)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "tokenalerts:")

	v.SetDefault("ethereum.request_timeout", "15s")

	v.SetDefault("slack.timeout", "10s")

	v.SetDefault("heartbeat.cadence", 100)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.handler_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "token_alerts")

	// Registered so TOKENALERTS_SECRETS_* environment variables are picked up.
	v.SetDefault("secrets.slack_webhook", "")
	v.SetDefault("secrets.alchemy_api_key", "")

	v.SetDefault("export.max_data_points", 10000)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.interval", "1h")
	v.SetDefault("retention.max_age", "2160h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, postgres, redis; got %q", c.Storage.Backend)
	}
	if c.Heartbeat.Cadence == 0 {
		return fmt.Errorf("heartbeat.cadence must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Retention.Enabled && (c.Retention.Interval <= 0 || c.Retention.MaxAge <= 0) {
		return fmt.Errorf("retention.interval and retention.max_age must be positive when retention is enabled")
	}
	for id, url := range c.Ethereum.RPCOverrides {
		if strings.TrimSpace(url) == "" {
			return fmt.Errorf("ethereum.rpc_overrides.%s must not be empty", id)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
