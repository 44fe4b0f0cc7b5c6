package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Poll      PollConfig      `mapstructure:"poll"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Cron      CronConfig      `mapstructure:"cron"`
}

type AppConfig struct {
	Env     string `mapstructure:"env"`
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "memory".
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone         string        `mapstructure:"timezone"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type AuthConfig struct {
	AdminAPIKey     string        `mapstructure:"admin_api_key"`
	APIKeyTTL       time.Duration `mapstructure:"api_key_ttl"`
	PublisherSignup bool          `mapstructure:"publisher_signup"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
}

type LedgerConfig struct {
	MaxPayloadBytes int  `mapstructure:"max_payload_bytes"`
	MaxBatchSize    int  `mapstructure:"max_batch_size"`
	RestrictToOwner bool `mapstructure:"restrict_to_owner"`
}

type PollConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPageSize int `mapstructure:"max_page_size"`
}

type RateLimitConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Backend string              `mapstructure:"backend"`
	Redis   RedisConfig         `mapstructure:"redis"`
	Tiers   map[string]TierRule `mapstructure:"tiers"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TierRule struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type CronConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SubscriptionExpiry string `mapstructure:"subscription_expiry"`
	SessionCleanup     string `mapstructure:"session_cleanup"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.name", "signal-transceiver")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 8<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.lock_timeout", "3s")
	v.SetDefault("db.statement_timeout", "10s")

	v.SetDefault("auth.admin_api_key", "")
	v.SetDefault("auth.api_key_ttl", "720h")
	v.SetDefault("auth.publisher_signup", false)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("ledger.max_payload_bytes", 65535)
	v.SetDefault("ledger.max_batch_size", 100)
	v.SetDefault("ledger.restrict_to_owner", true)

	v.SetDefault("poll.page_size", 100)
	v.SetDefault("poll.max_page_size", 1000)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.redis.addr", "127.0.0.1:6379")
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)
	v.SetDefault("rate_limit.redis.prefix", "st:rl")
	v.SetDefault("rate_limit.tiers", map[string]any{
		"auth":       map[string]any{"requests": 10, "window": "1m"},
		"data_write": map[string]any{"requests": 50, "window": "1m"},
		"data_read":  map[string]any{"requests": 200, "window": "1m"},
		"default":    map[string]any{"requests": 100, "window": "1m"},
	})

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("audit.topic", "transceiver.audit")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.subscription_expiry", "@every 1m")
	v.SetDefault("cron.session_cleanup", "@every 1h")
}
