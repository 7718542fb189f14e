// Package config loads engine configuration with viper. Settings come from
// environment variables, optionally seeded by a .env file; limits default to
// the values the safeguards were tuned for.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the safeguard engine.
type Config struct {
	Addr string `mapstructure:"FUNDGATE_ADDR"`

	// Durable state locations.
	DataDir       string `mapstructure:"FUNDGATE_DATA_DIR"`
	AuditPath     string `mapstructure:"FUNDGATE_AUDIT_PATH"`
	QuotaPath     string `mapstructure:"FUNDGATE_QUOTA_PATH"`
	AuditBackend  string `mapstructure:"FUNDGATE_AUDIT_BACKEND"` // "file" or "postgres"
	PostgresURL   string `mapstructure:"FUNDGATE_POSTGRES_URL"`
	RedisURL      string `mapstructure:"FUNDGATE_REDIS_URL"`
	JWTSigningKey string `mapstructure:"FUNDGATE_JWT_SIGNING_KEY"`

	// Upstream ledger API.
	UpstreamURL       string `mapstructure:"FUNDGATE_UPSTREAM_URL"`
	UpstreamToken     string `mapstructure:"FUNDGATE_UPSTREAM_TOKEN"`
	UpstreamProfileID string `mapstructure:"FUNDGATE_UPSTREAM_PROFILE_ID"`

	// Safeguard limits, all amounts in minor currency units.
	PerTransferLimitCents int64 `mapstructure:"FUNDGATE_PER_TRANSFER_LIMIT_CENTS"`
	DailyLimitCents       int64 `mapstructure:"FUNDGATE_DAILY_LIMIT_CENTS"`
	GlobalDailyCents      int64 `mapstructure:"FUNDGATE_GLOBAL_DAILY_LIMIT_CENTS"`

	// Two-phase confirmation.
	StagingTTLSeconds int `mapstructure:"FUNDGATE_STAGING_TTL_SECONDS"`

	// Conversational front end throttle.
	RateLimitMessages      int `mapstructure:"FUNDGATE_RATE_LIMIT_MESSAGES"`
	RateLimitWindowSeconds int `mapstructure:"FUNDGATE_RATE_LIMIT_WINDOW_SECONDS"`
}

// StagingTTL returns the staged-transfer time-to-live as a duration.
func (c Config) StagingTTL() time.Duration {
	return time.Duration(c.StagingTTLSeconds) * time.Second
}

// RateLimitWindow returns the sliding-window width as a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// Load reads configuration from the environment, seeded by an optional .env
// file under path. Missing file is fine; the defaults carry a dev setup.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("FUNDGATE_ADDR", ":8080")
	v.SetDefault("FUNDGATE_DATA_DIR", ".")
	v.SetDefault("FUNDGATE_AUDIT_PATH", "")
	v.SetDefault("FUNDGATE_QUOTA_PATH", "")
	v.SetDefault("FUNDGATE_AUDIT_BACKEND", "file")
	v.SetDefault("FUNDGATE_POSTGRES_URL", "")
	v.SetDefault("FUNDGATE_REDIS_URL", "")
	v.SetDefault("FUNDGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production")
	v.SetDefault("FUNDGATE_UPSTREAM_URL", "")
	v.SetDefault("FUNDGATE_UPSTREAM_TOKEN", "")
	v.SetDefault("FUNDGATE_UPSTREAM_PROFILE_ID", "")
	v.SetDefault("FUNDGATE_PER_TRANSFER_LIMIT_CENTS", 1_000_000)
	v.SetDefault("FUNDGATE_DAILY_LIMIT_CENTS", 2_500_000)
	v.SetDefault("FUNDGATE_GLOBAL_DAILY_LIMIT_CENTS", 2_500_000)
	v.SetDefault("FUNDGATE_STAGING_TTL_SECONDS", 300)
	v.SetDefault("FUNDGATE_RATE_LIMIT_MESSAGES", 10)
	v.SetDefault("FUNDGATE_RATE_LIMIT_WINDOW_SECONDS", 60)

	for _, key := range []string{
		"FUNDGATE_ADDR", "FUNDGATE_DATA_DIR", "FUNDGATE_AUDIT_PATH",
		"FUNDGATE_QUOTA_PATH", "FUNDGATE_AUDIT_BACKEND", "FUNDGATE_POSTGRES_URL",
		"FUNDGATE_REDIS_URL", "FUNDGATE_JWT_SIGNING_KEY", "FUNDGATE_UPSTREAM_URL",
		"FUNDGATE_UPSTREAM_TOKEN", "FUNDGATE_UPSTREAM_PROFILE_ID",
		"FUNDGATE_PER_TRANSFER_LIMIT_CENTS", "FUNDGATE_DAILY_LIMIT_CENTS",
		"FUNDGATE_GLOBAL_DAILY_LIMIT_CENTS", "FUNDGATE_STAGING_TTL_SECONDS",
		"FUNDGATE_RATE_LIMIT_MESSAGES", "FUNDGATE_RATE_LIMIT_WINDOW_SECONDS",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.AuditPath == "" {
		cfg.AuditPath = cfg.DataDir + "/.audit.jsonl"
	}
	if cfg.QuotaPath == "" {
		cfg.QuotaPath = cfg.DataDir + "/.daily_limits.json"
	}
	if cfg.PerTransferLimitCents <= 0 {
		cfg.PerTransferLimitCents = 1_000_000
	}
	if cfg.DailyLimitCents <= 0 {
		cfg.DailyLimitCents = 2_500_000
	}
	if cfg.GlobalDailyCents <= 0 {
		cfg.GlobalDailyCents = cfg.DailyLimitCents
	}
	if cfg.StagingTTLSeconds <= 0 {
		cfg.StagingTTLSeconds = 300
	}
	if cfg.RateLimitMessages <= 0 {
		cfg.RateLimitMessages = 10
	}
	if cfg.RateLimitWindowSeconds <= 0 {
		cfg.RateLimitWindowSeconds = 60
	}

	return cfg, nil
}
