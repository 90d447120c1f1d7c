// Package config loads server and worker settings from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Shift end policies for a shift that still has an open cashbox session.
const (
	ShiftEndReject  = "reject"
	ShiftEndCascade = "cascade"
)

const devJWTSecret = "dev-only-cashbox-secret-change-me"

// Config holds application configuration loaded from the environment.
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL wins over the discrete DB_* settings when set.
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	JWTSecret    string `mapstructure:"JWT_SECRET"`
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// ShiftEndPolicy decides what EndShift does with a still-open session: reject or cascade.
	ShiftEndPolicy    string `mapstructure:"SHIFT_END_POLICY"`
	DefaultHourlyRate string `mapstructure:"DEFAULT_HOURLY_RATE"`
	RetryMaxTries     uint   `mapstructure:"RETRY_MAX_TRIES"`

	// KafkaBrokers is a comma-separated broker list; events are only logged when empty.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	EventsTopic  string `mapstructure:"EVENTS_TOPIC"`

	LiquidationInterval string `mapstructure:"LIQUIDATION_INTERVAL"`
	AuthzPolicyFile     string `mapstructure:"AUTHZ_POLICY_FILE"`
	MetricsEnabled      bool   `mapstructure:"METRICS_ENABLED"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "cashbox_user")
	v.SetDefault("DB_PASSWORD", "cashbox_password")
	v.SetDefault("DB_NAME", "cashbox_db")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("SHIFT_END_POLICY", ShiftEndReject)
	v.SetDefault("DEFAULT_HOURLY_RATE", "5000")
	v.SetDefault("RETRY_MAX_TRIES", 3)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_TOPIC", "cashbox-events")
	v.SetDefault("LIQUIDATION_INTERVAL", "24h")
	v.SetDefault("AUTHZ_POLICY_FILE", "")
	v.SetDefault("METRICS_ENABLED", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ShiftEndPolicy = strings.ToLower(strings.TrimSpace(cfg.ShiftEndPolicy))
	if cfg.ShiftEndPolicy != ShiftEndReject && cfg.ShiftEndPolicy != ShiftEndCascade {
		return nil, fmt.Errorf("config: SHIFT_END_POLICY must be %q or %q, got %q", ShiftEndReject, ShiftEndCascade, cfg.ShiftEndPolicy)
	}

	rate, err := decimal.NewFromString(cfg.DefaultHourlyRate)
	if err != nil || rate.IsNegative() {
		return nil, errors.New("config: DEFAULT_HOURLY_RATE must be a non-negative number")
	}

	if cfg.RetryMaxTries == 0 {
		cfg.RetryMaxTries = 1
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// DSN returns the Postgres connection string, preferring DATABASE_URL.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// LiquidationEvery parses LiquidationInterval. Returns 24h if unset or invalid.
func (c *Config) LiquidationEvery() time.Duration {
	d, err := time.ParseDuration(c.LiquidationInterval)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// HourlyRate returns the fallback hourly rate used when an employee has none.
func (c *Config) HourlyRate() decimal.Decimal {
	rate, err := decimal.NewFromString(c.DefaultHourlyRate)
	if err != nil {
		return decimal.NewFromInt(5000)
	}
	return rate
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
