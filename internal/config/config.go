package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema         string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir    string        `mapstructure:"MIGRATIONS_DIR"`
	AutoMigrate      bool          `mapstructure:"AUTO_MIGRATE"`
	SeedOnStart      bool          `mapstructure:"SEED_ON_START"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	CSRFEnabled      bool          `mapstructure:"CSRF_ENABLED"`
	CSRFCookieSecure bool          `mapstructure:"CSRF_COOKIE_SECURE"`
	MetricsEnabled   bool          `mapstructure:"METRICS_ENABLED"`
	MetricsNamespace string        `mapstructure:"METRICS_NAMESPACE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"MIGRATIONS_DIR", "AUTO_MIGRATE", "SEED_ON_START", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"CSRF_ENABLED", "CSRF_COOKIE_SECURE", "METRICS_ENABLED", "METRICS_NAMESPACE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("SEED_ON_START", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("CSRF_ENABLED", true)
	v.SetDefault("CSRF_COOKIE_SECURE", false)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_NAMESPACE", "randevu")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.DBSchema == "" {
		return fmt.Errorf("DB_SCHEMA is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	// Forgery protection is only optional outside production.
	if c.IsProduction() && !c.CSRFEnabled {
		return fmt.Errorf("CSRF_ENABLED cannot be disabled in production")
	}
	if c.IsProduction() && !c.CSRFCookieSecure {
		return fmt.Errorf("CSRF_COOKIE_SECURE must be true in production")
	}
	return nil
}
