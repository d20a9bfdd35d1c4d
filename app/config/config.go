// Package config loads application configuration from config.yml, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is the development secret. It is rejected in production.
const DefaultJWTSecret = "memories-dev-secret-change-me"

// Store drivers.
const (
	DriverBadger = "badger"
	DriverMongo  = "mongo"
)

// Config holds application configuration values.
type Config struct {
	Env             string        `mapstructure:"APP_ENV"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	BadgerPath      string        `mapstructure:"BADGER_PATH"`
	MongoURI        string        `mapstructure:"MONGO_URI"`
	MongoDatabase   string        `mapstructure:"MONGO_DATABASE"`
	MongoCollection string        `mapstructure:"MONGO_COLLECTION"`
	ConflictRetries int           `mapstructure:"STORE_CONFLICT_RETRIES"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	StrictAuth      bool          `mapstructure:"STRICT_AUTH"`
	AllowedOrigins  string        `mapstructure:"ALLOWED_ORIGINS"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	RateLimitWrites int           `mapstructure:"RATE_LIMIT_WRITES"`
	NatsURL         string        `mapstructure:"NATS_URL"`
	MaxBodyBytes    int64         `mapstructure:"MAX_BODY_BYTES"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var keys = []string{
	"APP_ENV", "PORT", "LOG_LEVEL", "STORE_DRIVER", "BADGER_PATH", "MONGO_URI",
	"MONGO_DATABASE", "MONGO_COLLECTION", "STORE_CONFLICT_RETRIES", "JWT_SECRET",
	"STRICT_AUTH", "ALLOWED_ORIGINS", "REDIS_URL", "RATE_LIMIT_WRITES", "NATS_URL",
	"MAX_BODY_BYTES", "SHUTDOWN_TIMEOUT",
}

// Load reads an optional .env file and config.yml, then overlays the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	// Unmarshal only sees keys viper knows about, so bind every key to its env var.
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverBadger)
	v.SetDefault("BADGER_PATH", "data/badger")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "memories")
	v.SetDefault("MONGO_COLLECTION", "postmessages")
	v.SetDefault("STORE_CONFLICT_RETRIES", 5)
	v.SetDefault("JWT_SECRET", DefaultJWTSecret)
	v.SetDefault("STRICT_AUTH", false)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RATE_LIMIT_WRITES", 60)
	v.SetDefault("NATS_URL", "")
	v.SetDefault("MAX_BODY_BYTES", 30<<20)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Origins splits AllowedOrigins into a list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate ensures required values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.StoreDriver {
	case DriverBadger:
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER is mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ConflictRetries < 0 {
		return errors.New("STORE_CONFLICT_RETRIES must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be positive")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.IsProduction() {
		if c.JWTSecret == DefaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
	}
	return nil
}
