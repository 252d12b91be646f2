// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// OTP store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Environment string
	Server      ServerConfig
	Log         LogConfig
	Database    DatabaseConfig
	OTP         OTPConfig
	Redis       RedisConfig
	Token       TokenConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type OTPConfig struct {
	Store         string        // sqlite, redis
	TTL           time.Duration // validity window of an issued code
	Retention     time.Duration // how long expired records are kept before sweeping
	SweepInterval time.Duration // 0 disables the background sweeper
}

type RedisConfig struct {
	URL string
}

type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Environment: strings.ToLower(cmd.String("environment")),
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		OTP: OTPConfig{
			Store:         strings.ToLower(cmd.String("store")),
			TTL:           cmd.Duration("otp-ttl"),
			Retention:     cmd.Duration("otp-retention"),
			SweepInterval: cmd.Duration("otp-sweep-interval"),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
		Token: TokenConfig{
			Secret: cmd.String("token-secret"),
			TTL:    cmd.Duration("token-ttl"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// IsDevelopment reports whether the service runs in development mode, where
// issued codes are echoed back to the client.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.OTP.Store {
	case StoreSQLite:
	case StoreRedis:
		if c.Redis.URL == "" {
			return errors.New("redis-url is required when store is redis")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.OTP.Store, StoreSQLite, StoreRedis)
	}

	if c.OTP.TTL <= 0 {
		return errors.New("otp-ttl must be positive")
	}
	if c.OTP.Retention < 0 {
		return errors.New("otp-retention must not be negative")
	}
	if c.Token.TTL <= 0 {
		return errors.New("token-ttl must be positive")
	}
	if c.Token.Secret == "" && !c.IsDevelopment() {
		return errors.New("token-secret is required outside development")
	}
	return nil
}

// buildBaseURL assumes TLS is terminated by a proxy for non-local hosts.
func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if !IsLocalhost(host) {
		return fmt.Sprintf("https://%s", host)
	}

	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "environment",
			Value:   EnvProduction,
			Usage:   "Runtime environment (development, production)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ENVIRONMENT"), toml.TOML("environment", configFile)),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// OTP flags
		&cli.StringFlag{
			Name:    "store",
			Value:   StoreSQLite,
			Usage:   "OTP store backend (sqlite, redis)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_STORE"), toml.TOML("otp.store", configFile)),
		},
		&cli.DurationFlag{
			Name:    "otp-ttl",
			Value:   5 * time.Minute,
			Usage:   "How long an issued code stays valid",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_TTL"), toml.TOML("otp.ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "otp-retention",
			Value:   24 * time.Hour,
			Usage:   "How long expired codes are kept before they are swept",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_RETENTION"), toml.TOML("otp.retention", configFile)),
		},
		&cli.DurationFlag{
			Name:    "otp-sweep-interval",
			Value:   10 * time.Minute,
			Usage:   "Interval of the background sweeper (0 disables it)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_SWEEP_INTERVAL"), toml.TOML("otp.sweep_interval", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL, e.g. redis://localhost:6379/0",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_URL"), toml.TOML("redis.url", configFile)),
		},
		// Token flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC secret for login tokens (at least 32 bytes, generated per run in development if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_SECRET"), toml.TOML("token.secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   30 * 24 * time.Hour,
			Usage:   "Lifetime of login tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_TTL"), toml.TOML("token.ttl", configFile)),
		},
	}
}
