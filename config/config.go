// Package config loads geolb settings from flags, GEOLB_* environment
// variables, an optional .env file and an optional geolb.yaml, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "GEOLB"
	configFileName = "geolb"
)

// Config holds all server configuration.
type Config struct {
	Addr      string `mapstructure:"addr"`
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	// Strategy is the final pick strategy: "random" or "round-robin".
	Strategy string `mapstructure:"strategy"`
	// Seed makes random selection deterministic when non-zero.
	Seed uint64 `mapstructure:"seed"`

	// RateLimit is requests per second admitted by the front door; 0 disables it.
	RateLimit       float64       `mapstructure:"rate-limit"`
	RateBurst       int           `mapstructure:"rate-burst"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`

	// EtcdEndpoints enables mirroring clients announced in etcd when non-empty.
	EtcdEndpoints []string `mapstructure:"etcd-endpoints"`
	EtcdPrefix    string   `mapstructure:"etcd-prefix"`
	EtcdTTL       int64    `mapstructure:"etcd-ttl"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		Strategy:        "random",
		RateLimit:       100,
		RateBurst:       200,
		RequestTimeout:  2 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		EtcdPrefix:      "/geo-lb/clients/",
		EtcdTTL:         10,
	}
}

// RegisterFlags defines one flag per setting, defaulting to Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("addr", d.Addr, "listen address")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "log format (json, console)")
	fs.String("strategy", d.Strategy, "pick strategy (random, round-robin)")
	fs.Uint64("seed", d.Seed, "random seed; 0 uses a random seed")
	fs.Float64("rate-limit", d.RateLimit, "requests per second admitted; 0 disables rate limiting")
	fs.Int("rate-burst", d.RateBurst, "rate limiter burst size")
	fs.Duration("request-timeout", d.RequestTimeout, "per-request timeout")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown timeout")
	fs.StringSlice("etcd-endpoints", d.EtcdEndpoints, "etcd endpoints to mirror announced clients from")
	fs.String("etcd-prefix", d.EtcdPrefix, "etcd key prefix for announced clients")
	fs.Int64("etcd-ttl", d.EtcdTTL, "lease TTL in seconds for announcements")
}

// Load merges .env, geolb.yaml, environment and the command's flags into a
// validated Config.
func Load(cmd *cobra.Command) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(configFileName)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.EtcdEndpoints) == 0 {
		cfg.EtcdEndpoints = nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must be >= 0, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("rate-burst must be > 0 when rate limiting, got %d", c.RateBurst)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be > 0, got %s", c.RequestTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be > 0, got %s", c.ShutdownTimeout)
	}
	if len(c.EtcdEndpoints) > 0 && c.EtcdTTL <= 0 {
		return fmt.Errorf("etcd-ttl must be > 0, got %d", c.EtcdTTL)
	}
	return nil
}
