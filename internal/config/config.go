// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads service settings from layered sources: built-in
// defaults, base.yaml, <environment>.yaml, APP__ environment variables and
// command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment names accepted in APP_ENVIRONMENT.
const (
	EnvironmentLocal      = "local"
	EnvironmentProduction = "production"
)

const (
	envSelector = "APP_ENVIRONMENT"
	envPrefix   = "APP__"
	minSecret   = 32
)

// Config is the complete service configuration.
type Config struct {
	Environment string            `koanf:"-"`
	Application ApplicationConfig `koanf:"application"`
	Database    DatabaseConfig    `koanf:"database"`
	JWT         JWTConfig         `koanf:"jwt"`
	Hashing     HashingConfig     `koanf:"hashing"`
	Log         LogConfig         `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// ApplicationConfig is the API listener.
type ApplicationConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns host:port.
func (a ApplicationConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// DatabaseConfig describes the PostgreSQL server.
type DatabaseConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	DatabaseName   string        `koanf:"database_name"`
	RequireSSL     bool          `koanf:"require_ssl"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// URL returns a postgres:// connection URL.
func (d DatabaseConfig) URL() string {
	sslmode := "prefer"
	if d.RequireSSL {
		sslmode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DatabaseName,
		RawQuery: url.Values{"sslmode": []string{sslmode}}.Encode(),
	}
	return u.String()
}

// LogValue implements slog.LogValuer without the password.
func (d DatabaseConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", d.Host),
		slog.Int("port", d.Port),
		slog.String("username", d.Username),
		slog.String("database_name", d.DatabaseName),
		slog.Bool("require_ssl", d.RequireSSL),
	)
}

// JWTConfig configures token signing.
type JWTConfig struct {
	SecretKey string        `koanf:"secret_key"`
	TTL       time.Duration `koanf:"ttl"`
}

// HashingConfig sizes the password verification pool. Zero means one worker
// per CPU.
type HashingConfig struct {
	Workers int `koanf:"workers"`
}

// LogConfig selects log format and level.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig is the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Environment: EnvironmentLocal,
		Application: ApplicationConfig{Host: "127.0.0.1", Port: 8000},
		Database: DatabaseConfig{
			Host:           "127.0.0.1",
			Port:           5432,
			Username:       "postgres",
			DatabaseName:   "devices",
			ConnectTimeout: 2 * time.Second,
		},
		JWT:     JWTConfig{TTL: 15 * 24 * time.Hour},
		Log:     LogConfig{Format: "json", Level: "info"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
	}
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Dir holds base.yaml and the per-environment files.
	Dir string
	// Environment overrides APP_ENVIRONMENT when set.
	Environment string
	// Flags, when non-nil, are applied last. Only flags set on the command
	// line take part; their names use the dotted key form, e.g.
	// "application.port".
	Flags *pflag.FlagSet
}

// Load builds the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	environment := opts.Environment
	if environment == "" {
		environment = strings.ToLower(strings.TrimSpace(os.Getenv(envSelector)))
	}
	if environment == "" {
		environment = EnvironmentLocal
	}
	if environment != EnvironmentLocal && environment != EnvironmentProduction {
		return nil, oops.Code("CONFIG_INVALID").
			With("environment", environment).
			Errorf("%s must be %q or %q", envSelector, EnvironmentLocal, EnvironmentProduction)
	}

	k := koanf.New(".")

	for _, name := range []string{"base.yaml", environment + ".yaml"} {
		path := filepath.Join(opts.Dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}
	if opts.Flags != nil {
		changedOnly := func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(opts.Flags, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, changedOnly), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	cfg.Environment = environment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps APP__DATABASE__DATABASE_NAME to database.database_name.
func envKey(name string) string {
	name = strings.TrimPrefix(name, envPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	switch {
	case c.Application.Port < 1 || c.Application.Port > 65535:
		return invalid("application.port", "port %d out of range", c.Application.Port)
	case c.Database.Port < 1 || c.Database.Port > 65535:
		return invalid("database.port", "port %d out of range", c.Database.Port)
	case c.Database.Host == "":
		return invalid("database.host", "database host is required")
	case c.Database.DatabaseName == "":
		return invalid("database.database_name", "database name is required")
	case c.JWT.SecretKey == "":
		return invalid("jwt.secret_key", "jwt secret is required")
	case len(c.JWT.SecretKey) < minSecret:
		return invalid("jwt.secret_key", "jwt secret must be at least %d bytes", minSecret)
	case c.JWT.TTL <= 0:
		return invalid("jwt.ttl", "token ttl must be positive")
	case c.Hashing.Workers < 0:
		return invalid("hashing.workers", "worker count must not be negative")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}
