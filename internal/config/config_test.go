// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/devices/internal/config"
	"github.com/holomush/devices/pkg/errutil"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
application:
  port: 8000
database:
  host: db.internal
  password: base-password
jwt:
  secret_key: "`+secret+`"
`)
	writeFile(t, dir, "production.yaml", `
application:
  host: 0.0.0.0
database:
  require_ssl: true
`)
	t.Setenv("APP_ENVIRONMENT", "production")
	t.Setenv("APP__DATABASE__DATABASE_NAME", "fleet")
	t.Setenv("APP__JWT__TTL", "1h")
	t.Setenv("APP__APPLICATION__PORT", "8100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("application.port", 0, "")
	flags.String("log.level", "info", "")
	require.NoError(t, flags.Parse([]string{"--application.port=9000"}))

	cfg, err := config.Load(config.LoadOptions{Dir: dir, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, config.EnvironmentProduction, cfg.Environment)
	assert.Equal(t, "0.0.0.0", cfg.Application.Host, "environment file overrides default")
	assert.Equal(t, 9000, cfg.Application.Port, "flag overrides env")
	assert.Equal(t, "db.internal", cfg.Database.Host, "base file overrides default")
	assert.Equal(t, 5432, cfg.Database.Port, "default kept")
	assert.Equal(t, "fleet", cfg.Database.DatabaseName, "env overrides default")
	assert.True(t, cfg.Database.RequireSSL)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "info", cfg.Log.Level, "unchanged flag does not apply")
}

func TestLoad_DefaultsToLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.yaml", "log:\n  format: text\n")
	t.Setenv("APP_ENVIRONMENT", "")
	t.Setenv("APP__JWT__SECRET_KEY", secret)

	cfg, err := config.Load(config.LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, config.EnvironmentLocal, cfg.Environment)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 15*24*time.Hour, cfg.JWT.TTL)
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "staging")
	_, err := config.Load(config.LoadOptions{Dir: t.TempDir()})
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "application: [unterminated")
	_, err := config.Load(config.LoadOptions{Dir: dir, Environment: config.EnvironmentLocal})
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		c := config.Default()
		c.JWT.SecretKey = secret
		return c
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"missing secret", func(c *config.Config) { c.JWT.SecretKey = "" }, "jwt.secret_key"},
		{"short secret", func(c *config.Config) { c.JWT.SecretKey = "short" }, "jwt.secret_key"},
		{"zero ttl", func(c *config.Config) { c.JWT.TTL = 0 }, "jwt.ttl"},
		{"bad app port", func(c *config.Config) { c.Application.Port = 70000 }, "application.port"},
		{"bad db port", func(c *config.Config) { c.Database.Port = 0 }, "database.port"},
		{"missing db host", func(c *config.Config) { c.Database.Host = "" }, "database.host"},
		{"negative workers", func(c *config.Config) { c.Hashing.Workers = -1 }, "hashing.workers"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}

	c := valid()
	require.NoError(t, c.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	d := config.DatabaseConfig{
		Host:         "db",
		Port:         5433,
		Username:     "app",
		Password:     "p@ss word",
		DatabaseName: "devices",
		RequireSSL:   true,
	}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5433/devices?sslmode=require", d.URL())

	d.RequireSSL = false
	assert.Contains(t, d.URL(), "sslmode=prefer")
}

func TestApplicationConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8000", config.ApplicationConfig{Host: "127.0.0.1", Port: 8000}.Addr())
}
