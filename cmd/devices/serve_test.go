// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/config"
	"github.com/holomush/devices/internal/observability"
)

type staticStore map[string]*auth.StoredCredential

func (s staticStore) Lookup(_ context.Context, username string) (*auth.StoredCredential, error) {
	if c, ok := s[username]; ok {
		return c, nil
	}
	return nil, auth.ErrNotFound
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.JWT.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.Hashing.Workers = 1
	return &cfg
}

func TestNewApplication_ServesLogin(t *testing.T) {
	hash, err := auth.NewArgon2idHasher().Hash("change-me")
	require.NoError(t, err)
	userID := uuid.New()
	creds := staticStore{"admin": {
		UserID:       userID,
		PasswordHash: auth.NewSecret(hash),
		Roles:        []string{"admin"},
	}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	app, err := newApplication(testConfig(), creds, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer app.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"username":"admin","password":"change-me"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/health", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApplication_RejectsWeakSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.SecretKey = "short"

	app, err := newApplication(cfg, staticStore{}, nil, slog.Default())
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestNewApplication_RequiresStore(t *testing.T) {
	app, err := newApplication(testConfig(), nil, nil, slog.Default())
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("listener closed")

		monitorServerErrors(ctx, cancel, errCh, "test")

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context was not cancelled")
		}
	})

	t.Run("closed channel leaves context alone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "test")
		assert.NoError(t, ctx.Err())
	})
}
