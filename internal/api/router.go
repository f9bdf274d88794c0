// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api exposes the HTTP interface: login, identity and the
// permission-guarded device routes.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/observability"
)

// CredentialValidator checks login credentials.
type CredentialValidator interface {
	Validate(ctx context.Context, creds auth.Credentials) (*auth.Principal, error)
}

// Permissions guarding the device routes.
var (
	PermReadDevices   = auth.RequirePermissions("read:devices")
	PermCreateDevices = auth.RequirePermissions("read:devices", "create:device")
	PermAdmin         = auth.Role{Name: "admin"}
)

// Deps are the collaborators of the router.
type Deps struct {
	Validator     CredentialValidator
	Codec         *auth.TokenCodec
	Authenticator *auth.Authenticator
	TokenTTL      time.Duration
	// Metrics is optional.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Validator == nil:
		return oops.Errorf("credential validator is required")
	case d.Codec == nil:
		return oops.Errorf("token codec is required")
	case d.Authenticator == nil:
		return oops.Errorf("authenticator is required")
	case d.TokenTTL <= 0:
		return oops.Errorf("token ttl must be positive")
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &handlers{deps: deps}
	guard := func(p auth.Permission) gin.HandlerFunc {
		return RequirePermission(deps.Authenticator, p, deps.Metrics)
	}

	r := gin.New()
	r.Use(requestID(), accessLog(deps.Logger, deps.Metrics), recovery(deps.Logger))

	v1 := r.Group("/api/v1")
	v1.GET("/health_check", h.healthCheck)
	v1.POST("/login", h.login)
	v1.GET("/me", guard(auth.Empty{}), h.me)
	v1.GET("/devices", guard(PermReadDevices), h.listDevices)
	v1.POST("/devices", guard(PermCreateDevices), h.createDevice)
	v1.GET("/admin/health", guard(PermAdmin), h.adminHealth)

	return r, nil
}
