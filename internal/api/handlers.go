// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/pkg/errutil"
)

// LoginRequest is the body of POST /api/v1/login. Both keys must be present;
// empty values are accepted and fail credential validation.
type LoginRequest struct {
	Username *string `json:"username" binding:"required"`
	Password *string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token string `json:"token"`
}

// MeResponse identifies the caller.
type MeResponse struct {
	UserID string `json:"user_id"`
}

type handlers struct {
	deps Deps
}

func (h *handlers) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *handlers) login(c *gin.Context) {
	ctx := c.Request.Context()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.recordLogin("malformed_request")
		respondError(c, auth.MalformedRequestError(err))
		return
	}

	principal, err := h.deps.Validator.Validate(ctx, auth.NewCredentials(*req.Username, *req.Password))
	if err != nil {
		switch auth.KindOf(err) {
		case auth.KindInvalidCredentials:
			h.recordLogin("invalid_credentials")
			h.deps.Logger.DebugContext(ctx, "login rejected", "username", *req.Username)
		default:
			h.recordLogin("error")
			errutil.LogError(ctx, h.deps.Logger, "login failed", err)
		}
		respondError(c, err)
		return
	}

	token, err := h.deps.Codec.Issue(principal.ID.String(), principal.Roles, principal.Permissions, h.deps.TokenTTL)
	if err != nil {
		h.recordLogin("error")
		errutil.LogError(ctx, h.deps.Logger, "token issue failed", err)
		respondError(c, err)
		return
	}

	h.recordLogin("success")
	h.deps.Logger.InfoContext(ctx, "login succeeded", "user_id", principal.ID.String())
	c.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (h *handlers) recordLogin(result string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

func (h *handlers) me(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MeResponse{UserID: id.UserID})
}

func (h *handlers) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": []any{}})
}

func (h *handlers) createDevice(c *gin.Context) {
	c.Status(http.StatusAccepted)
}

func (h *handlers) adminHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
