// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/logging"
	"github.com/holomush/devices/internal/observability"
	"github.com/holomush/devices/pkg/errutil"
)

// RequestIDHeader carries the per-request ULID.
const RequestIDHeader = "X-Request-Id"

// requestID assigns every request a ULID, echoes it in the response and puts
// it in the request context for logging.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ulid.Make().String()
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog logs one line per request and records request metrics.
func accessLog(logger *slog.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		if metrics != nil {
			metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
			metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}

		logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

// recovery turns a handler panic into a 500 ErrorResponse.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := oops.Code(auth.CodeUnexpected).Errorf("panic: %v", recovered)
		errutil.LogError(c.Request.Context(), logger, "handler panicked", err)
		respondError(c, err)
	})
}

// RequirePermission rejects the request unless its Authorization header
// carries a valid, unexpired token satisfying required. On success the
// identity is attached to the request context.
func RequirePermission(authn *auth.Authenticator, required auth.Permission, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authn.Authenticate(c.Request.Context(), c.GetHeader("Authorization"), required)
		if err != nil {
			if metrics != nil {
				metrics.AuthRejections.WithLabelValues(auth.KindOf(err).String()).Inc()
			}
			respondError(c, err)
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// respondError aborts with the public ErrorResponse for err.
func respondError(c *gin.Context, err error) {
	body := auth.NewErrorResponse(err)
	c.AbortWithStatusJSON(body.StatusCode, body)
}

// identity returns the caller attached by RequirePermission.
func identity(c *gin.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		return auth.Identity{}, oops.Code(auth.CodeUnexpected).Wrap(errors.New("route is missing authentication"))
	}
	return id, nil
}
