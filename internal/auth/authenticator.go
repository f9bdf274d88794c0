// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const bearerScheme = "bearer "

// ErrorResponse is the JSON body returned for every rejected request.
type ErrorResponse struct {
	StatusCode   int    `json:"status_code"`
	ErrorMessage string `json:"error_message"`
}

// NewErrorResponse maps err to its public response body.
func NewErrorResponse(err error) ErrorResponse {
	kind := KindOf(err)
	return ErrorResponse{
		StatusCode:   kind.StatusCode(),
		ErrorMessage: kind.PublicMessage(),
	}
}

// Authenticator guards routes by decoding the caller's token and evaluating
// the route's required permission.
type Authenticator struct {
	codec *TokenCodec
}

// NewAuthenticator creates an Authenticator using codec.
func NewAuthenticator(codec *TokenCodec) (*Authenticator, error) {
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	return &Authenticator{codec: codec}, nil
}

// BearerToken extracts the token from an Authorization header value. The
// "Bearer " scheme is optional and matched case-insensitively.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len(bearerScheme) && strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		header = strings.TrimSpace(header[len(bearerScheme):])
	}
	return header
}

// Authenticate checks the Authorization header against required. Checks run
// in a fixed order and stop at the first failure: presence, signature,
// expiry, permission.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string, required Permission) (Identity, error) {
	span := trace.SpanFromContext(ctx)

	token := BearerToken(authorization)
	if token == "" {
		return Identity{}, invalidToken(errors.New("missing authorization header"))
	}

	claims, err := a.codec.Decode(token)
	if err != nil {
		return Identity{}, err
	}

	if claims.Expired(a.codec.Now()) {
		return Identity{}, expiredCredentials()
	}

	if !Evaluate(claims, required) {
		slog.DebugContext(ctx, "permission denied", "subject", claims.Subject)
		return Identity{}, forbidden()
	}

	span.SetAttributes(attribute.String("auth.subject", claims.Subject))
	return Identity{UserID: claims.Subject}, nil
}

// Middleware wraps a net/http handler with Authenticate. Rejected requests
// receive an ErrorResponse and never reach next.
func (a *Authenticator) Middleware(required Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"), required)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WriteError writes the ErrorResponse for err.
func WriteError(w http.ResponseWriter, err error) {
	body := NewErrorResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.StatusCode)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Warn("failed to write error response", "error", encErr)
	}
}
