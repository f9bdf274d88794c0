// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"net/http"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Sentinels for the error taxonomy surfaced by the core. Callers classify
// errors with KindOf rather than comparing messages.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("expired credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrMalformedRequest   = errors.New("malformed request")
)

// Error codes attached to taxonomy errors.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeExpiredCredentials = "AUTH_EXPIRED_CREDENTIALS"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeMalformedRequest   = "AUTH_MALFORMED_REQUEST"
	CodeUnexpected         = "AUTH_UNEXPECTED"
)

// Kind classifies an error for transport mapping.
type Kind int

// Error kinds. KindUnexpected is the zero value so that anything unclassified
// fails as a server error.
const (
	KindUnexpected Kind = iota
	KindInvalidCredentials
	KindExpiredCredentials
	KindForbidden
	KindMalformedRequest
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindExpiredCredentials:
		return "ExpiredCredentials"
	case KindForbidden:
		return "Forbidden"
	case KindMalformedRequest:
		return "MalformedRequest"
	default:
		return "UnexpectedError"
	}
}

// StatusCode returns the HTTP status for the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalidCredentials, KindExpiredCredentials:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindMalformedRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to clients. It never
// includes the underlying cause.
func (k Kind) PublicMessage() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindExpiredCredentials:
		return "expired credentials"
	case KindForbidden:
		return "insufficient permissions"
	case KindMalformedRequest:
		return "malformed request"
	default:
		return "internal server error"
	}
}

// KindOf classifies err. A nil error has no meaningful kind and reports
// KindUnexpected; callers are expected to check for nil first.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrExpiredCredentials):
		return KindExpiredCredentials
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrMalformedRequest):
		return KindMalformedRequest
	default:
		return KindUnexpected
	}
}

// MalformedRequestError reports a request body that failed structural
// decoding. The cause is kept for logs only.
func MalformedRequestError(cause error) error {
	b := oops.Code(CodeMalformedRequest)
	if cause != nil {
		b = b.With("cause", cause.Error())
	}
	return b.Wrap(ErrMalformedRequest)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func invalidToken(cause error) error {
	b := oops.Code(CodeInvalidCredentials)
	if cause != nil {
		b = b.With("cause", cause.Error())
	}
	return b.Wrap(ErrInvalidCredentials)
}

func expiredCredentials() error {
	return oops.Code(CodeExpiredCredentials).Wrap(ErrExpiredCredentials)
}

func forbidden() error {
	return oops.Code(CodeForbidden).Wrap(ErrForbidden)
}

func unexpected(operation string, err error) error {
	return oops.Code(CodeUnexpected).
		With("operation", operation).
		Wrap(err)
}
