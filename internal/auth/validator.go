// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("devices/auth")

// dummyPasswordHash is verified when the username is unknown so that the
// response time does not reveal whether the account exists. It was produced
// with the same cost parameters as real hashes and matches no password.
//
//nolint:gosec // G101: intentionally fake hash for timing equalisation, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=15000,t=2,p=1$gZiV/M1gPc22ElAH/Jh1Hw$CWOrkoo7oJBQ/iyh7uJ0LO2aLEfrHwTWllSAxT0zRno"

// Validator checks login credentials against the credential store.
type Validator struct {
	store    CredentialStore
	verifier PasswordVerifier
}

// NewValidator creates a Validator.
func NewValidator(store CredentialStore, verifier PasswordVerifier) (*Validator, error) {
	if store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if verifier == nil {
		return nil, oops.Errorf("password verifier is required")
	}
	return &Validator{store: store, verifier: verifier}, nil
}

// Validate returns the principal for creds. Unknown usernames and wrong
// passwords both produce an error wrapping ErrInvalidCredentials, and both
// run exactly one hash verification.
func (v *Validator) Validate(ctx context.Context, creds Credentials) (principal *Principal, err error) {
	ctx, span := tracer.Start(ctx, "auth.validate_credentials")
	defer func() {
		if err != nil {
			span.SetAttributes(attribute.String("auth.result", KindOf(err).String()))
			if KindOf(err) == KindUnexpected {
				span.RecordError(err)
				span.SetStatus(codes.Error, "validation failed")
			}
		}
		span.End()
	}()

	var (
		userID uuid.UUID
		found  bool
		hash   = NewSecret(dummyPasswordHash)
		roles  []string
		perms  []string
	)

	stored, lookupErr := v.store.Lookup(ctx, creds.Username)
	switch {
	case lookupErr == nil && stored == nil:
		return nil, unexpected("lookup credentials", errors.New("store returned no credential and no error"))
	case lookupErr == nil:
		userID, found = stored.UserID, true
		hash = stored.PasswordHash
		roles, perms = stored.Roles, stored.Permissions
	case errors.Is(lookupErr, ErrNotFound):
		// fall through to the dummy hash
	default:
		return nil, unexpected("lookup credentials", lookupErr)
	}

	verifyErr := v.verifier.Verify(ctx, creds.Password, hash)

	switch {
	case verifyErr == nil:
	case errors.Is(verifyErr, ErrPasswordMismatch):
		slog.DebugContext(ctx, "password mismatch", "username", creds.Username)
		return nil, invalidCredentials()
	default:
		return nil, unexpected("verify password", verifyErr)
	}

	if !found {
		return nil, invalidCredentials()
	}

	return &Principal{ID: userID, Roles: roles, Permissions: perms}, nil
}
