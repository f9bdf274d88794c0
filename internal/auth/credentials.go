// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"

	"github.com/google/uuid"
)

// Credentials is a username/password pair taken from a login request.
// It is consumed once by Validator.Validate and never persisted.
type Credentials struct {
	Username string
	Password Secret
}

// NewCredentials builds Credentials from raw request fields.
func NewCredentials(username, password string) Credentials {
	return Credentials{Username: username, Password: NewSecret(password)}
}

// StoredCredential is the datastore's view of a user, read-only to this package.
type StoredCredential struct {
	UserID       uuid.UUID
	PasswordHash Secret
	Roles        []string
	Permissions  []string
}

// Principal is a user whose credentials were verified, together with the
// grants that go into the issued token.
type Principal struct {
	ID          uuid.UUID
	Roles       []string
	Permissions []string
}

// CredentialStore looks up stored credentials by username.
type CredentialStore interface {
	// Lookup returns the stored credential for username.
	// Returns an error wrapping ErrNotFound if no such user exists; any other
	// error is a storage failure.
	Lookup(ctx context.Context, username string) (*StoredCredential, error)
}
