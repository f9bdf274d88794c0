// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/store"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

// User is a row of the users table as written by administrative tooling.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Roles        []string
	Permissions  []string
}

// UserRepository implements auth.CredentialStore on the users table. Every
// query runs on the session's single connection.
type UserRepository struct {
	session *store.Session
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(session *store.Session) *UserRepository {
	return &UserRepository{session: session}
}

// Lookup implements auth.CredentialStore.
func (r *UserRepository) Lookup(ctx context.Context, username string) (*auth.StoredCredential, error) {
	return store.WithConnection(ctx, r.session, func(ctx context.Context, conn store.Conn) (*auth.StoredCredential, error) {
		var (
			id    string
			hash  string
			roles []string
			perms []string
		)
		err := conn.QueryRow(ctx,
			`SELECT id::text, password_hash, roles, permissions FROM users WHERE username = $1`,
			username,
		).Scan(&id, &hash, &roles, &perms)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		if err != nil {
			return nil, oops.Code("USER_QUERY_FAILED").With("operation", "lookup user").Wrap(err)
		}

		userID, err := uuid.Parse(id)
		if err != nil {
			return nil, oops.Code("USER_QUERY_FAILED").With("operation", "parse user id").Wrap(err)
		}
		return &auth.StoredCredential{
			UserID:       userID,
			PasswordHash: auth.NewSecret(hash),
			Roles:        nonNil(roles),
			Permissions:  nonNil(perms),
		}, nil
	})
}

// Create inserts u. It fails with ErrUsernameTaken if the username exists.
func (r *UserRepository) Create(ctx context.Context, u User) error {
	_, err := store.WithConnection(ctx, r.session, func(ctx context.Context, conn store.Conn) (pgconn.CommandTag, error) {
		return conn.Exec(ctx,
			`INSERT INTO users (id, username, password_hash, roles, permissions)
			 VALUES ($1, $2, $3, $4, $5)`,
			u.ID.String(), u.Username, u.PasswordHash, nonNil(u.Roles), nonNil(u.Permissions),
		)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("USER_EXISTS").With("username", u.Username).Wrap(ErrUsernameTaken)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").With("username", u.Username).Wrap(err)
	}
	return nil
}

// Upsert inserts u or, if the username exists, replaces its hash and grants.
// The existing id is kept.
func (r *UserRepository) Upsert(ctx context.Context, u User) error {
	_, err := store.WithConnection(ctx, r.session, func(ctx context.Context, conn store.Conn) (pgconn.CommandTag, error) {
		return conn.Exec(ctx,
			`INSERT INTO users (id, username, password_hash, roles, permissions)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (username) DO UPDATE
			 SET password_hash = EXCLUDED.password_hash,
			     roles = EXCLUDED.roles,
			     permissions = EXCLUDED.permissions,
			     updated_at = now()`,
			u.ID.String(), u.Username, u.PasswordHash, nonNil(u.Roles), nonNil(u.Permissions),
		)
	})
	if err != nil {
		return oops.Code("USER_UPSERT_FAILED").With("username", u.Username).Wrap(err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ auth.CredentialStore = (*UserRepository)(nil)
