// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// ErrSessionClosed is returned when a closed Session is used.
var ErrSessionClosed = errors.New("session closed")

// Conn is the subset of a database connection used by repositories.
// It is satisfied by *pgxpool.Conn, *pgx.Conn and pgxmock.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session owns a single database connection shared by every caller of a
// service instance. Access is exclusive: one caller at a time holds the
// connection for the duration of a WithConnection callback.
type Session struct {
	// slot holds the connection while nobody has it checked out.
	slot    chan Conn
	release func()
	closed  chan struct{}
}

// NewSession wraps conn. release is called once by Close; it may be nil.
func NewSession(conn Conn, release func()) *Session {
	s := &Session{
		slot:    make(chan Conn, 1),
		release: release,
		closed:  make(chan struct{}),
	}
	s.slot <- conn
	return s
}

// WithConnection checks out the session's connection, runs fn, and checks it
// back in on every exit path, including a panic in fn. It blocks until the
// connection is free or ctx is done.
func WithConnection[T any](ctx context.Context, s *Session, fn func(context.Context, Conn) (T, error)) (T, error) {
	var zero T

	select {
	case <-s.closed:
		return zero, oops.Code("SESSION_CLOSED").Wrap(ErrSessionClosed)
	default:
	}

	var conn Conn
	select {
	case conn = <-s.slot:
	case <-s.closed:
		return zero, oops.Code("SESSION_CLOSED").Wrap(ErrSessionClosed)
	case <-ctx.Done():
		return zero, oops.Code("SESSION_ACQUIRE_FAILED").Wrap(ctx.Err())
	}
	defer func() { s.slot <- conn }()

	select {
	case <-s.closed:
		return zero, oops.Code("SESSION_CLOSED").Wrap(ErrSessionClosed)
	default:
	}

	return fn(ctx, conn)
}

// Close waits for the connection to be checked in and hands it back to its
// owner. Close is not safe to call concurrently with itself.
func (s *Session) Close(ctx context.Context) error {
	select {
	case <-s.closed:
		return nil
	default:
	}

	select {
	case conn := <-s.slot:
		close(s.closed)
		if s.release != nil {
			s.release()
		}
		// Leave the slot populated so late callers fail on closed, not block.
		s.slot <- conn
		return nil
	case <-ctx.Done():
		return oops.Code("SESSION_CLOSE_FAILED").Wrap(ctx.Err())
	}
}
