// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/devices/internal/store"
)

func newMockSession(t *testing.T) (*store.Session, pgxmock.PgxConnIface, *atomic.Int32) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	var released atomic.Int32
	return store.NewSession(mock, func() { released.Add(1) }), mock, &released
}

func TestWithConnection_RunsCallback(t *testing.T) {
	s, mock, _ := newMockSession(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	tag, err := store.WithConnection(context.Background(), s, func(ctx context.Context, c store.Conn) (string, error) {
		res, err := c.Exec(ctx, "SELECT 1")
		return res.String(), err
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", tag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithConnection_Exclusive(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newMockSession(t)
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.WithConnection(context.Background(), s, func(context.Context, store.Conn) (struct{}, error) {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestWithConnection_ReleasesOnErrorAndPanic(t *testing.T) {
	s, _, _ := newMockSession(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.WithConnection(ctx, s, func(context.Context, store.Conn) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_, _ = store.WithConnection(ctx, s, func(context.Context, store.Conn) (int, error) {
			panic("callback failure")
		})
	})

	got, err := store.WithConnection(ctx, s, func(context.Context, store.Conn) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestWithConnection_CancelWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newMockSession(t)
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = store.WithConnection(context.Background(), s, func(context.Context, store.Conn) (int, error) {
			close(held)
			<-release
			return 0, nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := store.WithConnection(ctx, s, func(context.Context, store.Conn) (int, error) {
		t.Error("callback must not run")
		return 0, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done

	_, err = store.WithConnection(context.Background(), s, func(context.Context, store.Conn) (int, error) {
		return 1, nil
	})
	assert.NoError(t, err)
}

func TestSession_Close(t *testing.T) {
	s, _, released := newMockSession(t)
	ctx := context.Background()

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, int32(1), released.Load())

	_, err := store.WithConnection(ctx, s, func(context.Context, store.Conn) (int, error) {
		t.Error("callback must not run")
		return 0, nil
	})
	assert.ErrorIs(t, err, store.ErrSessionClosed)
}

func TestSession_CloseWaitsForCheckin(t *testing.T) {
	s, _, released := newMockSession(t)
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = store.WithConnection(context.Background(), s, func(context.Context, store.Conn) (int, error) {
			close(held)
			<-release
			return 0, nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
	assert.Zero(t, released.Load())

	close(release)
	<-done
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, int32(1), released.Load())
}
