// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PasswordVerifier checks a candidate password against a stored hash.
type PasswordVerifier interface {
	// Verify returns nil on match, an error wrapping ErrPasswordMismatch on
	// mismatch, or another error when verification could not run.
	Verify(ctx context.Context, candidate, expectedHash Secret) error
}

// VerifyObserver receives the wall time of every completed hash computation.
type VerifyObserver func(time.Duration)

// PooledVerifier runs argon2id verification on a bounded set of worker
// goroutines so request handlers never perform the computation themselves.
type PooledVerifier struct {
	hasher   *Argon2idHasher
	pool     *workerPool
	observer VerifyObserver
}

// PooledVerifierOption configures a PooledVerifier.
type PooledVerifierOption func(*PooledVerifier)

// WithVerifyObserver registers a callback for verification durations.
func WithVerifyObserver(fn VerifyObserver) PooledVerifierOption {
	return func(v *PooledVerifier) {
		v.observer = fn
	}
}

// NewPooledVerifier starts workers goroutines. A non-positive count uses
// runtime.NumCPU.
func NewPooledVerifier(workers int, opts ...PooledVerifierOption) *PooledVerifier {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	v := &PooledVerifier{
		hasher: NewArgon2idHasher(),
		pool:   newWorkerPool(workers),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify implements PasswordVerifier. If ctx ends while waiting, the call
// returns ctx.Err(); a computation already running finishes on its worker and
// its result is dropped.
func (v *PooledVerifier) Verify(ctx context.Context, candidate, expectedHash Secret) error {
	ctx, span := tracer.Start(ctx, "auth.verify_password")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return oops.Code("AUTH_VERIFY_POOL").Wrap(err)
	}
	if expectedHash.IsEmpty() {
		span.SetStatus(codes.Error, "empty hash")
		return malformedHash("empty hash")
	}

	result := make(chan error, 1)
	err := v.pool.submit(ctx, func() {
		start := time.Now()
		verr := v.hasher.Verify(candidate.Expose(), expectedHash.Expose())
		if v.observer != nil {
			v.observer(time.Since(start))
		}
		result <- verr
	})
	if err != nil {
		span.SetStatus(codes.Error, "submit failed")
		return oops.Code("AUTH_VERIFY_POOL").Wrap(err)
	}

	select {
	case verr := <-result:
		span.SetAttributes(attribute.Bool("auth.match", verr == nil))
		return verr
	case <-ctx.Done():
		span.SetStatus(codes.Error, "abandoned")
		return oops.Code("AUTH_VERIFY_POOL").Wrap(ctx.Err())
	}
}

// Close stops the workers, waiting for in-flight verifications.
func (v *PooledVerifier) Close() {
	v.pool.close()
}
