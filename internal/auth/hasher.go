// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters used for new hashes. Verification honours whatever
// parameters are encoded in the stored hash.
const (
	argon2Time    = 2
	argon2Memory  = 15000 // KiB
	argon2Threads = 1
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// CodeInvalidHash marks a stored hash that cannot be parsed.
const CodeInvalidHash = "AUTH_INVALID_HASH"

var (
	// ErrMalformedHash is returned when a stored hash is not a valid argon2id
	// PHC string.
	ErrMalformedHash = errors.New("malformed password hash")

	// ErrPasswordMismatch is returned when a candidate does not match the hash.
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")
)

// Argon2idHasher hashes and verifies passwords in the argon2id PHC format:
//
//	$argon2id$v=19$m=15000,t=2,p=1$<salt>$<hash>
//
// Salt and hash are unpadded standard base64. The zero value is ready to use.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password with a fresh random salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks candidate against encodedHash. It returns nil on match,
// ErrPasswordMismatch on mismatch and an error wrapping ErrMalformedHash if
// the hash cannot be parsed. The comparison is constant time.
//
// Verify is CPU and memory heavy; callers on a request path should go
// through PooledVerifier.
func (h *Argon2idHasher) Verify(candidate, encodedHash string) error {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return err
	}

	computed := argon2.IDKey([]byte(candidate), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	if subtle.ConstantTimeCompare(computed, p.key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

type phcParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func malformedHash(format string, args ...any) error {
	return oops.Code(CodeInvalidHash).Wrap(fmt.Errorf("%w: "+format, append([]any{ErrMalformedHash}, args...)...))
}

func parsePHC(encoded string) (*phcParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, malformedHash("expected 6 segments")
	}
	if parts[1] != "argon2id" {
		return nil, malformedHash("unsupported algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, malformedHash("version: %v", err)
	}
	if version != argon2.Version {
		return nil, malformedHash("unsupported version %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, malformedHash("parameters: %v", err)
	}
	if memory == 0 || time == 0 || threads == 0 || threads > 255 {
		return nil, malformedHash("parameters out of range m=%d t=%d p=%d", memory, time, threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, malformedHash("salt: %v", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, malformedHash("hash: %v", err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, malformedHash("hash length %d", len(key))
	}

	return &phcParams{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
