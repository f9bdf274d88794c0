// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the minimum signing secret length in bytes.
const MinSecretLength = 32

// Claims is the decoded content of a signed token.
type Claims struct {
	Subject     string
	Expiry      int64 // seconds since the Unix epoch
	IssuedAt    int64
	Permissions []string
	Roles       []string
}

// Expired reports whether the claims expired before now. Expiry has
// whole-second granularity: exp is truncated when the token is issued.
func (c *Claims) Expired(now time.Time) bool {
	return c.Expiry < now.Unix()
}

// tokenClaims is the JWT payload.
type tokenClaims struct {
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	// Secret is the HMAC signing key. It must be at least MinSecretLength bytes.
	Secret []byte
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// TokenCodec issues and decodes HS256-signed tokens. It is safe for
// concurrent use; the secret is never modified after construction.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec validates cfg and returns a codec.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("AUTH_WEAK_SECRET").
			With("length", len(cfg.Secret)).
			With("minimum", MinSecretLength).
			Errorf("token secret too short")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenCodec{
		secret: secret,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			// expiry is checked explicitly by the caller so it can be
			// reported separately from signature failures
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Now returns the codec's current time.
func (c *TokenCodec) Now() time.Time {
	return c.now()
}

// Issue signs a token for subject that expires ttl from now.
func (c *TokenCodec) Issue(subject string, roles, permissions []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", oops.Code("AUTH_TOKEN_ISSUE").Errorf("empty subject")
	}
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := c.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Permissions: permissions,
		Roles:       roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE").With("subject", subject).Wrap(err)
	}
	return signed, nil
}

// Decode verifies the signature of token and returns its claims. Any
// failure wraps ErrInvalidCredentials. Decode does not check expiry.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, invalidToken(errors.New("empty token"))
	}

	var tc tokenClaims
	_, err := c.parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, invalidToken(err)
	}
	if tc.Subject == "" {
		return nil, invalidToken(errors.New("missing sub claim"))
	}
	if tc.ExpiresAt == nil {
		return nil, invalidToken(errors.New("missing exp claim"))
	}

	claims := &Claims{
		Subject:     tc.Subject,
		Expiry:      tc.ExpiresAt.Unix(),
		Permissions: tc.Permissions,
		Roles:       tc.Roles,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Unix()
	}
	return claims, nil
}
