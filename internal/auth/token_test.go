// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newCodec(t *testing.T, now time.Time) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: testSecret, Now: fixedClock(now)})
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodec_RejectsShortSecret(t *testing.T) {
	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("short")})
	require.Error(t, err)
	assert.Nil(t, codec)
	errutil.AssertErrorCode(t, err, "AUTH_WEAK_SECRET")
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	codec := newCodec(t, issuedAt)

	token, err := codec.Issue("user-1", []string{"admin"}, []string{"read:devices", "create:device"}, time.Hour)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, issuedAt.Add(time.Hour).Unix(), claims.Expiry)
	assert.Equal(t, issuedAt.Unix(), claims.IssuedAt)
	assert.Equal(t, []string{"admin"}, claims.Roles)
	assert.Equal(t, []string{"read:devices", "create:device"}, claims.Permissions)
}

func TestTokenCodec_IssueNormalisesNilGrants(t *testing.T) {
	codec := newCodec(t, time.Now())

	token, err := codec.Issue("user-1", nil, nil, time.Minute)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)
	assert.Empty(t, claims.Permissions)
}

func TestTokenCodec_IssueRejectsEmptySubject(t *testing.T) {
	codec := newCodec(t, time.Now())
	_, err := codec.Issue("", nil, nil, time.Minute)
	errutil.AssertErrorCode(t, err, "AUTH_TOKEN_ISSUE")
}

func TestClaims_Expired(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	ttl := 15 * 24 * time.Hour
	codec := newCodec(t, issuedAt)

	token, err := codec.Issue("user-1", nil, nil, ttl)
	require.NoError(t, err)
	claims, err := codec.Decode(token)
	require.NoError(t, err)

	assert.False(t, claims.Expired(issuedAt))
	assert.False(t, claims.Expired(issuedAt.Add(ttl)), "expiry instant itself is still valid")
	assert.True(t, claims.Expired(issuedAt.Add(ttl+time.Second)))
}

func TestClaims_ExpiryHasWholeSecondGranularity(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 700*int64(time.Millisecond))
	codec := newCodec(t, issuedAt)

	token, err := codec.Issue("user-1", nil, nil, time.Second)
	require.NoError(t, err)
	claims, err := codec.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_001), claims.Expiry)
	assert.False(t, claims.Expired(time.Unix(1_700_000_001, 900*int64(time.Millisecond))))
	assert.True(t, claims.Expired(time.Unix(1_700_000_002, 0)))
}

func TestTokenCodec_DecodeDoesNotRejectExpired(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	token, err := newCodec(t, issuedAt).Issue("user-1", nil, nil, time.Second)
	require.NoError(t, err)

	later := newCodec(t, issuedAt.Add(time.Hour))
	claims, err := later.Decode(token)
	require.NoError(t, err)
	assert.True(t, claims.Expired(later.Now()))
}

func TestTokenCodec_DecodeFailures(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	codec := newCodec(t, now)

	valid, err := codec.Issue("user-1", nil, nil, time.Hour)
	require.NoError(t, err)

	otherSecret, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret: []byte("ffffffffffffffffffffffffffffffff"),
		Now:    fixedClock(now),
	})
	require.NoError(t, err)
	foreign, err := otherSecret.Issue("user-1", nil, nil, time.Hour)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	exp := now.Add(time.Hour).Unix()

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two segments", parts[0] + "." + parts[1]},
		{"tampered payload", tampered},
		{"wrong secret", foreign},
		{"HS512 rejected", sign(jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "u", "exp": exp})},
		{"alg none rejected", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "u", "exp": exp})},
		{"missing sub", sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"exp": exp})},
		{"missing exp", sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "u"})},
		{"non-numeric exp", sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "u", "exp": "tomorrow"})},
		{"permissions not a list", sign(jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "u", "exp": exp, "permissions": 7})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Decode(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		})
	}
}
