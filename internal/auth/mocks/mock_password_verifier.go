// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/devices/internal/auth"
)

// MockPasswordVerifier is a mock of auth.PasswordVerifier.
type MockPasswordVerifier struct {
	mock.Mock
}

// NewMockPasswordVerifier creates a mock whose expectations are asserted when
// the test ends.
func NewMockPasswordVerifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPasswordVerifier {
	m := &MockPasswordVerifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Verify implements auth.PasswordVerifier. Expectations match on the exposed
// candidate and hash strings.
func (m *MockPasswordVerifier) Verify(ctx context.Context, candidate, expectedHash auth.Secret) error {
	ret := m.Called(ctx, candidate.Expose(), expectedHash.Expose())
	return ret.Error(0)
}

var _ auth.PasswordVerifier = (*MockPasswordVerifier)(nil)
