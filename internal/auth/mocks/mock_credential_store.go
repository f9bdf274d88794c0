// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks holds testify mocks for the auth interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/devices/internal/auth"
)

// MockCredentialStore is a mock of auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a mock whose expectations are asserted when
// the test ends.
func NewMockCredentialStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Lookup implements auth.CredentialStore.
func (m *MockCredentialStore) Lookup(ctx context.Context, username string) (*auth.StoredCredential, error) {
	ret := m.Called(ctx, username)

	var cred *auth.StoredCredential
	if fn, ok := ret.Get(0).(func(context.Context, string) *auth.StoredCredential); ok {
		cred = fn(ctx, username)
	} else if ret.Get(0) != nil {
		cred = ret.Get(0).(*auth.StoredCredential)
	}
	return cred, ret.Error(1)
}

var _ auth.CredentialStore = (*MockCredentialStore)(nil)
