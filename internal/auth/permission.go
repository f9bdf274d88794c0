// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "slices"

// Permission is a route's access requirement. The set of implementations is
// closed: Role, IndividualPermissions and Empty.
type Permission interface {
	permission()
}

// Role requires the named role to be present in the token.
type Role struct {
	Name string
}

// IndividualPermissions requires every listed permission to be present.
// An empty list is satisfied by any token.
type IndividualPermissions struct {
	Required []string
}

// Empty accepts any authenticated caller.
type Empty struct{}

func (Role) permission()                  {}
func (IndividualPermissions) permission() {}
func (Empty) permission()                 {}

// RequirePermissions is shorthand for IndividualPermissions.
func RequirePermissions(perms ...string) IndividualPermissions {
	return IndividualPermissions{Required: perms}
}

// Evaluate reports whether claims satisfy required. Matching is exact.
func Evaluate(claims *Claims, required Permission) bool {
	if claims == nil {
		return false
	}
	switch p := required.(type) {
	case Role:
		return slices.Contains(claims.Roles, p.Name)
	case IndividualPermissions:
		for _, want := range p.Required {
			if !slices.Contains(claims.Permissions, want) {
				return false
			}
		}
		return true
	case Empty:
		return true
	default:
		return false
	}
}
