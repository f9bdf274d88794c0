// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements credential validation and token-based request
// authorization.
//
// # Login
//
// Validator checks a username and password against a CredentialStore. The
// password is verified by a PasswordVerifier; PooledVerifier runs argon2id on
// a bounded worker pool. Unknown usernames are verified against a dummy hash
// so both failure paths cost the same.
//
// # Tokens
//
// TokenCodec issues and decodes HS256 tokens carrying a subject, an expiry,
// roles and permissions. Decode checks only the signature; callers check
// Claims.Expired explicitly.
//
// # Authorization
//
// Authenticator turns an Authorization header and a Permission (Role,
// IndividualPermissions or Empty) into an Identity, or into an error whose
// Kind maps to a response status.
package auth
