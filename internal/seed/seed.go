// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package seed reads the YAML file of users created by "devices seed".
//
//	users:
//	  - username: admin
//	    password: change-me
//	    roles: [admin]
//	    permissions: [read:devices, create:device]
package seed

import (
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// File is a seed document.
type File struct {
	Users []User `json:"users" yaml:"users" jsonschema:"minItems=1,description=Users to create"`
}

// User is one account to create.
type User struct {
	Username    string   `json:"username" yaml:"username" jsonschema:"minLength=1"`
	Password    string   `json:"password" yaml:"password" jsonschema:"minLength=1,description=Plaintext password; hashed with argon2id before storage"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty" jsonschema:"uniqueItems=true"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty" jsonschema:"uniqueItems=true"`
}

// Parse validates data against the seed schema and decodes it. Usernames
// must be unique within the file.
func Parse(data []byte) ([]User, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").Wrap(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_FILE_INVALID").Wrap(err)
	}

	seen := make(map[string]int, len(f.Users))
	for i, u := range f.Users {
		if first, dup := seen[u.Username]; dup {
			return nil, oops.Code("SEED_FILE_INVALID").
				With("username", u.Username).
				With("index", i).
				Errorf("user %q listed twice (entries %d and %d)", u.Username, first, i)
		}
		seen[u.Username] = i
	}
	return f.Users, nil
}
