// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/auth/postgres"
	"github.com/holomush/devices/internal/seed"
	"github.com/holomush/devices/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	update  bool
	timeout time.Duration
}

// userWriter is the part of *postgres.UserRepository used by seed.
type userWriter interface {
	Create(ctx context.Context, u postgres.User) error
	Upsert(ctx context.Context, u postgres.User) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users from a YAML file",
		Long: `Creates the users listed in a YAML file, hashing each password with
argon2id. The file is checked against the schema printed by seed-schema.
Existing usernames are skipped unless --update is given, in which case their
password, roles and permissions are replaced.

  users:
    - username: admin
      password: change-me
      roles: [admin]
      permissions: [read:devices, create:device]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "", "users YAML file (required)")
	cmd.Flags().BoolVar(&cfg.update, "update", false, "replace hash and grants of existing users")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file") //nolint:errcheck // flag is defined above

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	data, err := os.ReadFile(cfg.file)
	if err != nil {
		return oops.Code("SEED_FILE_INVALID").With("file", cfg.file).Wrap(err)
	}

	users, err := seed.Parse(data)
	if err != nil {
		return oops.With("file", cfg.file).Wrap(err)
	}

	url, err := databaseURL(cmd)
	if err != nil {
		return err
	}

	// cmd.Context() carries SIGINT/SIGTERM cancellation.
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, url, store.ConnectOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()

	session, err := store.OpenSession(ctx, pool)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(context.Background()); closeErr != nil {
			slog.Warn("error closing database session", "error", closeErr)
		}
	}()

	created, updated, err := seedUsers(ctx, postgres.NewUserRepository(session), auth.NewArgon2idHasher(), users, cfg.update, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cmd.Printf("Seeding complete: %d created, %d updated, %d skipped\n", created, updated, len(users)-created-updated)
	return nil
}

// seedUsers writes users, hashing each password. Existing usernames are
// skipped, or overwritten when update is set.
func seedUsers(ctx context.Context, w userWriter, hasher passwordHasher, users []seed.User, update bool, out io.Writer) (created, updated int, err error) {
	for _, su := range users {
		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return created, updated, oops.Code("SEED_FAILED").With("username", su.Username).Wrap(err)
		}
		u := postgres.User{
			ID:           uuid.New(),
			Username:     su.Username,
			PasswordHash: hash,
			Roles:        su.Roles,
			Permissions:  su.Permissions,
		}

		err = w.Create(ctx, u)
		switch {
		case err == nil:
			created++
			fmt.Fprintf(out, "Created user %s\n", su.Username)
		case errors.Is(err, postgres.ErrUsernameTaken) && update:
			if err := w.Upsert(ctx, u); err != nil {
				return created, updated, err
			}
			updated++
			fmt.Fprintf(out, "Updated user %s\n", su.Username)
		case errors.Is(err, postgres.ErrUsernameTaken):
			fmt.Fprintf(out, "User %s already exists, skipping\n", su.Username)
		default:
			return created, updated, err
		}
	}
	return created, updated, nil
}

// NewSeedSchemaCmd creates the seed-schema subcommand.
func NewSeedSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-schema",
		Short: "Print the JSON Schema of the seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := seed.GenerateSchema()
			if err != nil {
				return oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	}
}
