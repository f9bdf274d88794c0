// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/devices/internal/config"
)

// Global flags available to all subcommands.
var (
	configDir   string
	environment string
)

const defaultConfigDir = "configuration"

// NewRootCmd creates the root command for the devices CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Devices API service",
		Long: `devices serves the device management HTTP API. Clients log in with a
username and password and receive a signed token that authorizes the
device routes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultConfigDir, "directory holding base.yaml and <environment>.yaml")
	cmd.PersistentFlags().StringVar(&environment, "environment", "", "configuration environment (local or production; default: APP_ENVIRONMENT)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewSeedSchemaCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}

// loadConfig reads the layered configuration. Flags set on cmd whose names
// are dotted config keys override every other source.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		Dir:         configDir,
		Environment: environment,
		Flags:       cmd.Flags(),
	})
}
