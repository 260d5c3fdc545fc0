// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatehouse CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatehouse",
		Short: "Gatehouse - session-based web authentication gateway",
		Long: `Gatehouse serves local password signup and login plus Slack, Google
and Outlook sign-in, and guards its routes with session, role and
ownership checks.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/gatehouse/config.yaml)")

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSeedAdminCmd(deps))
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the config file named by --config, then the command's flags.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		Path:   configFile,
		Flags:  cmd.Flags(),
		Getenv: deps.Getenv,
	})
}
