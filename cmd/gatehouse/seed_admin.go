// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
)

// Default timeout for seed-admin.
const defaultSeedTimeout = 30 * time.Second

// adminPasswordEnv supplies the password when --password is not given, so it
// stays out of shell history.
const adminPasswordEnv = "GATEHOUSE_ADMIN_PASSWORD"

// seedAdminConfig holds configuration for the seed-admin command.
type seedAdminConfig struct {
	username string
	password string
	timeout  time.Duration
}

// NewSeedAdminCmd creates the seed-admin subcommand. A nil deps uses the defaults.
func NewSeedAdminCmd(deps *Deps) *cobra.Command {
	cfg := &seedAdminConfig{}

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an ADMIN account",
		Long: `Creates a local ADMIN account through the normal signup rules.
This command is idempotent - an existing username is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedAdmin(cmd, cfg, deps)
		},
	}

	cmd.Flags().StringVar(&cfg.username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&cfg.password, "password", "", "admin password (default: $"+adminPasswordEnv+")")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().AddFlagSet(config.Flags())

	return cmd
}

func runSeedAdmin(cmd *cobra.Command, seed *seedAdminConfig, deps *Deps) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return oops.Code("CONFIG_INVALID").
			With("key", "store.driver").
			Errorf("seed-admin needs the postgres store driver, got %q", cfg.Store.Driver)
	}

	password := seed.password
	if password == "" {
		password = deps.Getenv(adminPasswordEnv)
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, seed.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	st, err := openStores(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer st.close()

	registrar, err := auth.NewRegistrar(st.users, auth.NewBcryptHasher())
	if err != nil {
		return err
	}

	user, err := registrar.SignupWithRole(ctx, seed.username, password, auth.RoleAdmin)
	if errors.Is(err, auth.ErrUsernameTaken) {
		cmd.Println("User " + seed.username + " already exists, skipping")
		return nil
	}
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "create admin").Wrap(err)
	}

	cmd.Println("Created ADMIN " + user.Username)
	slog.Info("created admin account", "user_id", user.ID.String())
	return nil
}
