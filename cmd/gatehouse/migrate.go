// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/store"
)

// NewMigrateCmd creates the migrate command group. A nil deps uses the defaults.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect the PostgreSQL schema migrations.`,
	}
	cmd.PersistentFlags().AddFlagSet(config.Flags())

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return printMigrationStatus(cmd, m)
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return oops.Code("CONFIG_INVALID").
			With("key", "store.driver").
			Errorf("migrations need the postgres store driver, got %q", cfg.Store.Driver)
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrln("warning: closing migrator:", closeErr)
		}
	}()
	return fn(m)
}

func printMigrationStatus(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Current version: %d (%s)\n", version, state)
	for _, v := range applied {
		cmd.Println("  applied  " + migrationLabel(v))
	}
	for _, v := range pending {
		cmd.Println("  pending  " + migrationLabel(v))
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
	}
	return nil
}

func migrationLabel(version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", version)
	}
	return name
}
