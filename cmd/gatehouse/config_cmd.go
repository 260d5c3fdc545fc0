// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file against the schema and semantic rules",
		Long: `Validate a config file. Without an argument the --config path is
used, then the XDG default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, args)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a starter config file",
		Long: `Write a starter config file. Without an argument the --config path is
used, then the XDG default. An existing file is kept unless --force is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force") //nolint:errcheck // flag is registered below
			return runConfigInit(cmd, args, force)
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

// starterConfig passes "config validate" as written.
const starterConfig = `# Gatehouse configuration. Flags with the same dotted name override these.
server:
  addr: ":8080"
  base_url: http://localhost:8080
  cookie_secure: false
  session_ttl: 24h
  session_sweep: 10m
metrics:
  addr: 127.0.0.1:9100
log:
  format: json
  level: info
store:
  driver: postgres
database:
  # DATABASE_URL is used when this is empty.
  url: postgres://gatehouse@localhost:5432/gatehouse?sslmode=disable
providers:
  timeout: 10s
  slack:
    enabled: false
    refresh_name: true
  google:
    enabled: false
  outlook:
    enabled: false
`

// configPath picks the file a config subcommand works on.
func configPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if configFile != "" {
		return configFile, nil
	}
	return xdg.ConfigFile()
}

func runConfigInit(cmd *cobra.Command, args []string, force bool) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600) //nolint:gosec // path is chosen by the operator
	if errors.Is(err, fs.ErrExist) {
		return oops.Code("CONFIG_EXISTS").With("path", path).Errorf("config file already exists, use --force to overwrite")
	}
	if err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if _, err := f.WriteString(starterConfig); err != nil {
		_ = f.Close()
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}

	cmd.Println("Wrote " + path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
	}
	if err := config.ValidateYAML(data); err != nil {
		return err
	}
	if _, err := config.Load(config.LoadOptions{Path: path}); err != nil {
		return err
	}

	cmd.Println(path + ": OK")
	return nil
}
