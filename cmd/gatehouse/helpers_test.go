// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"testing"
)

// execute runs the CLI with deps and returns what it printed to stdout.
// The XDG config home points at an empty directory so no real config file
// is picked up.
func execute(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, deps, args...)
}

func executeContext(ctx context.Context, t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	resetConfigFile(t)

	cmd := newRootCmd(deps)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// noEnv is a Getenv that sees an empty environment.
func noEnv(string) string { return "" }
