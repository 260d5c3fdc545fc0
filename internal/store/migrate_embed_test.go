// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, entry := range entries {
		names[entry.Name()] = true
	}

	for _, expected := range []string{
		"000001_users.up.sql",
		"000001_users.down.sql",
		"000002_web_sessions.up.sql",
		"000002_web_sessions.down.sql",
		"000003_rooms.up.sql",
		"000003_rooms.down.sql",
	} {
		assert.True(t, names[expected], "should contain %s", expected)
	}

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for name := range names {
		assert.True(t, pattern.MatchString(name), "file %s should match NNNNNN_name.(up|down).sql", name)
	}
}
