// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost:notaport/gatehouse")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
