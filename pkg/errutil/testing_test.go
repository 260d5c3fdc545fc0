// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	// Should not fail
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	// Should not fail
	errutil.AssertErrorContext(t, err, "user_id", "123")
}

func TestAssertPublicMessage(t *testing.T) {
	err := oops.Public("Indicate a room name").Errorf("empty name")
	errutil.AssertPublicMessage(t, err, "Indicate a room name")
}
