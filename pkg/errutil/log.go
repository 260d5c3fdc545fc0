// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package errutil holds shared helpers for oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. See LogErrorContext.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext logs err at error level with ctx, so a trace-aware handler
// can attach the active span. For oops errors the code, context and public
// message are logged as separate attributes.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if fields := oopsErr.Context(); len(fields) > 0 {
		attrs = append(attrs, "context", fields)
	}
	if public := oops.GetPublic(err, ""); public != "" {
		attrs = append(attrs, "public", public)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
