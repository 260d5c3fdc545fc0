// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// sessionSweeper is the part of auth.SessionStore the sweeper drives.
type sessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// runSweeper deletes expired sessions every interval until ctx is done.
// Failures are logged and retried on the next tick.
func runSweeper(ctx context.Context, sessions sessionSweeper, interval time.Duration, onSweep func(int64), logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, logger, "session sweep failed", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "expired sessions removed", "count", n)
			}
			onSweep(n)
		}
	}
}
