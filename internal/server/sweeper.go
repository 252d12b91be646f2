// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/otp"
)

// runSweeper deletes long-expired OTP records every interval until ctx is
// done. Verification never depends on it.
func runSweeper(ctx context.Context, m *otp.Manager, interval, retention time.Duration) {
	if interval <= 0 {
		slog.Info("otp sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, m, retention)
		}
	}
}

func sweepOnce(ctx context.Context, m *otp.Manager, retention time.Duration) {
	n, err := m.Sweep(ctx, retention)
	if err != nil {
		slog.ErrorContext(ctx, "otp_sweep_failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "otp_swept", "deleted", n)
	}
}
