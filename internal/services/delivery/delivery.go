// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package delivery hands issued codes to the channel that reaches the farmer.
package delivery

import (
	"context"
	"log/slog"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
)

// Channel delivers a one-time code to a subject.
type Channel interface {
	Deliver(ctx context.Context, subject *models.Subject, code string) error
}

// LogChannel writes the handoff to a logger instead of sending an SMS.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel. A nil logger uses slog.Default.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Deliver logs the code together with the subject's phone number.
func (c *LogChannel) Deliver(ctx context.Context, subject *models.Subject, code string) error {
	c.logger.InfoContext(ctx, "otp_delivered",
		"channel", "log",
		"aadhar", subject.FormattedAadhar(),
		"phone", subject.PhoneNo,
		"code", code,
	)
	return nil
}
