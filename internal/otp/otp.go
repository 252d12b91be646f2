// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp issues, verifies and expires one-time passcodes keyed by a
// subject identifier.
package otp

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/clock"
	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"github.com/google/uuid"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 5 * time.Minute

// Store persists OTP records. ConsumeOTP must be a single atomic
// compare-and-swap: it flips consumed on the record matching subjectID and
// code that is unconsumed and expires after now, and reports whether it did.
type Store interface {
	DeleteSubjectOTPs(ctx context.Context, subjectID string) error
	InsertOTP(ctx context.Context, rec *models.OTPRecord) error
	ConsumeOTP(ctx context.Context, subjectID, code string, now time.Time) (bool, error)
}

// Sweeper removes records whose expiry lies before cutoff. Only used for
// storage hygiene; verification never depends on it.
type Sweeper interface {
	DeleteExpiredOTPs(ctx context.Context, cutoff time.Time) (int64, error)
}

// Manager owns the OTP lifecycle.
type Manager struct {
	store Store
	clock clock.Clocker
	rand  Rand
	ttl   time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the system clock.
func WithClock(c clock.Clocker) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithRand replaces the randomness source used by GenerateCode.
func WithRand(r Rand) Option {
	return func(m *Manager) {
		m.rand = r
	}
}

// WithTTL sets the validity window. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		clock: clock.New(),
		rand:  CryptoRand,
		ttl:   DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the validity window of issued codes.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue replaces every record of subjectID with a fresh one and returns it,
// plaintext code included. The subject must already be validated by the
// caller.
func (m *Manager) Issue(ctx context.Context, subjectID string) (*models.OTPRecord, error) {
	if err := m.store.DeleteSubjectOTPs(ctx, subjectID); err != nil {
		return nil, storageErr("delete", err)
	}

	now := m.clock.Now()
	rec := &models.OTPRecord{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Code:      GenerateCode(m.rand),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.InsertOTP(ctx, rec); err != nil {
		return nil, storageErr("insert", err)
	}

	slog.DebugContext(ctx, "otp_issued", "subject", maskSubject(subjectID), "expires_at", rec.ExpiresAt)
	return rec, nil
}

// Verify consumes the live record matching subjectID and code. It returns
// false for every kind of mismatch (unknown subject, wrong code, already used,
// expired) so callers cannot tell them apart.
func (m *Manager) Verify(ctx context.Context, subjectID, code string) (bool, error) {
	ok, err := m.store.ConsumeOTP(ctx, subjectID, code, m.clock.Now())
	if err != nil {
		return false, storageErr("consume", err)
	}

	slog.DebugContext(ctx, "otp_verified", "subject", maskSubject(subjectID), "ok", ok)
	return ok, nil
}

// Sweep deletes records that expired more than retention ago, if the store
// supports it.
func (m *Manager) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	sw, ok := m.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	n, err := sw.DeleteExpiredOTPs(ctx, m.clock.Now().Add(-retention))
	if err != nil {
		return 0, storageErr("sweep", err)
	}
	return n, nil
}

// maskSubject keeps the last four characters for log correlation.
func maskSubject(id string) string {
	if len(id) <= 4 {
		return id
	}
	masked := make([]byte, len(id))
	for i := range masked {
		masked[i] = 'x'
	}
	copy(masked[len(id)-4:], id[len(id)-4:])
	return string(masked)
}
