// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// OTPState is the verification state of a record. It is derived from the
// stored fields and the current time, never persisted.
type OTPState string

const (
	OTPStatePending  OTPState = "pending"
	OTPStateConsumed OTPState = "consumed"
	OTPStateExpired  OTPState = "expired"
)

// OTPRecord is a one-time passcode issued for a subject.
type OTPRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string     `json:"id"`
	SubjectID  string     `json:"subject_id"`
	Code       string     `json:"-"`
	Consumed   bool       `json:"consumed"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// StateAt reports the state of the record at now. Consumption wins over
// expiry so a used code keeps reporting consumed after its window closes.
func (r *OTPRecord) StateAt(now time.Time) OTPState {
	switch {
	case r.Consumed:
		return OTPStateConsumed
	case !now.Before(r.ExpiresAt):
		return OTPStateExpired
	default:
		return OTPStatePending
	}
}

// IsLiveAt reports whether the record can still be verified at now.
func (r *OTPRecord) IsLiveAt(now time.Time) bool {
	return r.StateAt(now) == OTPStatePending
}
