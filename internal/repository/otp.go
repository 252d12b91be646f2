// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
)

type otpRow struct {
	ID         string        `db:"id"`
	SubjectID  string        `db:"subject_id"`
	Code       string        `db:"code"`
	Consumed   bool          `db:"consumed"`
	ExpiresAt  int64         `db:"expires_at"`
	CreatedAt  int64         `db:"created_at"`
	ConsumedAt sql.NullInt64 `db:"consumed_at"`
}

func (row *otpRow) toModel() *models.OTPRecord {
	rec := &models.OTPRecord{
		ID:        row.ID,
		SubjectID: row.SubjectID,
		Code:      row.Code,
		Consumed:  row.Consumed,
		ExpiresAt: fromMillis(row.ExpiresAt),
		CreatedAt: fromMillis(row.CreatedAt),
	}
	if row.ConsumedAt.Valid {
		at := fromMillis(row.ConsumedAt.Int64)
		rec.ConsumedAt = &at
	}
	return rec
}

// InsertOTP stores a new OTP record.
func (r *Repository) InsertOTP(ctx context.Context, rec *models.OTPRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_records (id, subject_id, code, consumed, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SubjectID, rec.Code, rec.Consumed, toMillis(rec.ExpiresAt), toMillis(rec.CreatedAt))
	return err
}

// DeleteSubjectOTPs deletes every OTP record of a subject. Deleting nothing
// is not an error.
func (r *Repository) DeleteSubjectOTPs(ctx context.Context, subjectID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_records WHERE subject_id = ?`, subjectID)
	return err
}

// ConsumeOTP marks the newest live record matching subjectID and code as
// consumed in a single statement. The outer consumed = 0 condition makes the
// update a compare-and-swap, so concurrent callers see exactly one success.
func (r *Repository) ConsumeOTP(ctx context.Context, subjectID, code string, now time.Time) (bool, error) {
	nowMs := toMillis(now)
	res, err := r.db.ExecContext(ctx, `
		UPDATE otp_records SET consumed = 1, consumed_at = ?
		WHERE consumed = 0 AND id = (
			SELECT id FROM otp_records
			WHERE subject_id = ? AND code = ? AND consumed = 0 AND expires_at > ?
			ORDER BY created_at DESC
			LIMIT 1
		)`,
		nowMs, subjectID, code, nowMs)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetOTP retrieves an OTP record by ID.
func (r *Repository) GetOTP(ctx context.Context, id string) (*models.OTPRecord, error) {
	var row otpRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM otp_records WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return row.toModel(), nil
}

// LatestOTP returns the most recently created record of a subject.
func (r *Repository) LatestOTP(ctx context.Context, subjectID string) (*models.OTPRecord, error) {
	var row otpRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM otp_records WHERE subject_id = ? ORDER BY created_at DESC LIMIT 1`, subjectID)
	if err != nil {
		return nil, wrapError(err)
	}
	return row.toModel(), nil
}

// CountSubjectOTPs returns how many records a subject has, live or not.
func (r *Repository) CountSubjectOTPs(ctx context.Context, subjectID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM otp_records WHERE subject_id = ?`, subjectID)
	return count, err
}

// DeleteExpiredOTPs deletes records that expired before cutoff.
func (r *Repository) DeleteExpiredOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_records WHERE expires_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
