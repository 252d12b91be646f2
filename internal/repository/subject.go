// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
)

// GetSubjectByAadhar retrieves a registered subject by Aadhar number.
func (r *Repository) GetSubjectByAadhar(ctx context.Context, aadhar string) (*models.Subject, error) {
	var s models.Subject
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM subjects WHERE aadhar_no = ?`, aadhar); err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// UpsertSubject inserts a subject or replaces the one with the same Aadhar number.
func (r *Repository) UpsertSubject(ctx context.Context, s *models.Subject) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO subjects (aadhar_no, name, phone_no, state, district, address)
		VALUES (:aadhar_no, :name, :phone_no, :state, :district, :address)
		ON CONFLICT (aadhar_no) DO UPDATE SET
			name = excluded.name,
			phone_no = excluded.phone_no,
			state = excluded.state,
			district = excluded.district,
			address = excluded.address`, s)
	return err
}

// CountSubjects returns the number of registered subjects.
func (r *Repository) CountSubjects(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM subjects`)
	return count, err
}
