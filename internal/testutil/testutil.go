// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"codeberg.org/krishimitra/krishi-auth/internal/database"
	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"codeberg.org/krishimitra/krishi-auth/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// TestAadhar is the Aadhar number of the subject created by NewTestSubject.
const TestAadhar = "123456789012"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	return openTestDB(t, ":memory:")
}

// NewTestFileDB creates a file-backed SQLite database in a temp directory.
// Use it when a test needs several pooled connections, e.g. races.
func NewTestFileDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "test.db"))
}

func openTestDB(t *testing.T, dsn string) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestSubject registers a subject with the given Aadhar number.
func NewTestSubject(t *testing.T, repo *repository.Repository, aadhar, name string) *models.Subject {
	t.Helper()
	s := &models.Subject{
		AadharNo: aadhar,
		Name:     name,
		PhoneNo:  "9876543210",
		State:    "Maharashtra",
		District: "Pune",
		Address:  "Baramati",
	}
	require.NoError(t, repo.UpsertSubject(context.Background(), s))
	return s
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
