// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/clock"
	"codeberg.org/krishimitra/krishi-auth/internal/handlers"
	"codeberg.org/krishimitra/krishi-auth/internal/i18n"
	"codeberg.org/krishimitra/krishi-auth/internal/otp"
	"codeberg.org/krishimitra/krishi-auth/internal/services/delivery"
	"codeberg.org/krishimitra/krishi-auth/internal/services/login"
	"codeberg.org/krishimitra/krishi-auth/internal/services/token"
	"codeberg.org/krishimitra/krishi-auth/internal/testutil"
	"codeberg.org/krishimitra/krishi-auth/internal/validate"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/text/language"
)

// fixedCode is what GenerateCode yields for a random value of 0.5.
const fixedCode = "550000"

type authFixture struct {
	e      *echo.Echo
	h      *handlers.AuthHandlers
	db     *sqlx.DB
	clock  *clock.Fake
	tokens *token.Service
}

func newAuthFixture(t *testing.T, devMode bool) *authFixture {
	t.Helper()
	db, repo := testutil.NewTestDB(t)
	testutil.NewTestSubject(t, repo, testutil.TestAadhar, "Ramesh Kumar Patil")

	clk := clock.NewFake(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	tokens, err := token.New([]byte("0123456789abcdef0123456789abcdef"), 30*24*time.Hour, clk)
	require.NoError(t, err)

	codes := otp.NewManager(repo,
		otp.WithClock(clk),
		otp.WithRand(func() float64 { return 0.5 }),
	)
	channel := delivery.NewLogChannel(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := login.New(repo, codes, channel, tokens)

	e := echo.New()
	e.Validator = validate.New()

	return &authFixture{
		e:      e,
		h:      handlers.NewAuth(svc, tokens, codes.TTL(), devMode),
		db:     db,
		clock:  clk,
		tokens: tokens,
	}
}

func (f *authFixture) post(t *testing.T, handler echo.HandlerFunc, path, body string, lang language.Tag) *httptest.ResponseRecorder {
	t.Helper()
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, path, strings.NewReader(body))
	req := c.Request()
	c.SetRequest(req.WithContext(i18n.WithLocale(req.Context(), lang)))
	require.NoError(t, handler(c))
	return rec
}

func (f *authFixture) sendOTP(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.post(t, f.h.SendOTP, "/api/users/send-otp", body, language.English)
}

func (f *authFixture) verifyOTP(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.post(t, f.h.VerifyOTP, "/api/users/verify-otp", body, language.English)
}

func TestSendOTP(t *testing.T) {
	f := newAuthFixture(t, false)

	rec := f.sendOTP(t, `{"aadharNumber":"1234 5678 9012"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "OTP sent successfully",
		"aadharNumber": "1234 5678 9012",
		"userName": "Ramesh Kumar Patil",
		"expiresIn": "5 minutes",
		"expiresAt": "2025-03-01T10:05:00Z"
	}`, rec.Body.String())
}

func TestSendOTP_DevModeEchoesCode(t *testing.T) {
	f := newAuthFixture(t, true)

	rec := f.sendOTP(t, `{"aadharNumber":"123456789012"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.SendOTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, fixedCode, resp.OTP)
}

func TestSendOTP_Localized(t *testing.T) {
	f := newAuthFixture(t, false)

	rec := f.post(t, f.h.SendOTP, "/api/users/send-otp", `{"aadharNumber":"123456789012"}`, language.Hindi)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.SendOTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OTP सफलतापूर्वक भेजा गया", resp.Message)
	assert.Equal(t, "5 मिनट", resp.ExpiresIn)
}

func TestSendOTP_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
		code    string
	}{
		{"malformed json", `{"aadharNumber":`, http.StatusBadRequest, "Invalid request body", handlers.CodeInvalidRequest},
		{"missing aadhar", `{}`, http.StatusBadRequest, "Aadhar number is required", handlers.CodeValidation},
		{"blank aadhar", `{"aadharNumber":"   "}`, http.StatusBadRequest, "Aadhar number is required", handlers.CodeValidation},
		{"short aadhar", `{"aadharNumber":"1234 5678"}`, http.StatusBadRequest, "Please enter a valid 12-digit Aadhar number", handlers.CodeValidation},
		{"letters", `{"aadharNumber":"1234abcd9012"}`, http.StatusBadRequest, "Please enter a valid 12-digit Aadhar number", handlers.CodeValidation},
		{"unknown subject", `{"aadharNumber":"999988887777"}`, http.StatusNotFound, "No user found with this Aadhar number. Please register first.", handlers.CodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, false)

			rec := f.sendOTP(t, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var resp handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestSendOTP_StorageFailure(t *testing.T) {
	f := newAuthFixture(t, true)
	require.NoError(t, f.db.Close())

	rec := f.sendOTP(t, `{"aadharNumber":"123456789012"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sql")
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Error sending OTP. Please try again.", resp.Message)
	assert.Equal(t, handlers.CodeInternal, resp.Code)
}

func TestVerifyOTP(t *testing.T) {
	f := newAuthFixture(t, false)
	require.Equal(t, http.StatusOK, f.sendOTP(t, `{"aadharNumber":"123456789012"}`).Code)

	rec := f.verifyOTP(t, `{"aadharNumber":"1234 5678 9012","otp":"550000"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Login successful", resp.Message)
	assert.Equal(t, "Ramesh", resp.User.FirstName)
	assert.Equal(t, "Kumar Patil", resp.User.LastName)
	assert.Equal(t, testutil.TestAadhar, resp.User.AadharNumber)
	assert.Equal(t, "farmer", resp.User.UserType)
	assert.Equal(t, "Pune", resp.User.Location.District)
	assert.Equal(t, "Baramati", resp.User.Location.Village)

	claims, err := f.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestAadhar, claims.AadharNumber)
}

func TestVerifyOTP_SecondAttemptRejected(t *testing.T) {
	f := newAuthFixture(t, false)
	require.Equal(t, http.StatusOK, f.sendOTP(t, `{"aadharNumber":"123456789012"}`).Code)
	require.Equal(t, http.StatusOK, f.verifyOTP(t, `{"aadharNumber":"123456789012","otp":"550000"}`).Code)

	rec := f.verifyOTP(t, `{"aadharNumber":"123456789012","otp":"550000"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{
		"message": "Invalid or expired OTP. Please request a new one.",
		"code": "INVALID_OTP"
	}`, rec.Body.String())
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newAuthFixture(t, false)
	require.Equal(t, http.StatusOK, f.sendOTP(t, `{"aadharNumber":"123456789012"}`).Code)

	f.clock.Advance(otp.DefaultTTL)

	rec := f.verifyOTP(t, `{"aadharNumber":"123456789012","otp":"550000"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyOTP_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"malformed json", `[`, http.StatusBadRequest, "Invalid request body"},
		{"missing otp", `{"aadharNumber":"123456789012"}`, http.StatusBadRequest, "Aadhar number and OTP are required"},
		{"missing aadhar", `{"otp":"550000"}`, http.StatusBadRequest, "Aadhar number and OTP are required"},
		{"bad aadhar", `{"aadharNumber":"12345","otp":"550000"}`, http.StatusBadRequest, "Please enter a valid 12-digit Aadhar number"},
		{"short otp", `{"aadharNumber":"123456789012","otp":"55000"}`, http.StatusBadRequest, "Please enter a valid 6-digit OTP"},
		{"letters in otp", `{"aadharNumber":"123456789012","otp":"55a000"}`, http.StatusBadRequest, "Please enter a valid 6-digit OTP"},
		{"unknown subject", `{"aadharNumber":"999988887777","otp":"550000"}`, http.StatusNotFound, "No user found with this Aadhar number"},
		{"no code issued", `{"aadharNumber":"123456789012","otp":"550000"}`, http.StatusUnauthorized, "Invalid or expired OTP. Please request a new one."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, false)

			rec := f.verifyOTP(t, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var resp handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestVerifyOTP_StorageFailure(t *testing.T) {
	f := newAuthFixture(t, false)
	require.NoError(t, f.db.Close())

	rec := f.verifyOTP(t, `{"aadharNumber":"123456789012","otp":"550000"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Error verifying OTP. Please try again.", resp.Message)
	assert.Equal(t, handlers.CodeInternal, resp.Code)
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t, false)
	signed, _, err := f.tokens.Issue(testutil.TestAadhar)
	require.NoError(t, err)

	c, rec := testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/api/users/me", nil, map[string]string{
		echo.HeaderAuthorization: "Bearer " + signed,
	})

	err = f.h.RequireToken(f.h.Me)(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Ramesh Kumar Patil", resp.FullName)
	assert.Equal(t, "9876543210", resp.PhoneNumber)
}

func TestRequireToken(t *testing.T) {
	f := newAuthFixture(t, false)

	expired, _, err := f.tokens.Issue(testutil.TestAadhar)
	require.NoError(t, err)
	f.clock.Advance(31 * 24 * time.Hour)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no header", "", "Not authorized, no token"},
		{"wrong scheme", "Basic abc", "Not authorized, no token"},
		{"empty bearer", "Bearer ", "Not authorized, no token"},
		{"garbage", "Bearer not-a-token", "Not authorized, token failed"},
		{"expired", "Bearer " + expired, "Not authorized, token failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers[echo.HeaderAuthorization] = tt.header
			}
			c, rec := testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/api/users/me", nil, headers)

			called := false
			err := f.h.RequireToken(func(echo.Context) error {
				called = true
				return nil
			})(c)

			require.NoError(t, err)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var resp handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, handlers.CodeUnauthorized, resp.Code)
		})
	}
}
