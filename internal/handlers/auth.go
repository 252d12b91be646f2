// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/i18n"
	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"codeberg.org/krishimitra/krishi-auth/internal/services/login"
	"codeberg.org/krishimitra/krishi-auth/internal/services/token"
	"github.com/labstack/echo/v4"
)

// aadharKey holds the authenticated Aadhar number in the echo context.
const aadharKey = "aadhar"

// TokenParser validates session tokens.
type TokenParser interface {
	Parse(tokenStr string) (*token.Claims, error)
}

// AuthHandlers contains handlers for the OTP login flow.
type AuthHandlers struct {
	login   *login.Service
	tokens  TokenParser
	otpTTL  time.Duration
	devMode bool
}

// NewAuth creates a new AuthHandlers instance. In devMode issued codes are
// echoed in the send-otp response.
func NewAuth(svc *login.Service, tokens TokenParser, otpTTL time.Duration, devMode bool) *AuthHandlers {
	return &AuthHandlers{
		login:   svc,
		tokens:  tokens,
		otpTTL:  otpTTL,
		devMode: devMode,
	}
}

// SendOTPRequest is the request body of POST /api/users/send-otp.
type SendOTPRequest struct {
	AadharNumber string `json:"aadharNumber" validate:"required"`
}

// SendOTPResponse is returned after a code was issued.
type SendOTPResponse struct {
	Message      string    `json:"message"`
	AadharNumber string    `json:"aadharNumber"`
	UserName     string    `json:"userName"`
	ExpiresIn    string    `json:"expiresIn"`
	ExpiresAt    time.Time `json:"expiresAt"`
	OTP          string    `json:"otp,omitempty"`
}

// VerifyOTPRequest is the request body of POST /api/users/verify-otp.
type VerifyOTPRequest struct {
	AadharNumber string `json:"aadharNumber" validate:"required"`
	OTP          string `json:"otp" validate:"required"`
}

// LoginResponse is returned after a successful verification.
type LoginResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public profile of a subject.
type UserResponse struct {
	AadharNumber string   `json:"aadharNumber"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	FullName     string   `json:"fullName"`
	PhoneNumber  string   `json:"phoneNumber"`
	UserType     string   `json:"userType"`
	Location     Location `json:"location"`
}

// Location is where a farmer is registered.
type Location struct {
	State    string `json:"state"`
	District string `json:"district"`
	Village  string `json:"village"`
}

func newUserResponse(s *models.Subject) UserResponse {
	return UserResponse{
		AadharNumber: s.AadharNo,
		FirstName:    s.FirstName(),
		LastName:     s.LastName(),
		FullName:     s.Name,
		PhoneNumber:  s.PhoneNo,
		UserType:     "farmer",
		Location: Location{
			State:    s.State,
			District: s.District,
			Village:  s.Address,
		},
	}
}

// SendOTP issues a code for a registered Aadhar number.
func (h *AuthHandlers) SendOTP(c echo.Context) error {
	ctx := c.Request().Context()

	var req SendOTPRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid_request", CodeInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "aadhar_required", CodeValidation)
	}

	res, err := h.login.SendOTP(ctx, req.AadharNumber)
	if err != nil {
		var verr *login.ValidationError
		switch {
		case errors.As(err, &verr):
			return respondValidation(c, verr, "aadhar_required")
		case errors.Is(err, login.ErrSubjectNotFound):
			return respondError(c, http.StatusNotFound, "user_not_found_register", CodeUserNotFound)
		default:
			slog.ErrorContext(ctx, "send_otp_failed", "error", err)
			return respondError(c, http.StatusInternalServerError, "otp_send_failed", CodeInternal)
		}
	}

	resp := SendOTPResponse{
		Message:      i18n.T(ctx, "otp_sent"),
		AadharNumber: res.Subject.FormattedAadhar(),
		UserName:     res.Subject.Name,
		ExpiresIn:    i18n.TPlural(ctx, "expires_in_minutes", int(math.Ceil(h.otpTTL.Minutes()))),
		ExpiresAt:    res.Record.ExpiresAt,
	}
	if h.devMode {
		resp.OTP = res.Record.Code
	}

	return c.JSON(http.StatusOK, resp)
}

// VerifyOTP trades a valid code for a session token.
func (h *AuthHandlers) VerifyOTP(c echo.Context) error {
	ctx := c.Request().Context()

	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid_request", CodeInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "aadhar_and_otp_required", CodeValidation)
	}

	res, err := h.login.VerifyOTP(ctx, req.AadharNumber, req.OTP)
	if err != nil {
		var verr *login.ValidationError
		switch {
		case errors.As(err, &verr):
			return respondValidation(c, verr, "aadhar_and_otp_required")
		case errors.Is(err, login.ErrSubjectNotFound):
			return respondError(c, http.StatusNotFound, "user_not_found", CodeUserNotFound)
		case errors.Is(err, login.ErrInvalidCode):
			return respondError(c, http.StatusUnauthorized, "otp_invalid", CodeInvalidOTP)
		default:
			slog.ErrorContext(ctx, "verify_otp_failed", "error", err)
			return respondError(c, http.StatusInternalServerError, "otp_verify_failed", CodeInternal)
		}
	}

	return c.JSON(http.StatusOK, LoginResponse{
		Message:   i18n.T(ctx, "login_successful"),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      newUserResponse(res.Subject),
	})
}

// Me returns the profile of the authenticated subject.
func (h *AuthHandlers) Me(c echo.Context) error {
	aadhar, _ := c.Get(aadharKey).(string)

	subject, err := h.login.Profile(c.Request().Context(), aadhar)
	if err != nil {
		if errors.Is(err, login.ErrSubjectNotFound) {
			return respondError(c, http.StatusNotFound, "user_not_found", CodeUserNotFound)
		}
		slog.ErrorContext(c.Request().Context(), "profile_failed", "error", err)
		return respondError(c, http.StatusInternalServerError, "internal_error", CodeInternal)
	}

	return c.JSON(http.StatusOK, newUserResponse(subject))
}

// RequireToken rejects requests without a valid Bearer token and stores the
// token's Aadhar number for the next handler.
func (h *AuthHandlers) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return respondError(c, http.StatusUnauthorized, "not_authorized_no_token", CodeUnauthorized)
		}

		claims, err := h.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			slog.DebugContext(c.Request().Context(), "token_rejected", "error", err)
			return respondError(c, http.StatusUnauthorized, "not_authorized", CodeUnauthorized)
		}

		c.Set(aadharKey, claims.AadharNumber)
		return next(c)
	}
}

// respondValidation maps a field error to its message. requiredID is used
// when a required field is missing.
func respondValidation(c echo.Context, verr *login.ValidationError, requiredID string) error {
	messageID := requiredID
	switch {
	case verr.Rule == "required":
	case verr.Field == login.FieldCode:
		messageID = "otp_format_invalid"
	default:
		messageID = "aadhar_invalid"
	}
	return respondError(c, http.StatusBadRequest, messageID, CodeValidation)
}
