// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"codeberg.org/krishimitra/krishi-auth/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Error codes returned next to the localized message.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeInvalidOTP     = "INVALID_OTP"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// respondError writes a localized error body.
func respondError(c echo.Context, status int, messageID, code string) error {
	return c.JSON(status, ErrorResponse{
		Message: i18n.T(c.Request().Context(), messageID),
		Code:    code,
	})
}
