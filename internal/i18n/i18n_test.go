// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/krishimitra/krishi-auth/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	err := i18n.Init()
	require.NoError(t, err)
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "OTP sent successfully", i18n.T(ctx, "otp_sent"))
}

func TestT_Hindi(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.Hindi)

	assert.Equal(t, "लॉगिन सफल", i18n.T(ctx, "login_successful"))
}

func TestT_Marathi(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.Marathi)

	assert.Equal(t, "लॉगिन यशस्वी", i18n.T(ctx, "login_successful"))
}

func TestT_AllLanguagesComplete(t *testing.T) {
	require.NoError(t, i18n.Init())

	ids := []string{
		"api_running", "aadhar_required", "aadhar_and_otp_required", "aadhar_invalid",
		"otp_format_invalid", "user_not_found_register", "user_not_found", "otp_sent",
		"otp_invalid", "otp_send_failed", "otp_verify_failed", "login_successful",
		"invalid_request", "not_authorized", "not_authorized_no_token", "internal_error",
	}

	for _, tag := range i18n.Supported {
		ctx := i18n.WithLocale(context.Background(), tag)
		for _, id := range ids {
			assert.NotEqual(t, id, i18n.T(ctx, id), "%s missing in %s", id, tag)
		}
	}
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	// Should return the key itself for unknown messages
	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	assert.Equal(t, "Login successful", i18n.T(context.Background(), "login_successful"))
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.TData(ctx, "otp_sent", map[string]any{"Name": "Test"})
	assert.Equal(t, "OTP sent successfully", result)
}

func TestTPlural(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "1 minute", i18n.TPlural(ctx, "expires_in_minutes", 1))
	assert.Equal(t, "5 minutes", i18n.TPlural(ctx, "expires_in_minutes", 5))

	mr := i18n.WithLocale(context.Background(), language.Marathi)
	assert.Equal(t, "5 मिनिटे", i18n.TPlural(mr, "expires_in_minutes", 5))
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.Hindi, "hi"},
		{language.Hindi, "hi-IN"},
		{language.Marathi, "mr"},
		{language.Marathi, "mr-IN"},
		{language.English, "fr"}, // fallback to English
		{language.English, ""},   // empty defaults to English
		{language.Hindi, "hi, en;q=0.9"},
		{language.Marathi, "mr, hi;q=0.9"},
		{language.English, "en, mr;q=0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			assert.Equal(t, tt.expected.String(), i18n.MatchLanguage(tt.acceptLanguage).String())
		})
	}
}

func TestWithLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.Hindi)

	assert.Equal(t, "hi", i18n.GetLocale(ctx))
}

func TestGetLocale_Default(t *testing.T) {
	ctx := context.Background()

	// Without WithLocale, should return "en"
	assert.Equal(t, "en", i18n.GetLocale(ctx))
}
