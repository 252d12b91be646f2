// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package login runs the Aadhar + OTP login flow: look up the farmer, issue
// and deliver a code, then trade a valid code for a session token.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"codeberg.org/krishimitra/krishi-auth/internal/repository"
	"codeberg.org/krishimitra/krishi-auth/internal/services/delivery"
	"codeberg.org/krishimitra/krishi-auth/internal/validate"
)

// Fields named in a ValidationError.
const (
	FieldAadhar = "aadharNumber"
	FieldCode   = "otp"
)

var (
	ErrSubjectNotFound = errors.New("no subject with this aadhar number")
	// ErrInvalidCode covers wrong, reused and expired codes alike.
	ErrInvalidCode = errors.New("invalid or expired code")
)

// ValidationError reports a malformed input field. Rule is the failed
// validator tag (required, digits, len).
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Rule)
}

// Subjects looks up registered farmers.
type Subjects interface {
	GetSubjectByAadhar(ctx context.Context, aadhar string) (*models.Subject, error)
}

// Codes issues and verifies one-time codes.
type Codes interface {
	Issue(ctx context.Context, subjectID string) (*models.OTPRecord, error)
	Verify(ctx context.Context, subjectID, code string) (bool, error)
}

// Tokens signs session tokens.
type Tokens interface {
	Issue(aadhar string) (string, time.Time, error)
}

// Service wires the login flow together.
type Service struct {
	subjects  Subjects
	codes     Codes
	channel   delivery.Channel
	tokens    Tokens
	validator *validate.Validator
}

// New creates a Service.
func New(subjects Subjects, codes Codes, channel delivery.Channel, tokens Tokens) *Service {
	return &Service{
		subjects:  subjects,
		codes:     codes,
		channel:   channel,
		tokens:    tokens,
		validator: validate.New(),
	}
}

// SendResult is returned by SendOTP.
type SendResult struct {
	Subject *models.Subject
	Record  *models.OTPRecord
}

// LoginResult is returned by VerifyOTP.
type LoginResult struct {
	Subject   *models.Subject
	Token     string
	ExpiresAt time.Time
}

// NormalizeAadhar removes all whitespace, so "1234 5678 9012" and
// "123456789012" name the same subject.
func NormalizeAadhar(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// SendOTP issues a fresh code for a registered subject and hands it to the
// delivery channel.
func (s *Service) SendOTP(ctx context.Context, aadhar string) (*SendResult, error) {
	aadhar = NormalizeAadhar(aadhar)
	if err := s.check(FieldAadhar, aadhar, "required,digits,len=12"); err != nil {
		return nil, err
	}

	subject, err := s.lookup(ctx, aadhar)
	if err != nil {
		return nil, err
	}

	rec, err := s.codes.Issue(ctx, aadhar)
	if err != nil {
		return nil, fmt.Errorf("issue otp: %w", err)
	}

	if err := s.channel.Deliver(ctx, subject, rec.Code); err != nil {
		return nil, fmt.Errorf("deliver otp: %w", err)
	}

	slog.InfoContext(ctx, "otp_sent", "aadhar", maskAadhar(aadhar), "expires_at", rec.ExpiresAt)
	return &SendResult{Subject: subject, Record: rec}, nil
}

// VerifyOTP consumes code and, on success, returns a session token.
func (s *Service) VerifyOTP(ctx context.Context, aadhar, code string) (*LoginResult, error) {
	aadhar = NormalizeAadhar(aadhar)
	if err := s.check(FieldAadhar, aadhar, "required,digits,len=12"); err != nil {
		return nil, err
	}
	if err := s.check(FieldCode, code, "required,digits,len=6"); err != nil {
		return nil, err
	}

	subject, err := s.lookup(ctx, aadhar)
	if err != nil {
		return nil, err
	}

	ok, err := s.codes.Verify(ctx, aadhar, code)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		slog.InfoContext(ctx, "otp_rejected", "aadhar", maskAadhar(aadhar))
		return nil, ErrInvalidCode
	}

	signed, expiresAt, err := s.tokens.Issue(aadhar)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "login_succeeded", "aadhar", maskAadhar(aadhar))
	return &LoginResult{Subject: subject, Token: signed, ExpiresAt: expiresAt}, nil
}

// Profile returns the subject for an already authenticated Aadhar number.
func (s *Service) Profile(ctx context.Context, aadhar string) (*models.Subject, error) {
	return s.lookup(ctx, aadhar)
}

func (s *Service) check(field, value, tag string) error {
	if rule := s.validator.Var(value, tag); rule != "" {
		return &ValidationError{Field: field, Rule: rule}
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, aadhar string) (*models.Subject, error) {
	subject, err := s.subjects.GetSubjectByAadhar(ctx, aadhar)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup subject: %w", err)
	}
	return subject, nil
}

func maskAadhar(aadhar string) string {
	if len(aadhar) <= 4 {
		return aadhar
	}
	return strings.Repeat("x", len(aadhar)-4) + aadhar[len(aadhar)-4:]
}
