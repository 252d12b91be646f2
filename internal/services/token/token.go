// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and parses the signed login tokens handed out after a
// successful OTP verification.
package token

import (
	"errors"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HS256 key size in bytes.
const MinSecretLength = 32

const issuer = "krishi-mitra"

var (
	ErrSecretTooShort = errors.New("token secret must be at least 32 bytes")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token has expired")
)

// Claims carries the Aadhar number of the logged-in subject.
type Claims struct {
	jwt.RegisteredClaims
	AadharNumber string `json:"aadharNumber"`
}

// Service signs tokens with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clocker
}

// New creates a Service. A nil clock uses the system clock.
func New(secret []byte, ttl time.Duration, clk clock.Clocker) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{secret: secret, ttl: ttl, clock: clk}, nil
}

// Issue returns a signed token for aadhar and its expiry.
func (s *Service) Issue(aadhar string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   aadhar,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		AadharNumber: aadhar,
	}).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates tokenStr and returns its claims.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(*jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.AadharNumber == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
