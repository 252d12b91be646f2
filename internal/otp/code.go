// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
)

const (
	// CodeLength is the number of digits in every generated code.
	CodeLength = 6

	codeMin  = 100000
	codeSpan = 900000
)

// Rand returns a uniformly distributed float64 in [0, 1).
type Rand func() float64

// CryptoRand draws 53 random bits from crypto/rand.
func CryptoRand() float64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// GenerateCode returns floor(100000 + rnd()*900000) as a decimal string.
// Codes below 100000 are never produced, so every code has six digits.
func GenerateCode(rnd Rand) string {
	n := codeMin + int(rnd()*codeSpan)
	// guard against a source that returns exactly 1.0
	if n > codeMin+codeSpan-1 {
		n = codeMin + codeSpan - 1
	}
	if n < codeMin {
		n = codeMin
	}
	return strconv.Itoa(n)
}
