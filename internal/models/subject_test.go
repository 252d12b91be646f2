// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestFormatAadhar(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123456789012", "1234 5678 9012"},
		{"1234", "1234"},
		{"12345", "1234 5"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, models.FormatAadhar(tt.input))
		})
	}
}

func TestSubject_Names(t *testing.T) {
	s := &models.Subject{Name: "Ramesh Kumar Patil"}

	assert.Equal(t, "Ramesh", s.FirstName())
	assert.Equal(t, "Kumar Patil", s.LastName())
}

func TestSubject_Names_SingleWord(t *testing.T) {
	s := &models.Subject{Name: "Sita"}

	assert.Equal(t, "Sita", s.FirstName())
	assert.Equal(t, "Sita", s.LastName())
}

func TestSubject_Names_Empty(t *testing.T) {
	s := &models.Subject{}

	assert.Empty(t, s.FirstName())
	assert.Empty(t, s.LastName())
}

func TestSubject_LocationString(t *testing.T) {
	s := &models.Subject{District: "Pune", State: "Maharashtra"}

	assert.Equal(t, "Pune, Maharashtra", s.LocationString())
	assert.Equal(t, "1234 5678 9012", (&models.Subject{AadharNo: "123456789012"}).FormattedAadhar())
}
