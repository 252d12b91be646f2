// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "strings"

// Subject is a registered principal from the Aadhar registry.
type Subject struct { //nolint:govet // fieldalignment not critical for models
	AadharNo string `db:"aadhar_no" json:"aadhar_number"`
	Name     string `db:"name" json:"full_name"`
	PhoneNo  string `db:"phone_no" json:"phone_number"`
	State    string `db:"state" json:"state"`
	District string `db:"district" json:"district"`
	Address  string `db:"address" json:"address"`
}

// FormattedAadhar groups the Aadhar number in blocks of four digits.
func (s *Subject) FormattedAadhar() string {
	return FormatAadhar(s.AadharNo)
}

// FirstName returns the first word of the name.
func (s *Subject) FirstName() string {
	names := strings.Fields(s.Name)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// LastName returns everything after the first word, or the first word when
// the name has only one.
func (s *Subject) LastName() string {
	names := strings.Fields(s.Name)
	if len(names) == 0 {
		return ""
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[1:], " ")
}

// LocationString returns "district, state".
func (s *Subject) LocationString() string {
	return s.District + ", " + s.State
}

// FormatAadhar inserts a space after every fourth digit ("1234 5678 9012").
func FormatAadhar(aadhar string) string {
	var b strings.Builder
	for i, r := range aadhar {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
