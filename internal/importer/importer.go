// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package importer loads the Aadhar registry export into the subjects table.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"codeberg.org/krishimitra/krishi-auth/internal/models"
	"codeberg.org/krishimitra/krishi-auth/internal/services/login"
	"codeberg.org/krishimitra/krishi-auth/internal/validate"
)

// Columns expected in the header row, matched case-insensitively.
var columns = []string{"AADHAAR_NO", "NAME", "PHONE_NO", "STATE", "DISTRICT", "ADDRESS"}

// Upserter stores subjects.
type Upserter interface {
	UpsertSubject(ctx context.Context, s *models.Subject) error
}

// RowError reports a rejected line of the input.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Result summarizes an import.
type Result struct {
	Imported int
	Skipped  []*RowError
}

// Import reads CSV rows from r and upserts them. Malformed rows are skipped
// and reported; a storage error aborts the import.
func Import(ctx context.Context, store Upserter, r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	v := validate.New()
	res := &Result{}
	line := 1

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			res.Skipped = append(res.Skipped, &RowError{Line: line, Reason: err.Error()})
			continue
		}

		s := models.Subject{
			AadharNo: login.NormalizeAadhar(record[index["AADHAAR_NO"]]),
			Name:     strings.TrimSpace(record[index["NAME"]]),
			PhoneNo:  strings.TrimSpace(record[index["PHONE_NO"]]),
			State:    strings.TrimSpace(record[index["STATE"]]),
			District: strings.TrimSpace(record[index["DISTRICT"]]),
			Address:  strings.TrimSpace(record[index["ADDRESS"]]),
		}
		if rule := v.Var(s.AadharNo, "required,digits,len=12"); rule != "" {
			res.Skipped = append(res.Skipped, &RowError{Line: line, Reason: "invalid AADHAAR_NO (" + rule + ")"})
			continue
		}
		if s.Name == "" {
			res.Skipped = append(res.Skipped, &RowError{Line: line, Reason: "missing NAME"})
			continue
		}

		if err := store.UpsertSubject(ctx, &s); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Imported++
	}

	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, name := range header {
		index[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %s", col)
		}
	}
	return index, nil
}
