// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp

import (
	"errors"
	"fmt"
)

// ErrStorage matches every StorageError via errors.Is.
var ErrStorage = errors.New("otp storage error")

// StorageError reports a failed store operation. It is returned unchanged to
// the caller; retry policy belongs there.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("otp %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorage) succeed for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
