// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package validate wraps go-playground/validator for request structs and
// single values.
package validate

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var reDigits = regexp.MustCompile(`^[0-9]+$`)

// FieldErrors maps a JSON field name to the failed validation tag.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation error"
	}
	b, err := json.Marshal(fe)
	if err != nil {
		return "validation error"
	}
	return string(b)
}

// Validator implements echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the "digits" rule registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	//nolint:errcheck // only fails on an empty tag
	v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && reDigits.MatchString(s)
	})

	return &Validator{validate: v}
}

// Validate checks a struct and returns FieldErrors on failure.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// Var checks a single value against tag and returns the first failed rule,
// or "" when the value is valid.
func (v *Validator) Var(value any, tag string) string {
	err := v.validate.Var(value, tag)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	return tag
}
