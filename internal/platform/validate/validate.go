// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate collects field errors for chapter input and turns them
// into one VALIDATION_ERROR [apperr.AppError]. Services validate; storage
// trusts its callers.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/inkshelf/internal/platform/apperr"
)

const failedMessage = "Validation failed"

// decimalPattern accepts chapter numbers such as "12" or "10.5".
var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ErrInvalidJSON is returned when a request body cannot be decoded.
var ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")

// Validator accumulates failures in call order. Use one per operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails on a blank value.
func (v *Validator) Required(field, value string) *Validator {
	return v.Custom(field, strings.TrimSpace(value) == "", "This field is required")
}

// MaxLen fails when value has more than max characters.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	return v.Custom(field, utf8.RuneCountInString(value) > max, fmt.Sprintf("Maximum %d characters", max))
}

// Decimal fails unless a non-blank value is an unsigned decimal without an
// exponent. Blank values are left to [Validator.Required].
func (v *Validator) Decimal(field, value string) *Validator {
	if value == "" {
		return v
	}
	return v.Custom(field, !decimalPattern.MatchString(value), "Must be a non-negative decimal number")
}

// Present fails when an optional value was required but not supplied.
func Present[T any](v *Validator, field string, value *T) *Validator {
	return v.Custom(field, value == nil, "This field is required")
}

// Finite fails on NaN and infinities. A nil value passes.
func (v *Validator) Finite(field string, value *float64) *Validator {
	if value == nil {
		return v
	}
	return v.Custom(field, math.IsNaN(*value) || math.IsInf(*value, 0), "Must be a finite number")
}

// Custom records message for field when failed is true.
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
	}
	return v
}

// HasErrors reports whether any rule has failed.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// Err returns the collected failures, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError(failedMessage, v.errs...)
}

// Fail builds a validation error for a single field.
func Fail(field, message string) *apperr.AppError {
	return apperr.ValidationError(failedMessage, apperr.FieldError{Field: field, Message: message})
}
