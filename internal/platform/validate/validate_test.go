// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/validate"
	"github.com/taibuivan/inkshelf/pkg/pointer"
)

func TestValidator_Required(t *testing.T) {
	for _, value := range []string{"", "   ", "\t"} {
		v := &validate.Validator{}
		v.Required("chapter_number", value)

		ae := apperr.As(v.Err())
		require.NotNil(t, ae, "value %q", value)
		assert.Equal(t, apperr.CodeValidation, ae.Code)
		assert.Equal(t, "chapter_number", ae.Details[0].Field)
	}

	v := &validate.Validator{}
	assert.NoError(t, v.Required("title", "Chapter 1").Err())
}

// MaxLen counts characters, not bytes.
func TestValidator_MaxLen(t *testing.T) {
	v := &validate.Validator{}
	v.MaxLen("title", strings.Repeat("話", 5), 5)
	assert.False(t, v.HasErrors())

	v.MaxLen("title", strings.Repeat("a", 6), 5)
	assert.True(t, v.HasErrors())
}

func TestValidator_Decimal(t *testing.T) {
	tests := []struct {
		value   string
		isValid bool
	}{
		{"1", true},
		{"10.5", true},
		{"0", true},
		{"", true}, // blank is Required's concern
		{"-1", false},
		{"1.", false},
		{"1e3", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v := &validate.Validator{}
			v.Decimal("chapter_number", tt.value)
			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

func TestValidator_PresentAndFinite(t *testing.T) {
	tests := []struct {
		name   string
		order  *float64
		failed bool
	}{
		{name: "missing", order: nil, failed: true},
		{name: "finite", order: pointer.To(2.5), failed: false},
		{name: "nan", order: pointer.To(math.NaN()), failed: true},
		{name: "infinite", order: pointer.To(math.Inf(-1)), failed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			validate.Present(v, "order", tt.order).Finite("order", tt.order)
			assert.Equal(t, tt.failed, v.HasErrors())
		})
	}

	// Finite alone accepts an absent value, as PATCH does.
	assert.NoError(t, (&validate.Validator{}).Finite("order", nil).Err())
}

func TestValidator_AccumulatesInOrder(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("chapter_number", "").
		Decimal("chapter_number", "x").
		Custom("pages", true, "At least one page image is required").
		MaxLen("title", "ok", 10).
		Err()

	ae := apperr.As(err)
	require.NotNil(t, ae)
	require.Len(t, ae.Details, 3)
	assert.Equal(t, "pages", ae.Details[2].Field)
}

func TestFail(t *testing.T) {
	ae := validate.Fail("page_order", "Page order must not repeat a page")

	assert.Equal(t, apperr.CodeValidation, ae.Code)
	require.Len(t, ae.Details, 1)
	assert.Equal(t, "page_order", ae.Details[0].Field)
}
