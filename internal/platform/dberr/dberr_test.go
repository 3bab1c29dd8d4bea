// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/dberr"
)

/*
TestWrap_Classification maps raw driver errors onto the application taxonomy.
*/
func TestWrap_Classification(t *testing.T) {
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "chapter_work_number_key"}
	foreign := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}

	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"no_rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"wrapped_no_rows", fmt.Errorf("postgres: find: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"unique_violation", fmt.Errorf("postgres: insert: %w", unique), "CONFLICT", http.StatusConflict},
		{"foreign_key", foreign, "NOT_FOUND", http.StatusNotFound},
		{"unknown", errors.New("connection reset"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := apperr.As(dberr.Wrap(tt.err, "Chapter"))
			require.NotNil(t, ae)
			assert.Equal(t, tt.code, ae.Code)
			assert.Equal(t, tt.status, ae.HTTPStatus)
		})
	}
}

func TestWrap_PassThrough(t *testing.T) {
	assert.Nil(t, dberr.Wrap(nil, "Chapter"))

	original := apperr.ValidationError("Validation failed")
	assert.Same(t, original, dberr.Wrap(original, "Chapter"))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "page_imageurl_key"})

	assert.True(t, dberr.IsUniqueViolation(err, ""))
	assert.True(t, dberr.IsUniqueViolation(err, "page_imageurl_key"))
	assert.False(t, dberr.IsUniqueViolation(err, "other"))
	assert.False(t, dberr.IsUniqueViolation(errors.New("boom"), ""))
}
