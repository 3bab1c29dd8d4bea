// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package uuid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/inkshelf/pkg/uuid"
)

func TestNewIsVersion7AndOrdered(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	assert.True(t, uuid.Valid(first))
	assert.Equal(t, byte('7'), first[14])
	assert.LessOrEqual(t, first[:13], second[:13])
}

func TestValid(t *testing.T) {
	assert.True(t, uuid.Valid("0190a0b2-7c3e-7d4a-9b1c-2f3e4d5a6b7c"))
	assert.False(t, uuid.Valid("chapter-1"))
	assert.False(t, uuid.Valid(""))
}

func TestCanonical(t *testing.T) {
	const want = "0190a0b2-7c3e-7d4a-9b1c-2f3e4d5a6b7c"

	for _, in := range []string{
		want,
		"0190A0B2-7C3E-7D4A-9B1C-2F3E4D5A6B7C",
		"{0190a0b2-7c3e-7d4a-9b1c-2f3e4d5a6b7c}",
		"urn:uuid:0190a0b2-7c3e-7d4a-9b1c-2f3e4d5a6b7c",
	} {
		got, ok := uuid.Canonical(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := uuid.Canonical("page-1")
	assert.False(t, ok)
}
