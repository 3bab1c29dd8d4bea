// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/inkshelf/pkg/pagination"
)

func TestLimitsFromRequest(t *testing.T) {
	limits := pagination.Limits{Default: 50, Max: 200}

	tests := []struct {
		name  string
		query string
		want  pagination.Params
	}{
		{name: "defaults", query: "", want: pagination.Params{Page: 1, Limit: 50}},
		{name: "explicit", query: "page=3&limit=10", want: pagination.Params{Page: 3, Limit: 10}},
		{name: "clamped", query: "limit=1000", want: pagination.Params{Page: 1, Limit: 200}},
		{name: "garbage", query: "page=x&limit=-4", want: pagination.Params{Page: 1, Limit: 50}},
		{name: "zero page", query: "page=0", want: pagination.Params{Page: 1, Limit: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/chapters?"+tt.query, nil)
			assert.Equal(t, tt.want, limits.FromRequest(request))
		})
	}
}

func TestParamsOffset(t *testing.T) {
	assert.Equal(t, 0, pagination.Params{Page: 1, Limit: 20}.Offset())
	assert.Equal(t, 40, pagination.Params{Page: 3, Limit: 20}.Offset())
}

func TestNewMeta(t *testing.T) {
	meta := pagination.NewMeta(2, 20, 41)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)

	last := pagination.NewMeta(3, 20, 41)
	assert.False(t, last.HasNext)

	empty := pagination.NewMeta(1, 20, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
}
