// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination parses page/limit query parameters and builds the
// "meta" block of list responses.
package pagination

import (
	"net/http"
	"strconv"
)

// Limits bounds the page size of one endpoint.
type Limits struct {
	Default int
	Max     int
}

// Standard applies to ordinary list endpoints.
var Standard = Limits{Default: 20, Max: 100}

// Params holds the parsed 1-indexed page and the page size.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the SQL OFFSET for p.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewMeta derives TotalPages and HasNext from total.
func NewMeta(page, limit, total int) Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// FromRequest parses "page" and "limit" with the [Standard] limits.
func FromRequest(r *http.Request) Params {
	return Standard.FromRequest(r)
}

// FromRequest parses "page" and "limit". A missing or unparsable value takes
// the default; a limit above Max is clamped to Max.
func (l Limits) FromRequest(r *http.Request) Params {
	query := r.URL.Query()

	page := intOr(query.Get("page"), 1)
	if page < 1 {
		page = 1
	}

	limit := intOr(query.Get("limit"), l.Default)
	switch {
	case limit < 1:
		limit = l.Default
	case limit > l.Max:
		limit = l.Max
	}

	return Params{Page: page, Limit: limit}
}

func intOr(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
