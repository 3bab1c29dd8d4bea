// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package requestutil reads path parameters and JSON bodies. Multipart
// uploads are parsed by the chapter handler itself.
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/inkshelf/internal/platform/validate"
)

// maxJSONBodyBytes bounds JSON request bodies such as chapter patches.
const maxJSONBodyBytes = 64 << 10

// DecodeJSON decodes exactly one JSON object into target. Unknown fields,
// trailing data and oversized bodies are rejected with
// [validate.ErrInvalidJSON].
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return validate.ErrInvalidJSON
	}
	return nil
}

// ID returns the named chi path parameter, e.g. "chapterID".
func ID(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}
