// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package blob stores page image bytes addressed by relative path.

It is the only code that touches the storage medium. Callers hand it a
relative path, it hands back the canonical form of that path, and nothing
above this package ever sees an absolute filesystem location or a bucket key.

Backends:

  - [FileStore]: a directory on local disk (default).
  - [S3Store]: an S3 / R2 compatible bucket.

The package knows nothing about chapters or pages. Ownership of a blob is
decided by whoever records its path.
*/
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrInvalidPath is returned for empty, absolute or root-escaping paths.
var ErrInvalidPath = errors.New("blob: invalid relative path")

// Store is the contract every blob backend implements.
type Store interface {
	// Put writes the reader's bytes at relativePath, replacing any existing
	// object, and returns the canonical relative path.
	Put(ctx context.Context, relativePath string, content io.Reader) (string, error)

	// Delete removes the object. A missing object is logged and ignored.
	Delete(ctx context.Context, relativePath string) error

	// Exists reports whether an object is stored at relativePath.
	Exists(ctx context.Context, relativePath string) (bool, error)

	// Walk calls fn for every stored object. Returning an error from fn stops the walk.
	Walk(ctx context.Context, fn func(Object) error) error
}

// Object describes a stored blob as seen by [Store.Walk].
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// CleanPath canonicalises a caller supplied relative path.
//
// Backslashes become forward slashes and the path is lexically cleaned. The
// result must stay inside the store root, so absolute paths and anything
// that climbs above the root are rejected with [ErrInvalidPath].
func CleanPath(relativePath string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(relativePath), `\`, "/")
	if normalized == "" || strings.ContainsRune(normalized, 0) {
		return "", ErrInvalidPath
	}

	// Reject rooted and drive-qualified paths before cleaning hides them.
	if strings.HasPrefix(normalized, "/") || (len(normalized) > 1 && normalized[1] == ':') {
		return "", ErrInvalidPath
	}

	cleaned := path.Clean(normalized)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}

	return cleaned, nil
}
