// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuid issues the UUIDv7 values used for chapter and page keys and
// for blob file names. Version 7 sorts by creation time, which keeps
// B-tree inserts local and makes files of one upload list together.
package uuid

import "github.com/google/uuid"

// New returns a UUIDv7 string. It panics only when the system entropy
// source fails.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Valid reports whether s parses as a UUID of any version. Callers use it
// to answer malformed path IDs with 404 before touching the database.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}

// Canonical returns s in lower-case hyphenated form. Braced, urn:uuid: and
// upper-case spellings of one UUID all map to the same string.
func Canonical(s string) (string, bool) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
