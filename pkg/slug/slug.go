// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug turns arbitrary Unicode text into short ASCII tokens that are
// safe inside URLs and object keys. Uploaded page file names go through it
// before they become part of a blob path.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLen bounds the slug so object keys stay well under backend limits.
const MaxLen = 48

// stripMarks decomposes accented letters and drops the combining marks.
var stripMarks = transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}), norm.NFC)

// From lowercases s, strips accents and keeps only [a-z0-9] runs joined by
// single hyphens, truncated to [MaxLen]. Scripts without an ASCII form, such
// as "第1話", reduce to their digits or to "".
func From(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var builder strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if builder.Len() >= MaxLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && builder.Len() > 0 {
				if builder.Len() >= MaxLen-1 {
					break
				}
				builder.WriteByte('-')
			}
			pendingHyphen = false
			builder.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	return builder.String()
}

// Or returns From(s), or fallback when s has no usable characters.
func Or(s, fallback string) string {
	if slugged := From(s); slugged != "" {
		return slugged
	}
	return fallback
}
