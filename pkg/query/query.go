// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query parses list-valued form and query parameters.
package query

import "strings"

// List flattens repeated values and comma-separated values into one list,
// so "a,b" and a=a&a=b parse the same. Entries are trimmed and blanks are
// dropped; order is preserved and duplicates are kept for the caller to judge.
func List(values []string) []string {
	var items []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
