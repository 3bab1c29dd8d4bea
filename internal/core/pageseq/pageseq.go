// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pageseq assigns 1-based page numbers.

It is pure: no I/O, no clock, no shared state. The chapter service calls it
inside a unit of work after it has locked the chapter and read the current
maximum page number, so the inputs it receives are already consistent.

Numbering modes:

  - [AssignSequential]: a fresh chapter, pages 1..N in upload order.
  - [AppendAfterMax]: new pages placed after the current last page.
  - [ApplyExplicitOrder]: an admin supplied order for existing pages.

Pages that an explicit order does not mention keep their numbers, which can
leave duplicates until a full reorder is submitted.
*/
package pageseq

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is returned by [ValidateOrder] when an identifier repeats.
var ErrDuplicateID = errors.New("pageseq: duplicate page id in order")

// Numbered pairs an item with the page number assigned to it.
type Numbered[T any] struct {
	Item   T
	Number int
}

// AssignSequential numbers items 1..N in list order.
func AssignSequential[T any](items []T) []Numbered[T] {
	return AppendAfterMax(0, items)
}

// AppendAfterMax numbers items from existingMax+1, preserving list order.
// A negative existingMax is treated as an empty chapter.
func AppendAfterMax[T any](existingMax int, items []T) []Numbered[T] {
	if existingMax < 0 {
		existingMax = 0
	}

	numbered := make([]Numbered[T], len(items))
	for i, item := range items {
		numbered[i] = Numbered[T]{Item: item, Number: existingMax + i + 1}
	}
	return numbered
}

// ValidateOrder rejects an order list that names the same page twice.
func ValidateOrder[ID comparable](orderedIDs []ID) error {
	seen := make(map[ID]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ApplyExplicitOrder maps the page at position i to number i+1.
//
// The input must have passed [ValidateOrder].
func ApplyExplicitOrder[ID comparable](orderedIDs []ID) map[ID]int {
	numbers := make(map[ID]int, len(orderedIDs))
	for i, id := range orderedIDs {
		numbers[id] = i + 1
	}
	return numbers
}
