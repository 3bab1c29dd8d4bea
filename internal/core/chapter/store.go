// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"time"
)

// # Data Access Contracts

// WorkRepository reads and updates the parent work of a chapter.
type WorkRepository interface {

	/*
		LockWork loads a work and holds its row lock until the unit ends.

		Returns:
		  - *Work: The locked work
		  - error: pgx.ErrNoRows if missing
	*/
	LockWork(context context.Context, workID string) (*Work, error)

	// WorkExists reports whether a work row exists.
	WorkExists(context context.Context, workID string) (bool, error)

	/*
		TouchWork moves the work's freshness forward to at. An older value never
		replaces a newer one.

		Returns:
		  - time.Time: The stored freshness after the update
		  - error: pgx.ErrNoRows if the work is missing
	*/
	TouchWork(context context.Context, workID string, at time.Time) (time.Time, error)

	/*
		RecomputeWorkFreshness resets freshness to the newest remaining chapter's
		creation time, or the work's own creation time when it has no chapters.
	*/
	RecomputeWorkFreshness(context context.Context, workID string) (time.Time, error)
}

// ChapterRepository persists chapter rows.
type ChapterRepository interface {

	// FindChapter returns the chapter without pages. pgx.ErrNoRows if missing.
	FindChapter(context context.Context, id string) (*Chapter, error)

	// LockChapter is FindChapter with a row lock held until the unit ends.
	LockChapter(context context.Context, id string) (*Chapter, error)

	/*
		ListByWork returns one page of a work's chapters ordered by sort order.

		Returns:
		  - []*Chapter: Chapters without pages
		  - int: Total chapters of the work
	*/
	ListByWork(context context.Context, workID string, limit, offset int) ([]*Chapter, int, error)

	// CreateChapter inserts the row. Collisions surface as unique violations.
	CreateChapter(context context.Context, chapter *Chapter) error

	// UpdateChapter writes title, number and sort order.
	UpdateChapter(context context.Context, chapter *Chapter) error

	// DeleteChapter removes the chapter row.
	DeleteChapter(context context.Context, id string) error

	// IncrementViewCount adds delta to the view counter. pgx.ErrNoRows if missing.
	IncrementViewCount(context context.Context, id string, delta int64) error
}

// PageRepository persists page rows.
type PageRepository interface {

	// ListPages returns a chapter's pages ordered by page number.
	ListPages(context context.Context, chapterID string) ([]*Page, error)

	// MaxPageNumber returns the highest page number of a chapter, 0 when empty.
	MaxPageNumber(context context.Context, chapterID string) (int, error)

	// CreatePages bulk-inserts pages.
	CreatePages(context context.Context, pages []*Page) error

	/*
		SetPageNumbers assigns new numbers to pages of one chapter.

		Returns:
		  - error: pgx.ErrNoRows if any id does not belong to the chapter
	*/
	SetPageNumbers(context context.Context, chapterID string, numbers map[string]int) error

	// DeletePage removes the row and returns it. pgx.ErrNoRows if missing.
	DeletePage(context context.Context, id string) (*Page, error)

	// DeletePagesByChapter removes every page of a chapter and returns their image paths.
	DeletePagesByChapter(context context.Context, chapterID string) ([]string, error)

	// OwnedImagePaths returns the subset of paths that a page row references.
	OwnedImagePaths(context context.Context, paths []string) (map[string]struct{}, error)
}

// Repository is the full aggregate store.
type Repository interface {
	WorkRepository
	ChapterRepository
	PageRepository
}
