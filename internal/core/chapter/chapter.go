// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package chapter manages the chapter aggregate of a serialized work: the
chapter row, its ordered pages, and the page image files behind them.

# Core Responsibility

  - Ingestion: New chapters and new pages arrive as uploaded files.
  - Ordering: Pages carry a 1-based [Page.PageNumber] assigned by pageseq.
  - Consistency: Every page row owns exactly one blob, and every blob written
    for a failed request is deleted again (see txn.Coordinator).
  - Freshness: Content changes move the work's "last content update" forward.

Work rows are created elsewhere. This package only locks them and updates
their freshness timestamp.
*/
package chapter

import (
	"context"
	"strings"
	"time"
)

// # Chapter Aggregate

// Chapter is one installment of a work. It owns its pages.
type Chapter struct {
	ID            string    `json:"id"`
	WorkID        string    `json:"work_id"`
	Title         string    `json:"title"`
	ChapterNumber string    `json:"chapter_number"` // Decimal text such as "10.5"
	SortOrder     float64   `json:"order"`          // Display position, unique per work
	ViewCount     int64     `json:"view_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Pages         []*Page   `json:"pages,omitempty"`
}

// Page is a single image within a [Chapter].
type Page struct {
	ID               string    `json:"id"`
	ChapterID        string    `json:"chapter_id"`
	PageNumber       int       `json:"page_number"`
	ImageURL         string    `json:"image_url"` // Relative blob path
	OriginalFilename string    `json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
}

// Work is the slice of the parent work this package reads and writes.
type Work struct {
	ID                   string
	LastContentUpdatedAt time.Time
	CreatedAt            time.Time
}

// UploadedFile is a page image already written to the blob store.
type UploadedFile struct {
	RelativePath     string
	OriginalFilename string
}

// # Inputs

// CreateInput carries a new chapter and its first pages.
type CreateInput struct {
	WorkID        string
	ChapterNumber string
	SortOrder     *float64
	Title         string
	Files         []UploadedFile
}

// Patch holds optional metadata changes. Nil fields are left untouched.
type Patch struct {
	Title         *string  `json:"title"`
	ChapterNumber *string  `json:"chapter_number"`
	SortOrder     *float64 `json:"order"`
}

// IsEmpty reports whether the patch changes nothing.
func (patch Patch) IsEmpty() bool {
	return patch.Title == nil && patch.ChapterNumber == nil && patch.SortOrder == nil
}

// DefaultTitle is used whenever a chapter title is blank.
func DefaultTitle(chapterNumber string) string {
	return "Chapter " + chapterNumber
}

func titleOrDefault(title, chapterNumber string) string {
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		return trimmed
	}
	return DefaultTitle(chapterNumber)
}

// # Events

// EventKind names a committed change to a chapter.
type EventKind string

const (
	EventChapterCreated    EventKind = "chapter.created"
	EventChapterPagesAdded EventKind = "chapter.pages_added"
	EventChapterReordered  EventKind = "chapter.reordered"
	EventChapterUpdated    EventKind = "chapter.updated"
	EventChapterDeleted    EventKind = "chapter.deleted"
	EventPageDeleted       EventKind = "page.deleted"
)

// Event is emitted after a unit of work commits.
type Event struct {
	Kind       EventKind `json:"kind"`
	WorkID     string    `json:"work_id"`
	ChapterID  string    `json:"chapter_id"`
	PageID     string    `json:"page_id,omitempty"`
	FreshAt    time.Time `json:"fresh_at,omitzero"` // Work freshness after the change; zero when untouched
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events to whoever listens for content updates.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements [Publisher].
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// # Validation Fields

const (
	FieldWorkID        = "work_id"
	FieldChapterNumber = "chapter_number"
	FieldOrder         = "order"
	FieldTitle         = "title"
	FieldPages         = "pages"
	FieldPageOrder     = "page_order"
)
