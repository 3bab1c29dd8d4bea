// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/inkshelf/internal/core/pageseq"
	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/ctxutil"
	"github.com/taibuivan/inkshelf/internal/platform/database/schema"
	"github.com/taibuivan/inkshelf/internal/platform/dberr"
	"github.com/taibuivan/inkshelf/internal/platform/txn"
	"github.com/taibuivan/inkshelf/internal/platform/validate"
	"github.com/taibuivan/inkshelf/pkg/pointer"
	"github.com/taibuivan/inkshelf/pkg/slice"
	"github.com/taibuivan/inkshelf/pkg/uuid"
)

// maxTitleLength bounds chapter titles.
const maxTitleLength = 255

// # Service Layer

// Service orchestrates every change to the chapter aggregate.
//
// Writes run through the [txn.Coordinator] on a transaction-bound repository
// built by unitRepository. Reads use the pool-bound repository directly.
type Service struct {
	repository     Repository
	unitRepository func(pgx.Tx) Repository
	coordinator    *txn.Coordinator
	publisher      Publisher
	logger         *slog.Logger
	now            func() time.Time
}

// NewService constructs a new [Service].
func NewService(repository Repository, unitRepository func(pgx.Tx) Repository, coordinator *txn.Coordinator, publisher Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}

	return &Service{
		repository:     repository,
		unitRepository: unitRepository,
		coordinator:    coordinator,
		publisher:      publisher,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for timestamps and freshness.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// # Write Operations

/*
CreateChapter creates a chapter together with its first pages.

Description: Locks the work row, numbers the files 1..N in submission order,
inserts the chapter and its pages, and moves the work's freshness forward.
Every uploaded file is deleted again if anything fails, validation included.

Parameters:
  - ctx: context.Context
  - input: CreateInput (files already stored in the blob store)

Returns:
  - *Chapter: The new chapter with pages sorted by page number
  - error: ValidationError, NotFound (work), Conflict (number or order taken)
*/
func (service *Service) CreateChapter(ctx context.Context, input CreateInput) (*Chapter, error) {
	input.ChapterNumber = strings.TrimSpace(input.ChapterNumber)

	validator := &validate.Validator{}
	validator.Required(FieldChapterNumber, input.ChapterNumber).
		Decimal(FieldChapterNumber, input.ChapterNumber)
	validate.Present(validator, FieldOrder, input.SortOrder).
		Finite(FieldOrder, input.SortOrder).
		MaxLen(FieldTitle, input.Title, maxTitleLength).
		Custom(FieldPages, len(input.Files) == 0, "At least one page image is required")

	if err := validator.Err(); err != nil {
		return nil, service.reject(ctx, input.Files, err)
	}
	if !uuid.Valid(input.WorkID) {
		return nil, service.reject(ctx, input.Files, apperr.NotFound("Work"))
	}

	now := service.now()
	chapter := &Chapter{
		ID:            uuid.New(),
		WorkID:        input.WorkID,
		Title:         titleOrDefault(input.Title, input.ChapterNumber),
		ChapterNumber: input.ChapterNumber,
		SortOrder:     *input.SortOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var freshAt time.Time
	err := service.coordinator.Run(ctx, filePaths(input.Files), func(ctx context.Context, unit *txn.Unit) error {
		repo := service.unitRepository(unit.Tx)

		// Serialises chapter creation per work
		if _, err := repo.LockWork(ctx, chapter.WorkID); err != nil {
			return dberr.Wrap(err, "Work")
		}

		if err := repo.CreateChapter(ctx, chapter); err != nil {
			return chapterWriteError(err)
		}

		pages := newPages(chapter.ID, pageseq.AssignSequential(input.Files), now)
		if err := repo.CreatePages(ctx, pages); err != nil {
			return dberr.Wrap(err, "Page")
		}
		chapter.Pages = pages

		fresh, err := repo.TouchWork(ctx, chapter.WorkID, now)
		if err != nil {
			return dberr.Wrap(err, "Work")
		}
		freshAt = fresh

		return nil
	})
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(ctx, "chapter_created",
		slog.String("actor_id", ctxutil.ActorID(ctx)),
		slog.String("chapter_id", chapter.ID),
		slog.String("work_id", chapter.WorkID),
		slog.String("chapter_number", chapter.ChapterNumber),
		slog.Int("pages", len(chapter.Pages)),
	)
	service.publish(ctx, Event{Kind: EventChapterCreated, WorkID: chapter.WorkID, ChapterID: chapter.ID, FreshAt: freshAt})

	return chapter, nil
}

/*
AddPages appends uploaded files after the chapter's current last page.

Description: The chapter row lock is taken before the maximum page number is
read, so two concurrent calls on the same chapter number their pages one
after the other instead of colliding.

Returns:
  - *Chapter: The chapter with all its pages
  - error: ValidationError (no files), NotFound (chapter)
*/
func (service *Service) AddPages(ctx context.Context, chapterID string, files []UploadedFile) (*Chapter, error) {
	if len(files) == 0 {
		return nil, validate.Fail(FieldPages, "At least one page image is required")
	}
	if !uuid.Valid(chapterID) {
		return nil, service.reject(ctx, files, apperr.NotFound("Chapter"))
	}

	var chapter *Chapter
	var freshAt time.Time

	err := service.coordinator.Run(ctx, filePaths(files), func(ctx context.Context, unit *txn.Unit) error {
		repo := service.unitRepository(unit.Tx)

		locked, err := repo.LockChapter(ctx, chapterID)
		if err != nil {
			return dberr.Wrap(err, "Chapter")
		}

		if err := service.appendPages(ctx, repo, chapterID, files); err != nil {
			return err
		}

		fresh, err := repo.TouchWork(ctx, locked.WorkID, service.now())
		if err != nil {
			return dberr.Wrap(err, "Work")
		}
		freshAt = fresh

		chapter, err = hydrate(ctx, repo, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(ctx, "chapter_pages_added",
		slog.String("actor_id", ctxutil.ActorID(ctx)),
		slog.String("chapter_id", chapter.ID),
		slog.Int("added", len(files)),
		slog.Int("total", len(chapter.Pages)),
	)
	service.publish(ctx, Event{Kind: EventChapterPagesAdded, WorkID: chapter.WorkID, ChapterID: chapter.ID, FreshAt: freshAt})

	return chapter, nil
}

/*
ReorderAndExtend renumbers existing pages and appends new files in one unit.

Description: The page at position i of orderedPageIDs becomes page i+1.
Pages not named keep their numbers; nothing is deleted. New files are
numbered after the highest number left by the reorder.

Parameters:
  - ctx: context.Context
  - chapterID: string (UUID)
  - orderedPageIDs: []string (Existing page ids in their new order)
  - files: []UploadedFile (New pages, may be empty)

Returns:
  - *Chapter: The chapter with all its pages
  - error: ValidationError (empty or duplicate input), NotFound (chapter or foreign page id)
*/
func (service *Service) ReorderAndExtend(ctx context.Context, chapterID string, orderedPageIDs []string, files []UploadedFile) (*Chapter, error) {
	if len(orderedPageIDs) == 0 && len(files) == 0 {
		return nil, apperr.ValidationError("Validation failed",
			apperr.FieldError{Field: FieldPageOrder, Message: "Provide a page order, new pages, or both"},
		)
	}
	if !uuid.Valid(chapterID) {
		return nil, service.reject(ctx, files, apperr.NotFound("Chapter"))
	}

	canonical := make([]string, len(orderedPageIDs))
	for i, id := range orderedPageIDs {
		normalized, ok := uuid.Canonical(id)
		if !ok {
			return nil, service.reject(ctx, files, apperr.NotFound("Page"))
		}
		canonical[i] = normalized
	}
	orderedPageIDs = canonical

	if err := pageseq.ValidateOrder(orderedPageIDs); err != nil {
		return nil, service.reject(ctx, files, validate.Fail(FieldPageOrder, "Page order must not repeat a page"))
	}

	var chapter *Chapter
	var freshAt time.Time

	err := service.coordinator.Run(ctx, filePaths(files), func(ctx context.Context, unit *txn.Unit) error {
		repo := service.unitRepository(unit.Tx)

		locked, err := repo.LockChapter(ctx, chapterID)
		if err != nil {
			return dberr.Wrap(err, "Chapter")
		}

		if len(orderedPageIDs) > 0 {
			if err := repo.SetPageNumbers(ctx, chapterID, pageseq.ApplyExplicitOrder(orderedPageIDs)); err != nil {
				return dberr.Wrap(err, "Page")
			}
		}

		if len(files) > 0 {
			if err := service.appendPages(ctx, repo, chapterID, files); err != nil {
				return err
			}
		}

		fresh, err := repo.TouchWork(ctx, locked.WorkID, service.now())
		if err != nil {
			return dberr.Wrap(err, "Work")
		}
		freshAt = fresh

		chapter, err = hydrate(ctx, repo, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(ctx, "chapter_reordered",
		slog.String("actor_id", ctxutil.ActorID(ctx)),
		slog.String("chapter_id", chapter.ID),
		slog.Int("reordered", len(orderedPageIDs)),
		slog.Int("added", len(files)),
	)
	service.publish(ctx, Event{Kind: EventChapterReordered, WorkID: chapter.WorkID, ChapterID: chapter.ID, FreshAt: freshAt})

	return chapter, nil
}

/*
DeletePage removes one page. Its file is deleted after the commit.

Remaining pages are not renumbered, so a gap is left behind.
*/
func (service *Service) DeletePage(ctx context.Context, pageID string) error {
	if !uuid.Valid(pageID) {
		return apperr.NotFound("Page")
	}

	var page *Page
	var workID string

	err := service.coordinator.Run(ctx, nil, func(ctx context.Context, unit *txn.Unit) error {
		repo := service.unitRepository(unit.Tx)

		deleted, err := repo.DeletePage(ctx, pageID)
		if err != nil {
			return dberr.Wrap(err, "Page")
		}

		owner, err := repo.FindChapter(ctx, deleted.ChapterID)
		if err != nil {
			return dberr.Wrap(err, "Chapter")
		}

		unit.RemoveAfterCommit(deleted.ImageURL)
		page, workID = deleted, owner.WorkID
		return nil
	})
	if err != nil {
		return err
	}

	service.logger.InfoContext(ctx, "page_deleted",
		slog.String("actor_id", ctxutil.ActorID(ctx)),
		slog.String("page_id", page.ID),
		slog.String("chapter_id", page.ChapterID),
	)
	service.publish(ctx, Event{Kind: EventPageDeleted, WorkID: workID, ChapterID: page.ChapterID, PageID: page.ID})

	return nil
}

/*
DeleteChapter removes a chapter, its pages, and after the commit their files.

Description: The work's freshness is recomputed from the newest remaining
chapter, falling back to the work's own creation time.
*/
func (service *Service) DeleteChapter(ctx context.Context, chapterID string) error {
	if !uuid.Valid(chapterID) {
		return apperr.NotFound("Chapter")
	}

	var chapter *Chapter
	var freshAt time.Time
	var removed int

	err := service.coordinator.Run(ctx, nil, func(ctx context.Context, unit *txn.Unit) error {
		repo := service.unitRepository(unit.Tx)

		locked, err := repo.LockChapter(ctx, chapterID)
		if err != nil {
			return dberr.Wrap(err, "Chapter")
		}

		paths, err := repo.DeletePagesByChapter(ctx, chapterID)
		if err != nil {
			return dberr.Wrap(err, "Page")
		}

		if err := repo.DeleteChapter(ctx, chapterID); err != nil {
			return dberr.Wrap(err, "Chapter")
		}

		fresh, err := repo.RecomputeWorkFreshness(ctx, locked.WorkID)
		if err != nil {
			return dberr.Wrap(err, "Work")
		}

		unit.RemoveAfterCommit(paths...)
		chapter, freshAt, removed = locked, fresh, len(paths)
		return nil
	})
	if err != nil {
		return err
	}

	service.logger.InfoContext(ctx, "chapter_deleted",
		slog.String("actor_id", ctxutil.ActorID(ctx)),
		slog.String("chapter_id", chapter.ID),
		slog.String("work_id", chapter.WorkID),
		slog.Int("pages", removed),
	)
	service.publish(ctx, Event{Kind: EventChapterDeleted, WorkID: chapter.WorkID, ChapterID: chapter.ID, FreshAt: freshAt})

	return nil
}

/*
UpdateChapterInfo changes title, number or sort order. Pages and files are untouched.

Returns:
  - *Chapter: The updated chapter with its pages
  - error: ValidationError (empty patch), NotFound, Conflict
*/
func (service *Service) UpdateChapterInfo(ctx context.Context, chapterID string, patch Patch) (*Chapter, error) {
	if patch.IsEmpty() {
		return nil, apperr.ValidationError("At least one field must be provided")
	}

	validator := &validate.Validator{}
	if patch.ChapterNumber != nil {
		number := strings.TrimSpace(*patch.ChapterNumber)
		patch.ChapterNumber = &number
		validator.Required(FieldChapterNumber, number).Decimal(FieldChapterNumber, number)
	}
	validator.Finite(FieldOrder, patch.SortOrder)
	if patch.Title != nil {
		validator.MaxLen(FieldTitle, *patch.Title, maxTitleLength)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if !uuid.Valid(chapterID) {
		return nil, apperr.NotFound("Chapter")
	}

	var chapter *Chapter
	var freshAt time.Time

	err := service.coordinator.Run(ctx, nil, func(ctx context.Context, unit *txn.Unit) error {
		repo := service.unitRepository(unit.Tx)

		locked, err := repo.LockChapter(ctx, chapterID)
		if err != nil {
			return dberr.Wrap(err, "Chapter")
		}

		locked.ChapterNumber = pointer.Fallback(patch.ChapterNumber, locked.ChapterNumber)
		locked.SortOrder = pointer.Fallback(patch.SortOrder, locked.SortOrder)
		if patch.Title != nil {
			locked.Title = titleOrDefault(*patch.Title, locked.ChapterNumber)
		}

		now := service.now()
		locked.UpdatedAt = now

		if err := repo.UpdateChapter(ctx, locked); err != nil {
			return chapterWriteError(err)
		}

		fresh, err := repo.TouchWork(ctx, locked.WorkID, now)
		if err != nil {
			return dberr.Wrap(err, "Work")
		}
		freshAt = fresh

		chapter, err = hydrate(ctx, repo, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(ctx, "chapter_updated",
		slog.String("actor_id", ctxutil.ActorID(ctx)),
		slog.String("chapter_id", chapter.ID),
	)
	service.publish(ctx, Event{Kind: EventChapterUpdated, WorkID: chapter.WorkID, ChapterID: chapter.ID, FreshAt: freshAt})

	return chapter, nil
}

// # Read Operations

// GetChapter returns a chapter with its pages sorted by page number.
func (service *Service) GetChapter(ctx context.Context, chapterID string) (*Chapter, error) {
	if !uuid.Valid(chapterID) {
		return nil, apperr.NotFound("Chapter")
	}

	chapter, err := service.repository.FindChapter(ctx, chapterID)
	if err != nil {
		return nil, dberr.Wrap(err, "Chapter")
	}

	return hydrate(ctx, service.repository, chapter)
}

/*
ListChapters returns one page of a work's chapters ordered by sort order.

Returns:
  - []*Chapter: Chapters without pages
  - int: Total chapters of the work
  - error: NotFound if the work does not exist
*/
func (service *Service) ListChapters(ctx context.Context, workID string, limit, offset int) ([]*Chapter, int, error) {
	if !uuid.Valid(workID) {
		return nil, 0, apperr.NotFound("Work")
	}

	exists, err := service.repository.WorkExists(ctx, workID)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "Work")
	}
	if !exists {
		return nil, 0, apperr.NotFound("Work")
	}

	chapters, total, err := service.repository.ListByWork(ctx, workID, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "Chapter")
	}

	return chapters, total, nil
}

// WorkIDOf returns the work owning a chapter. Uploads use it to place files.
func (service *Service) WorkIDOf(ctx context.Context, chapterID string) (string, error) {
	if !uuid.Valid(chapterID) {
		return "", apperr.NotFound("Chapter")
	}

	chapter, err := service.repository.FindChapter(ctx, chapterID)
	if err != nil {
		return "", dberr.Wrap(err, "Chapter")
	}

	return chapter.WorkID, nil
}

// RecordView increments the chapter's view counter. Freshness is not touched.
func (service *Service) RecordView(ctx context.Context, chapterID string) error {
	if !uuid.Valid(chapterID) {
		return apperr.NotFound("Chapter")
	}

	return dberr.Wrap(service.repository.IncrementViewCount(ctx, chapterID, 1), "Chapter")
}

// # Helpers

// appendPages numbers files after the current maximum and inserts them.
// The caller must hold the chapter lock.
func (service *Service) appendPages(ctx context.Context, repo Repository, chapterID string, files []UploadedFile) error {
	highest, err := repo.MaxPageNumber(ctx, chapterID)
	if err != nil {
		return dberr.Wrap(err, "Page")
	}

	pages := newPages(chapterID, pageseq.AppendAfterMax(highest, files), service.now())
	if err := repo.CreatePages(ctx, pages); err != nil {
		return dberr.Wrap(err, "Page")
	}

	return nil
}

// reject discards already stored files of a request that fails validation.
func (service *Service) reject(ctx context.Context, files []UploadedFile, err error) error {
	service.coordinator.Discard(ctx, filePaths(files))
	return err
}

func (service *Service) publish(ctx context.Context, event Event) {
	event.OccurredAt = service.now()

	if err := service.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		service.logger.WarnContext(ctx, "chapter_event_publish_failed",
			slog.String("kind", string(event.Kind)),
			slog.String("chapter_id", event.ChapterID),
			slog.Any("error", err),
		)
	}
}

func hydrate(ctx context.Context, repo Repository, chapter *Chapter) (*Chapter, error) {
	pages, err := repo.ListPages(ctx, chapter.ID)
	if err != nil {
		return nil, dberr.Wrap(err, "Page")
	}

	chapter.Pages = pages
	return chapter, nil
}

func newPages(chapterID string, numbered []pageseq.Numbered[UploadedFile], at time.Time) []*Page {
	return slice.Map(numbered, func(n pageseq.Numbered[UploadedFile]) *Page {
		return &Page{
			ID:               uuid.New(),
			ChapterID:        chapterID,
			PageNumber:       n.Number,
			ImageURL:         n.Item.RelativePath,
			OriginalFilename: n.Item.OriginalFilename,
			CreatedAt:        at,
		}
	})
}

func filePaths(files []UploadedFile) []string {
	return slice.Map(files, func(file UploadedFile) string { return file.RelativePath })
}

// chapterWriteError names the colliding unique key instead of a generic conflict.
func chapterWriteError(err error) error {
	switch {
	case dberr.IsUniqueViolation(err, schema.CoreChapter.UniqueNumber):
		conflict := apperr.Conflict("A chapter with this number already exists for the work")
		conflict.Cause = err
		return conflict
	case dberr.IsUniqueViolation(err, schema.CoreChapter.UniqueOrder):
		conflict := apperr.Conflict("A chapter with this order already exists for the work")
		conflict.Cause = err
		return conflict
	}
	return dberr.Wrap(err, "Chapter")
}
