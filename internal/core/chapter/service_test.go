// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chapter_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/inkshelf/internal/blob"
	"github.com/taibuivan/inkshelf/internal/core/chapter"
	"github.com/taibuivan/inkshelf/internal/platform/apperr"
	"github.com/taibuivan/inkshelf/internal/platform/txn"
	"github.com/taibuivan/inkshelf/pkg/pointer"
	"github.com/taibuivan/inkshelf/pkg/uuid"
)

// # Harness

// stepClock advances one second per reading so every timestamp is distinct.
type stepClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []chapter.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event chapter.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) kinds() []chapter.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]chapter.EventKind, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.Kind
	}
	return kinds
}

type harness struct {
	store     *memoryStore
	blobs     *blob.FileStore
	service   *chapter.Service
	publisher *recordingPublisher
	workID    string
	workBorn  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := blob.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)

	store := newMemoryStore()
	repo := memoryRepository{store: store}
	publisher := &recordingPublisher{}
	clock := &stepClock{current: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	workID := uuid.New()
	workBorn := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.addWork(workID, workBorn)

	service := chapter.NewService(
		repo,
		store.forTx,
		txn.NewCoordinator(store, blobs),
		publisher,
		logger,
	).WithClock(clock.now)

	return &harness{store: store, blobs: blobs, service: service, publisher: publisher, workID: workID, workBorn: workBorn}
}

// upload stores files the way the upload step would and returns them in order.
func (h *harness) upload(t *testing.T, names ...string) []chapter.UploadedFile {
	t.Helper()

	files := make([]chapter.UploadedFile, 0, len(names))
	for _, name := range names {
		rel, err := h.blobs.Put(context.Background(), fmt.Sprintf("works/%s/%s-%s", h.workID, uuid.New(), name), strings.NewReader(name))
		require.NoError(t, err)
		files = append(files, chapter.UploadedFile{RelativePath: rel, OriginalFilename: name})
	}
	return files
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := h.blobs.Exists(context.Background(), path)
	require.NoError(t, err)
	return ok
}

func (h *harness) blobCount(t *testing.T) int {
	t.Helper()
	count := 0
	require.NoError(t, h.blobs.Walk(context.Background(), func(blob.Object) error {
		count++
		return nil
	}))
	return count
}

func (h *harness) create(t *testing.T, number string, order float64, names ...string) *chapter.Chapter {
	t.Helper()
	created, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID:        h.workID,
		ChapterNumber: number,
		SortOrder:     pointer.To(order),
		Files:         h.upload(t, names...),
	})
	require.NoError(t, err)
	return created
}

func pageNumbers(pages []*chapter.Page) map[string]int {
	numbers := make(map[string]int, len(pages))
	for _, p := range pages {
		numbers[p.OriginalFilename] = p.PageNumber
	}
	return numbers
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	ae := apperr.As(err)
	require.NotNil(t, ae, "expected an AppError, got %v", err)
	assert.Equal(t, code, ae.Code)
}

// # Create

func TestCreateChapter_NumbersPagesInSubmissionOrder(t *testing.T) {
	h := newHarness(t)

	created := h.create(t, "1", 1, "a.png", "b.png", "c.png")

	require.Len(t, created.Pages, 3)
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		assert.Equal(t, i+1, created.Pages[i].PageNumber)
		assert.Equal(t, name, created.Pages[i].OriginalFilename)
		assert.True(t, h.exists(t, created.Pages[i].ImageURL))
	}

	assert.Equal(t, "Chapter 1", created.Title)
	assert.Equal(t, created.CreatedAt, h.store.work(h.workID).LastContentUpdatedAt)
	assert.Equal(t, []chapter.EventKind{chapter.EventChapterCreated}, h.publisher.kinds())

	fetched, err := h.service.GetChapter(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a.png": 1, "b.png": 2, "c.png": 3}, pageNumbers(fetched.Pages))
}

func TestCreateChapter_KeepsExplicitTitle(t *testing.T) {
	h := newHarness(t)

	created, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID:        h.workID,
		ChapterNumber: " 10.5 ",
		SortOrder:     pointer.To(10.5),
		Title:         "  The Return  ",
		Files:         h.upload(t, "a.png"),
	})
	require.NoError(t, err)

	assert.Equal(t, "The Return", created.Title)
	assert.Equal(t, "10.5", created.ChapterNumber)
}

func TestCreateChapter_DuplicateNumberDiscardsFiles(t *testing.T) {
	h := newHarness(t)
	first := h.create(t, "1", 1, "a.png", "b.png")

	files := h.upload(t, "x.png", "y.png")
	_, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID:        h.workID,
		ChapterNumber: "1",
		SortOrder:     pointer.To(2.0),
		Files:         files,
	})

	assertCode(t, err, "CONFLICT")
	assert.Contains(t, err.Error(), "number")
	for _, f := range files {
		assert.False(t, h.exists(t, f.RelativePath), "uploaded file must be removed on conflict")
	}
	for _, p := range first.Pages {
		assert.True(t, h.exists(t, p.ImageURL), "existing chapter files must survive")
	}
	assert.Equal(t, 1, h.store.chapterCount())
	assert.Equal(t, 2, h.store.pageCount())
	assert.Equal(t, 2, h.blobCount(t))
}

func TestCreateChapter_DuplicateOrderConflicts(t *testing.T) {
	h := newHarness(t)
	h.create(t, "1", 1, "a.png")

	_, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID:        h.workID,
		ChapterNumber: "2",
		SortOrder:     pointer.To(1.0),
		Files:         h.upload(t, "b.png"),
	})

	assertCode(t, err, "CONFLICT")
	assert.Contains(t, err.Error(), "order")
	assert.Equal(t, 1, h.blobCount(t))
}

func TestCreateChapter_ValidationDiscardsFiles(t *testing.T) {
	tests := []struct {
		name  string
		input func(h *harness, files []chapter.UploadedFile) chapter.CreateInput
		field string
	}{
		{
			name: "missing_order",
			input: func(h *harness, files []chapter.UploadedFile) chapter.CreateInput {
				return chapter.CreateInput{WorkID: h.workID, ChapterNumber: "1", Files: files}
			},
			field: chapter.FieldOrder,
		},
		{
			name: "negative_number",
			input: func(h *harness, files []chapter.UploadedFile) chapter.CreateInput {
				return chapter.CreateInput{WorkID: h.workID, ChapterNumber: "-1", SortOrder: pointer.To(1.0), Files: files}
			},
			field: chapter.FieldChapterNumber,
		},
		{
			name: "missing_number",
			input: func(h *harness, files []chapter.UploadedFile) chapter.CreateInput {
				return chapter.CreateInput{WorkID: h.workID, SortOrder: pointer.To(1.0), Files: files}
			},
			field: chapter.FieldChapterNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			files := h.upload(t, "a.png", "b.png")

			_, err := h.service.CreateChapter(context.Background(), tt.input(h, files))

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
			require.NotEmpty(t, ae.Details)
			assert.Equal(t, tt.field, ae.Details[0].Field)
			assert.Zero(t, h.blobCount(t))
			assert.Zero(t, h.store.chapterCount())
		})
	}
}

func TestCreateChapter_RequiresPages(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID: h.workID, ChapterNumber: "1", SortOrder: pointer.To(1.0),
	})

	assertCode(t, err, "VALIDATION_ERROR")
}

func TestCreateChapter_UnknownWork(t *testing.T) {
	h := newHarness(t)
	files := h.upload(t, "a.png")

	_, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID: uuid.New(), ChapterNumber: "1", SortOrder: pointer.To(1.0), Files: files,
	})

	assertCode(t, err, "NOT_FOUND")
	assert.False(t, h.exists(t, files[0].RelativePath))
}

func TestCreateChapter_StorageFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.store.failCreatePages = errors.New("connection reset")
	files := h.upload(t, "a.png", "b.png")

	_, err := h.service.CreateChapter(context.Background(), chapter.CreateInput{
		WorkID: h.workID, ChapterNumber: "1", SortOrder: pointer.To(1.0), Files: files,
	})

	assertCode(t, err, "INTERNAL_ERROR")
	assert.Zero(t, h.store.chapterCount(), "chapter row must roll back with its pages")
	assert.Zero(t, h.blobCount(t))
	assert.Equal(t, h.workBorn, h.store.work(h.workID).LastContentUpdatedAt)
	assert.Empty(t, h.publisher.kinds())
}

// # Add & Reorder

func TestAddPages_AppendsAfterCurrentMax(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "a.png", "b.png", "c.png")
	before := h.store.work(h.workID).LastContentUpdatedAt

	updated, err := h.service.AddPages(context.Background(), created.ID, h.upload(t, "d.png", "e.png"))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"a.png": 1, "b.png": 2, "c.png": 3, "d.png": 4, "e.png": 5}, pageNumbers(updated.Pages))
	assert.True(t, h.store.work(h.workID).LastContentUpdatedAt.After(before))
	assert.Equal(t, chapter.EventChapterPagesAdded, h.publisher.kinds()[1])
}

func TestAddPages_UnknownChapterDiscardsFiles(t *testing.T) {
	h := newHarness(t)
	files := h.upload(t, "a.png")

	_, err := h.service.AddPages(context.Background(), uuid.New(), files)

	assertCode(t, err, "NOT_FOUND")
	assert.Zero(t, h.blobCount(t))
}

func TestAddPages_RequiresFiles(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "a.png")

	_, err := h.service.AddPages(context.Background(), created.ID, nil)
	assertCode(t, err, "VALIDATION_ERROR")
}

func TestAddPages_ConcurrentCallsNeverShareNumbers(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "a.png", "b.png", "c.png")

	// Every unit reads the current max and then sleeps, so without the
	// chapter row lock they would all number their pages from 4.
	h.store.maxPageDelay = 5 * time.Millisecond

	const workers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		files := h.upload(t, fmt.Sprintf("w%d-1.png", w), fmt.Sprintf("w%d-2.png", w))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.service.AddPages(context.Background(), created.ID, files)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	final, err := h.service.GetChapter(context.Background(), created.ID)
	require.NoError(t, err)

	numbers := make([]int, 0, len(final.Pages))
	for _, p := range final.Pages {
		numbers = append(numbers, p.PageNumber)
	}
	sort.Ints(numbers)

	require.Len(t, numbers, 3+2*workers)
	for i, n := range numbers {
		assert.Equal(t, i+1, n)
	}
}

func TestReorderAndExtend_PartialOrderThenAppend(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "p1.png", "p2.png", "p3.png")
	p1, p3 := created.Pages[0].ID, created.Pages[2].ID

	updated, err := h.service.ReorderAndExtend(context.Background(), created.ID, []string{p3, p1}, h.upload(t, "new.png"))
	require.NoError(t, err)

	// p2 is not named and keeps its number, leaving a duplicate 2.
	assert.Equal(t, map[string]int{"p3.png": 1, "p1.png": 2, "p2.png": 2, "new.png": 3}, pageNumbers(updated.Pages))
	assert.Len(t, updated.Pages, 4)
	assert.Equal(t, chapter.EventChapterReordered, h.publisher.kinds()[1])
}

func TestReorderAndExtend_FullReorderOnly(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "p1.png", "p2.png")
	before := h.store.work(h.workID).LastContentUpdatedAt

	updated, err := h.service.ReorderAndExtend(context.Background(), created.ID, []string{created.Pages[1].ID, created.Pages[0].ID}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"p2.png": 1, "p1.png": 2}, pageNumbers(updated.Pages))
	assert.True(t, h.store.work(h.workID).LastContentUpdatedAt.After(before))
}

func TestReorderAndExtend_ForeignPageRollsBack(t *testing.T) {
	h := newHarness(t)
	target := h.create(t, "1", 1, "p1.png", "p2.png")
	other := h.create(t, "2", 2, "q1.png")
	files := h.upload(t, "new.png")

	_, err := h.service.ReorderAndExtend(context.Background(), target.ID, []string{target.Pages[1].ID, other.Pages[0].ID}, files)

	assertCode(t, err, "NOT_FOUND")
	assert.False(t, h.exists(t, files[0].RelativePath))

	unchanged, err := h.service.GetChapter(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1.png": 1, "p2.png": 2}, pageNumbers(unchanged.Pages))
}

func TestReorderAndExtend_RejectsBadInput(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "p1.png")

	_, err := h.service.ReorderAndExtend(context.Background(), created.ID, nil, nil)
	assertCode(t, err, "VALIDATION_ERROR")

	files := h.upload(t, "new.png")
	id := created.Pages[0].ID
	_, err = h.service.ReorderAndExtend(context.Background(), created.ID, []string{id, id}, files)
	assertCode(t, err, "VALIDATION_ERROR")
	assert.False(t, h.exists(t, files[0].RelativePath))

	for _, spelling := range []string{strings.ToUpper(id), "{" + id + "}", "urn:uuid:" + id} {
		_, err = h.service.ReorderAndExtend(context.Background(), created.ID, []string{id, spelling}, nil)
		assertCode(t, err, "VALIDATION_ERROR")
	}
}

func TestReorderAndExtend_AcceptsAnyUUIDSpelling(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "p1.png", "p2.png")
	first, second := created.Pages[0].ID, created.Pages[1].ID

	reordered, err := h.service.ReorderAndExtend(context.Background(), created.ID, []string{strings.ToUpper(second), "{" + first + "}"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p2.png": 1, "p1.png": 2}, pageNumbers(reordered.Pages))
}

// # Delete

func TestDeletePage_RemovesRowAndFileWithoutRenumbering(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "a.png", "b.png", "c.png")
	before := h.store.work(h.workID).LastContentUpdatedAt
	victim := created.Pages[1]

	require.NoError(t, h.service.DeletePage(context.Background(), victim.ID))

	assert.False(t, h.exists(t, victim.ImageURL))
	remaining, err := h.service.GetChapter(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a.png": 1, "c.png": 3}, pageNumbers(remaining.Pages))
	assert.Equal(t, before, h.store.work(h.workID).LastContentUpdatedAt)

	assertCode(t, h.service.DeletePage(context.Background(), victim.ID), "NOT_FOUND")
}

func TestDeletePage_MissingFileIsTolerated(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "a.png")
	require.NoError(t, h.blobs.Delete(context.Background(), created.Pages[0].ImageURL))

	assert.NoError(t, h.service.DeletePage(context.Background(), created.Pages[0].ID))
	assert.Zero(t, h.store.pageCount())
}

func TestDeleteChapter_CascadesAndRecomputesFreshness(t *testing.T) {
	h := newHarness(t)
	older := h.create(t, "1", 1, "a.png", "b.png")
	newer := h.create(t, "2", 2, "c.png", "d.png")
	assert.Equal(t, newer.CreatedAt, h.store.work(h.workID).LastContentUpdatedAt)

	require.NoError(t, h.service.DeleteChapter(context.Background(), newer.ID))

	for _, p := range newer.Pages {
		assert.False(t, h.exists(t, p.ImageURL))
	}
	for _, p := range older.Pages {
		assert.True(t, h.exists(t, p.ImageURL))
	}
	assert.Equal(t, 2, h.store.pageCount())
	assert.Equal(t, older.CreatedAt, h.store.work(h.workID).LastContentUpdatedAt)

	_, err := h.service.GetChapter(context.Background(), newer.ID)
	assertCode(t, err, "NOT_FOUND")

	// Last chapter gone: freshness falls back to the work itself.
	require.NoError(t, h.service.DeleteChapter(context.Background(), older.ID))
	assert.Equal(t, h.workBorn, h.store.work(h.workID).LastContentUpdatedAt)
	assert.Zero(t, h.blobCount(t))

	assertCode(t, h.service.DeleteChapter(context.Background(), older.ID), "NOT_FOUND")
}

// # Update & Read

func TestUpdateChapterInfo(t *testing.T) {
	h := newHarness(t)
	first := h.create(t, "1", 1, "a.png")
	h.create(t, "2", 2, "b.png")
	before := h.store.work(h.workID).LastContentUpdatedAt

	updated, err := h.service.UpdateChapterInfo(context.Background(), first.ID, chapter.Patch{
		ChapterNumber: pointer.To("1.5"),
		Title:         pointer.To("   "),
	})
	require.NoError(t, err)
	assert.Equal(t, "1.5", updated.ChapterNumber)
	assert.Equal(t, "Chapter 1.5", updated.Title)
	assert.Len(t, updated.Pages, 1)
	assert.True(t, h.store.work(h.workID).LastContentUpdatedAt.After(before))

	_, err = h.service.UpdateChapterInfo(context.Background(), first.ID, chapter.Patch{ChapterNumber: pointer.To("2")})
	assertCode(t, err, "CONFLICT")

	_, err = h.service.UpdateChapterInfo(context.Background(), first.ID, chapter.Patch{})
	assertCode(t, err, "VALIDATION_ERROR")

	_, err = h.service.UpdateChapterInfo(context.Background(), first.ID, chapter.Patch{ChapterNumber: pointer.To("abc")})
	assertCode(t, err, "VALIDATION_ERROR")

	_, err = h.service.UpdateChapterInfo(context.Background(), uuid.New(), chapter.Patch{SortOrder: pointer.To(9.0)})
	assertCode(t, err, "NOT_FOUND")
}

func TestListChapters_OrderedBySortOrder(t *testing.T) {
	h := newHarness(t)
	h.create(t, "2", 20, "b.png")
	h.create(t, "1", 10, "a.png")
	h.create(t, "1.5", 15, "c.png")

	chapters, total, err := h.service.ListChapters(context.Background(), h.workID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, chapters, 2)
	assert.Equal(t, "1", chapters[0].ChapterNumber)
	assert.Equal(t, "1.5", chapters[1].ChapterNumber)

	_, _, err = h.service.ListChapters(context.Background(), uuid.New(), 10, 0)
	assertCode(t, err, "NOT_FOUND")
}

func TestRecordView_DoesNotTouchFreshness(t *testing.T) {
	h := newHarness(t)
	created := h.create(t, "1", 1, "a.png")
	before := h.store.work(h.workID).LastContentUpdatedAt

	require.NoError(t, h.service.RecordView(context.Background(), created.ID))
	require.NoError(t, h.service.RecordView(context.Background(), created.ID))

	fetched, err := h.service.GetChapter(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetched.ViewCount)
	assert.Equal(t, before, h.store.work(h.workID).LastContentUpdatedAt)

	assertCode(t, h.service.RecordView(context.Background(), uuid.New()), "NOT_FOUND")
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.GetChapter(context.Background(), "not-a-uuid")
	assertCode(t, err, "NOT_FOUND")

	_, err = h.service.WorkIDOf(context.Background(), "../etc")
	assertCode(t, err, "NOT_FOUND")

	assertCode(t, h.service.DeletePage(context.Background(), "42"), "NOT_FOUND")
}

func TestPublishFailureDoesNotFailTheOperation(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("redis down")

	created := h.create(t, "1", 1, "a.png")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, h.store.chapterCount())
}
