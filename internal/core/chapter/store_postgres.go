// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
PostgreSQL implementation of the chapter aggregate store.

The same repository type runs on the pool for reads and on a pgx.Tx inside a
unit of work for writes; it only ever sees the [postgres.DBTX] surface.
Row locks (SELECT ... FOR UPDATE) on the work and chapter rows are what
serialise concurrent page numbering, so the locking reads must run inside a
transaction to mean anything.
*/
package chapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/inkshelf/internal/platform/database/schema"
	"github.com/taibuivan/inkshelf/internal/platform/postgres"
	"github.com/taibuivan/inkshelf/pkg/slice"
)

// # PostgreSQL Repository

// repository implements [Repository] using pgx.
type repository struct {
	db postgres.DBTX
}

// NewRepository binds a repository to a pool or a transaction.
func NewRepository(db postgres.DBTX) Repository {
	return &repository{db: db}
}

// ForTx adapts [NewRepository] to the unit-of-work factory signature.
func ForTx(tx pgx.Tx) Repository {
	return NewRepository(tx)
}

// # Work

func (repository *repository) LockWork(context context.Context, workID string) (*Work, error) {
	query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s WHERE %s = $1 FOR UPDATE`,
		schema.CoreWork.ID, schema.CoreWork.LastContentUpdatedAt, schema.CoreWork.CreatedAt,
		schema.CoreWork.Table,
		schema.CoreWork.ID,
	)

	var work Work
	err := repository.db.QueryRow(context, query, workID).Scan(&work.ID, &work.LastContentUpdatedAt, &work.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to lock work: %w", err)
	}

	return &work, nil
}

func (repository *repository) WorkExists(context context.Context, workID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, schema.CoreWork.Table, schema.CoreWork.ID)

	var exists bool
	if err := repository.db.QueryRow(context, query, workID).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: failed to check work: %w", err)
	}

	return exists, nil
}

/*
TouchWork advances the freshness timestamp.

Description: GREATEST keeps the column monotonic when two units commit out of
clock order.
*/
func (repository *repository) TouchWork(context context.Context, workID string, at time.Time) (time.Time, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = GREATEST(%s, $2), %s = NOW()
		WHERE %s = $1
		RETURNING %s
	`,
		schema.CoreWork.Table,
		schema.CoreWork.LastContentUpdatedAt, schema.CoreWork.LastContentUpdatedAt, schema.CoreWork.UpdatedAt,
		schema.CoreWork.ID,
		schema.CoreWork.LastContentUpdatedAt,
	)

	var freshAt time.Time
	if err := repository.db.QueryRow(context, query, workID, at).Scan(&freshAt); err != nil {
		return time.Time{}, fmt.Errorf("postgres: failed to touch work: %w", err)
	}

	return freshAt, nil
}

func (repository *repository) RecomputeWorkFreshness(context context.Context, workID string) (time.Time, error) {
	query := fmt.Sprintf(`
		UPDATE %s w
		SET %s = COALESCE((SELECT MAX(c.%s) FROM %s c WHERE c.%s = w.%s), w.%s),
		    %s = NOW()
		WHERE w.%s = $1
		RETURNING w.%s
	`,
		schema.CoreWork.Table,
		schema.CoreWork.LastContentUpdatedAt,
		schema.CoreChapter.CreatedAt, schema.CoreChapter.Table, schema.CoreChapter.WorkID, schema.CoreWork.ID, schema.CoreWork.CreatedAt,
		schema.CoreWork.UpdatedAt,
		schema.CoreWork.ID,
		schema.CoreWork.LastContentUpdatedAt,
	)

	var freshAt time.Time
	if err := repository.db.QueryRow(context, query, workID).Scan(&freshAt); err != nil {
		return time.Time{}, fmt.Errorf("postgres: failed to recompute work freshness: %w", err)
	}

	return freshAt, nil
}

// # Chapter

func chapterColumns(alias string) string {
	columns := schema.CoreChapter.Columns()
	if alias == "" {
		return strings.Join(columns, ", ")
	}

	qualified := make([]string, len(columns))
	for i, column := range columns {
		qualified[i] = alias + "." + column
	}
	return strings.Join(qualified, ", ")
}

// scanChapter reads columns in [schema.CoreChapterTable.Columns] order.
func scanChapter(row pgx.Row, extra ...any) (*Chapter, error) {
	var chapter Chapter
	targets := append([]any{
		&chapter.ID,
		&chapter.WorkID,
		&chapter.Title,
		&chapter.ChapterNumber,
		&chapter.SortOrder,
		&chapter.ViewCount,
		&chapter.CreatedAt,
		&chapter.UpdatedAt,
	}, extra...)

	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (repository *repository) findChapter(context context.Context, id string, lock bool) (*Chapter, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		chapterColumns(""), schema.CoreChapter.Table, schema.CoreChapter.ID)
	if lock {
		query += " FOR UPDATE"
	}

	chapter, err := scanChapter(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to find chapter by id: %w", err)
	}

	return chapter, nil
}

func (repository *repository) FindChapter(context context.Context, id string) (*Chapter, error) {
	return repository.findChapter(context, id, false)
}

func (repository *repository) LockChapter(context context.Context, id string) (*Chapter, error) {
	return repository.findChapter(context, id, true)
}

/*
ListByWork retrieves one page of a work's chapters.

Description: The window count delivers the total alongside the rows, so
pagination needs a single round-trip.
*/
func (repository *repository) ListByWork(context context.Context, workID string, limit, offset int) ([]*Chapter, int, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM %s c
		WHERE c.%s = $1
		ORDER BY c.%s ASC
		LIMIT $2 OFFSET $3
	`,
		chapterColumns("c"),
		schema.CoreChapter.Table,
		schema.CoreChapter.WorkID,
		schema.CoreChapter.SortOrder,
	)

	rows, err := repository.db.Query(context, query, workID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to list chapters: %w", err)
	}
	defer rows.Close()

	chapters := []*Chapter{}
	var totalCount int

	for rows.Next() {
		chapter, err := scanChapter(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: failed to scan chapter: %w", err)
		}
		chapters = append(chapters, chapter)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to iterate chapters: %w", err)
	}

	return chapters, totalCount, nil
}

func (repository *repository) CreateChapter(context context.Context, chapter *Chapter) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`,
		schema.CoreChapter.Table,
		schema.CoreChapter.ID,
		schema.CoreChapter.WorkID,
		schema.CoreChapter.Title,
		schema.CoreChapter.ChapterNumber,
		schema.CoreChapter.SortOrder,
		schema.CoreChapter.ViewCount,
		schema.CoreChapter.CreatedAt,
		schema.CoreChapter.UpdatedAt,
	)

	_, err := repository.db.Exec(context, query,
		chapter.ID,
		chapter.WorkID,
		chapter.Title,
		chapter.ChapterNumber,
		chapter.SortOrder,
		chapter.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create chapter: %w", err)
	}

	return nil
}

func (repository *repository) UpdateChapter(context context.Context, chapter *Chapter) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $1, %s = $2, %s = $3, %s = $4
		WHERE %s = $5
	`,
		schema.CoreChapter.Table,
		schema.CoreChapter.Title, schema.CoreChapter.ChapterNumber, schema.CoreChapter.SortOrder, schema.CoreChapter.UpdatedAt,
		schema.CoreChapter.ID,
	)

	result, err := repository.db.Exec(context, query,
		chapter.Title,
		chapter.ChapterNumber,
		chapter.SortOrder,
		chapter.UpdatedAt,
		chapter.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update chapter: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("postgres: failed to update chapter: %w", pgx.ErrNoRows)
	}

	return nil
}

func (repository *repository) DeleteChapter(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.CoreChapter.Table, schema.CoreChapter.ID)

	result, err := repository.db.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete chapter: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("postgres: failed to delete chapter: %w", pgx.ErrNoRows)
	}

	return nil
}

func (repository *repository) IncrementViewCount(context context.Context, id string, delta int64) error {

	// Atomic in-place increment; no read-modify-write race under heavy traffic
	query := fmt.Sprintf(`UPDATE %s SET %s = %s + $1 WHERE %s = $2`,
		schema.CoreChapter.Table, schema.CoreChapter.ViewCount, schema.CoreChapter.ViewCount, schema.CoreChapter.ID)

	result, err := repository.db.Exec(context, query, delta, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to increment chapter view count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("postgres: failed to increment chapter view count: %w", pgx.ErrNoRows)
	}

	return nil
}

// # Page

func (repository *repository) ListPages(context context.Context, chapterID string) ([]*Page, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s ASC, %s ASC
	`,
		strings.Join(schema.CorePage.Columns(), ", "),
		schema.CorePage.Table,
		schema.CorePage.ChapterID,
		schema.CorePage.PageNumber, schema.CorePage.CreatedAt,
	)

	rows, err := repository.db.Query(context, query, chapterID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := []*Page{}
	for rows.Next() {
		var page Page
		err := rows.Scan(&page.ID, &page.ChapterID, &page.PageNumber, &page.ImageURL, &page.OriginalFilename, &page.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan page: %w", err)
		}
		pages = append(pages, &page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to iterate pages: %w", err)
	}

	return pages, nil
}

func (repository *repository) MaxPageNumber(context context.Context, chapterID string) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(%s), 0) FROM %s WHERE %s = $1`,
		schema.CorePage.PageNumber, schema.CorePage.Table, schema.CorePage.ChapterID)

	var highest int
	if err := repository.db.QueryRow(context, query, chapterID).Scan(&highest); err != nil {
		return 0, fmt.Errorf("postgres: failed to read max page number: %w", err)
	}

	return highest, nil
}

/*
CreatePages persists chapter images in a single batch.

Description: Uses Postgres batching (pipelining) to avoid one round-trip per
page on chapters with hundreds of images.
*/
func (repository *repository) CreatePages(context context.Context, pages []*Page) error {
	if len(pages) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		schema.CorePage.Table,
		schema.CorePage.ID, schema.CorePage.ChapterID, schema.CorePage.PageNumber,
		schema.CorePage.ImageURL, schema.CorePage.OriginalFilename, schema.CorePage.CreatedAt,
	)

	batch := &pgx.Batch{}
	for _, page := range pages {
		batch.Queue(query, page.ID, page.ChapterID, page.PageNumber, page.ImageURL, page.OriginalFilename, page.CreatedAt)
	}

	results := repository.db.SendBatch(context, batch)
	defer results.Close()

	for i := range pages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: failed to batch insert page %d: %w", i, err)
		}
	}

	return nil
}

/*
SetPageNumbers renumbers named pages in one statement.

Description: The chapter filter doubles as the ownership check. Fewer
affected rows than ids means at least one id is foreign or missing.
*/
func (repository *repository) SetPageNumbers(context context.Context, chapterID string, numbers map[string]int) error {
	if len(numbers) == 0 {
		return nil
	}

	ids := make([]string, 0, len(numbers))
	values := make([]int32, 0, len(numbers))
	for id, number := range numbers {
		ids = append(ids, id)
		values = append(values, int32(number))
	}

	query := fmt.Sprintf(`
		UPDATE %s p
		SET %s = v.number
		FROM unnest($1::uuid[], $2::int[]) AS v(id, number)
		WHERE p.%s = v.id AND p.%s = $3
	`,
		schema.CorePage.Table,
		schema.CorePage.PageNumber,
		schema.CorePage.ID, schema.CorePage.ChapterID,
	)

	result, err := repository.db.Exec(context, query, ids, values, chapterID)
	if err != nil {
		return fmt.Errorf("postgres: failed to renumber pages: %w", err)
	}

	if result.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("postgres: page not in chapter: %w", pgx.ErrNoRows)
	}

	return nil
}

func (repository *repository) DeletePage(context context.Context, id string) (*Page, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 RETURNING %s`,
		schema.CorePage.Table, schema.CorePage.ID, strings.Join(schema.CorePage.Columns(), ", "))

	var page Page
	err := repository.db.QueryRow(context, query, id).Scan(
		&page.ID, &page.ChapterID, &page.PageNumber, &page.ImageURL, &page.OriginalFilename, &page.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to delete page: %w", err)
	}

	return &page, nil
}

func (repository *repository) DeletePagesByChapter(context context.Context, chapterID string) ([]string, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 RETURNING %s`,
		schema.CorePage.Table, schema.CorePage.ChapterID, schema.CorePage.ImageURL)

	rows, err := repository.db.Query(context, query, chapterID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to delete chapter pages: %w", err)
	}

	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect deleted page paths: %w", err)
	}

	return paths, nil
}

func (repository *repository) OwnedImagePaths(context context.Context, paths []string) (map[string]struct{}, error) {
	if len(paths) == 0 {
		return map[string]struct{}{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ANY($1)`,
		schema.CorePage.ImageURL, schema.CorePage.Table, schema.CorePage.ImageURL)

	rows, err := repository.db.Query(context, query, paths)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to look up image paths: %w", err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to collect image paths: %w", err)
	}

	return slice.Set(found), nil
}
