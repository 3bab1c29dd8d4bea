// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sweep reclaims page image files that no page row references.

A failed cleanup after a rollback, or a crash between commit and file
deletion, can leave a file in the blob store that nothing points to. The
sweeper walks the store, asks the page index which paths are still owned,
and deletes the rest once they are older than a grace period. The grace
period protects files of uploads that have not committed yet.

Only one sweep runs at a time; a lock file guards it.
*/
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/taibuivan/inkshelf/internal/blob"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/pkg/slice"
)

// Defaults applied when [Options] leaves a field at zero.
const (
	DefaultGrace     = constants.DefaultSweepGrace
	DefaultBatchSize = 500
)

// ErrLocked is returned when another sweep holds the lock file.
var ErrLocked = errors.New("sweep: another sweep is already running")

// ErrGraceTooShort rejects a grace period that could reach uploads whose
// unit of work has not finished yet.
var ErrGraceTooShort = fmt.Errorf("sweep: grace period must be at least %s", constants.MinSweepGrace)

// Index reports which blob paths are referenced by page rows.
type Index interface {
	OwnedImagePaths(ctx context.Context, paths []string) (map[string]struct{}, error)
}

// Options tunes a single run.
type Options struct {
	Grace     time.Duration
	BatchSize int
	DryRun    bool
}

// Report summarises a run.
type Report struct {
	Scanned  int
	Skipped  int // Unowned but younger than the grace period
	Orphaned int
	Deleted  int
	Failed   int
	Orphans  []string
}

// Sweeper deletes unreferenced files from a [blob.Store].
type Sweeper struct {
	store  blob.Store
	index  Index
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a [Sweeper] guarded by the lock file at lockPath.
func New(store blob.Store, index Index, lockPath string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		index:  index,
		lock:   flock.New(lockPath),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source used to apply the grace period.
func (sweeper *Sweeper) WithClock(now func() time.Time) *Sweeper {
	sweeper.now = now
	return sweeper
}

/*
Run performs one sweep.

Description: Files are checked against the index in batches. An unowned file
is deleted only when its modification time is older than the grace period.
With DryRun set, orphans are reported but left in place.

Returns:
  - Report: Counts and the orphaned paths found
  - error: ErrLocked, or a failure to walk the store or query the index
*/
func (sweeper *Sweeper) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Grace < constants.MinSweepGrace {
		return Report{}, fmt.Errorf("%w, got %s", ErrGraceTooShort, opts.Grace)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	locked, err := sweeper.lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("sweep: acquire lock: %w", err)
	}
	if !locked {
		return Report{}, ErrLocked
	}
	defer func() {
		if err := sweeper.lock.Unlock(); err != nil {
			sweeper.logger.Warn("sweep_unlock_failed", slog.Any("error", err))
		}
	}()

	var report Report
	cutoff := sweeper.now().Add(-opts.Grace)
	batch := make([]blob.Object, 0, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := sweeper.resolve(ctx, batch, cutoff, opts.DryRun, &report)
		batch = batch[:0]
		return err
	}

	err = sweeper.store.Walk(ctx, func(object blob.Object) error {
		report.Scanned++
		batch = append(batch, object)
		if len(batch) >= opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return report, err
	}

	sweeper.logger.InfoContext(ctx, "sweep_completed",
		slog.Int("scanned", report.Scanned),
		slog.Int("orphaned", report.Orphaned),
		slog.Int("deleted", report.Deleted),
		slog.Int("skipped", report.Skipped),
		slog.Bool("dry_run", opts.DryRun),
	)

	return report, nil
}

// resolve handles one batch of walked objects.
func (sweeper *Sweeper) resolve(ctx context.Context, batch []blob.Object, cutoff time.Time, dryRun bool, report *Report) error {
	paths := slice.Map(batch, func(object blob.Object) string { return object.Path })

	owned, err := sweeper.index.OwnedImagePaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("sweep: query index: %w", err)
	}

	unowned := slice.Filter(batch, func(object blob.Object) bool {
		_, ok := owned[object.Path]
		return !ok
	})

	for _, object := range unowned {
		if object.ModTime.After(cutoff) {
			report.Skipped++
			continue
		}

		report.Orphaned++
		report.Orphans = append(report.Orphans, object.Path)
		if dryRun {
			continue
		}

		if err := sweeper.store.Delete(ctx, object.Path); err != nil {
			report.Failed++
			sweeper.logger.ErrorContext(ctx, "sweep_delete_failed",
				slog.String("path", object.Path),
				slog.Any("error", err),
			)
			continue
		}
		report.Deleted++
	}

	return nil
}
