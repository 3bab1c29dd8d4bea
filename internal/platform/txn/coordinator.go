// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package txn runs a database transaction together with the blob files that
belong to it.

A request that uploads files writes them to the blob store first, then asks
the [Coordinator] to run the row changes. Either the transaction commits and
the files stay, or it rolls back and every file written for that request is
deleted. Files that a committed change made unreachable (a deleted page, a
deleted chapter) are removed after the commit.

Usage:

	err := coordinator.Run(ctx, writtenPaths, func(ctx context.Context, unit *txn.Unit) error {
	    repo := newRepository(unit.Tx)
	    ...
	    unit.RemoveAfterCommit(oldPath)
	    return nil
	})

File deletions are best effort. A failed delete is logged and never replaces
the error that caused the rollback.
*/
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/inkshelf/internal/blob"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/ctxutil"
	"github.com/taibuivan/inkshelf/internal/platform/dberr"
)

// Beginner starts transactions. [*pgxpool.Pool] satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, options pgx.TxOptions) (pgx.Tx, error)
}

// Unit is the handle passed to a unit of work.
type Unit struct {
	// Tx carries every row change of the unit.
	Tx pgx.Tx

	removals []string
}

// RemoveAfterCommit schedules blob paths for deletion once the transaction commits.
// Nothing is deleted if the unit rolls back.
func (unit *Unit) RemoveAfterCommit(paths ...string) {
	unit.removals = append(unit.removals, paths...)
}

// Coordinator couples pgx transactions with blob cleanup.
type Coordinator struct {
	db      Beginner
	blobs   blob.Store
	timeout time.Duration
}

// NewCoordinator returns a coordinator bounded by [constants.UnitOfWorkTimeout].
func NewCoordinator(db Beginner, blobs blob.Store) *Coordinator {
	return &Coordinator{db: db, blobs: blobs, timeout: constants.UnitOfWorkTimeout}
}

// WithTimeout returns a copy of the coordinator using a different unit deadline.
func (coordinator *Coordinator) WithTimeout(timeout time.Duration) *Coordinator {
	clone := *coordinator
	clone.timeout = timeout
	return &clone
}

/*
Run executes fn inside one transaction.

The unit is detached from the caller's cancellation so that a client hanging
up mid-request cannot leave rows written without their files, or files
without their rows. It is still bounded by the coordinator timeout.

Parameters:
  - ctx: Request context. Values (logger, request id) are kept, cancellation is not.
  - writtenPaths: Blob paths already stored for this request. Deleted on failure.
  - fn: The row changes. Must use unit.Tx for every statement.

Returns:
  - error: nil on commit, otherwise the fn error classified through [dberr.Wrap].
*/
func (coordinator *Coordinator) Run(ctx context.Context, writtenPaths []string, fn func(context.Context, *Unit) error) error {
	logger := ctxutil.GetLogger(ctx)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), coordinator.timeout)
	defer cancel()

	tx, err := coordinator.db.BeginTx(runCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		coordinator.Discard(runCtx, writtenPaths)
		return dberr.Wrap(fmt.Errorf("txn: failed to begin: %w", err), "Record")
	}

	unit := &Unit{Tx: tx}
	committed := false
	keepFiles := false

	defer func() {
		if committed {
			return
		}

		recovered := recover()

		if rollbackErr := tx.Rollback(runCtx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			logger.Error("unit_of_work_rollback_failed", slog.Any("error", rollbackErr))
		}

		if keepFiles {
			logger.Error("unit_of_work_commit_ambiguous", slog.Int("kept_files", len(writtenPaths)))
			return
		}

		coordinator.Discard(runCtx, writtenPaths)
		logger.Warn("unit_of_work_rolled_back",
			slog.Int("discarded_files", len(writtenPaths)),
			slog.Bool("panic", recovered != nil),
		)

		if recovered != nil {
			panic(recovered)
		}
	}()

	if err := fn(runCtx, unit); err != nil {
		return dberr.Wrap(err, "Record")
	}

	if err := tx.Commit(runCtx); err != nil {
		// Only a server-side rejection proves nothing was committed. After a
		// transport failure the rows may exist, so the files stay for the sweeper.
		var pgErr *pgconn.PgError
		keepFiles = !errors.As(err, &pgErr)
		return dberr.Wrap(fmt.Errorf("txn: failed to commit: %w", err), "Record")
	}
	committed = true

	coordinator.remove(runCtx, unit.removals)
	return nil
}

// Discard deletes blobs written for a request that will not be committed.
func (coordinator *Coordinator) Discard(ctx context.Context, paths []string) {
	coordinator.remove(context.WithoutCancel(ctx), paths)
}

func (coordinator *Coordinator) remove(ctx context.Context, paths []string) {
	logger := ctxutil.GetLogger(ctx)

	for _, path := range paths {
		if err := coordinator.blobs.Delete(ctx, path); err != nil {
			logger.Error("blob_cleanup_failed",
				slog.String("path", path),
				slog.Any("error", err),
			)
		}
	}
}
