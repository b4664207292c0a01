package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
)

// StartMaintenance runs optimize and purges screens untouched for longer than screenTTL once per hour until ctx is
// cancelled. A zero screenTTL keeps screens forever. See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) StartMaintenance(ctx context.Context, screenTTL time.Duration) {
	for {
		db.maintain(ctx, screenTTL)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Hour):
			continue
		}
	}
}

func (db *Database) maintain(ctx context.Context, screenTTL time.Duration) {
	start := time.Now()
	if screenTTL > 0 {
		purged, err := db.PurgeScreens(ctx, start.Add(-screenTTL))
		if err != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to purge screens", errors.SlogError(err))
		} else if purged > 0 {
			db.logger.LogAttrs(ctx, slog.LevelInfo, "purged stale screens", slog.Int64("count", purged))
		}
	}
	if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		err = errors.Wrap(err, "optimize database")
		db.logger.LogAttrs(ctx, slog.LevelError, "failed to optimize database", errors.SlogError(err))
		return
	}
	db.logger.LogAttrs(ctx, slog.LevelInfo, "optimized database", slog.Duration("duration", time.Since(start)))
}

// PurgeScreens deletes the screens and their images last updated before cutoff.
func (db *Database) PurgeScreens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ReadWrite.ExecContext(ctx, "DELETE FROM screens WHERE updated_at < ?", cutoff.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "delete screens")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}
