package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/sqlite"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/testhelpers"
)

// main applies the schema to a copy of a production database and checks that the stored screens can still be read.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("ORALSCAN_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "ORALSCAN_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	var screens, images int
	row := db.ReadOnly.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM screens), (SELECT COUNT(*) FROM screen_images)`)
	if err = row.Scan(&screens, &images); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting screens", errors.SlogError(err))
		os.Exit(1) //nolint:gocritic // the database is closed on exit anyway.
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "screen count", slog.Int("screens", screens), slog.Int("images", images))

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
}
