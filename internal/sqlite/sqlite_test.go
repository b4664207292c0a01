package sqlite_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/sqlite"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		url  func(t *testing.T) string
	}{
		{name: "in memory", url: func(_ *testing.T) string { return ":memory:" }},
		{name: "file", url: func(t *testing.T) string { return filepath.Join(t.TempDir(), "oralscan.sqlite3") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			db, err := sqlite.NewDatabase(ctx, tt.url(t), testhelpers.NewLogger(io.Discard))
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, db.Close()) })

			_, err = db.ReadWrite.ExecContext(ctx,
				"INSERT INTO screens (id, state, updated_at) VALUES ('a', '{}', ?)", time.Now().Unix())
			require.NoError(t, err)

			var count int
			require.NoError(t, db.ReadOnly.QueryRowContext(ctx, "SELECT count(*) FROM screens").Scan(&count))
			require.Equal(t, 1, count)

			_, err = db.ReadOnly.ExecContext(ctx, "DELETE FROM screens")
			require.Error(t, err, "read-only pool must reject writes")
		})
	}
}

func TestInMemoryDatabasesAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	first, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	second, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)

	_, err = first.ReadWrite.ExecContext(ctx, "INSERT INTO screens (id, state, updated_at) VALUES ('a', '{}', 0)")
	require.NoError(t, err)

	var count int
	require.NoError(t, second.ReadOnly.QueryRowContext(ctx, "SELECT count(*) FROM screens").Scan(&count))
	require.Zero(t, count)
}

func TestPurgeScreens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)

	now := time.Now()
	_, err = db.ReadWrite.ExecContext(ctx, `INSERT INTO screens (id, state, updated_at)
VALUES ('stale', '{}', ?), ('fresh', '{}', ?)`, now.Add(-48*time.Hour).Unix(), now.Unix())
	require.NoError(t, err)
	_, err = db.ReadWrite.ExecContext(ctx, `INSERT INTO screen_images (screen_id, filename, content_type, data)
VALUES ('stale', 'a.png', 'image/png', x'89')`)
	require.NoError(t, err)

	purged, err := db.PurgeScreens(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var images int
	require.NoError(t, db.ReadOnly.QueryRowContext(ctx, "SELECT count(*) FROM screen_images").Scan(&images))
	require.Zero(t, images, "images cascade with their screen")
}

func TestStartMaintenance(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		db.StartMaintenance(ctx, time.Hour)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("maintenance stopped before the context was cancelled")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("maintenance did not stop after the context was cancelled")
	}
}
