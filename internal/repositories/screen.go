package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/models"
	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/sqlite"
)

var ErrNotFound = errors.NewSentinel("not found")

// ScreenRepository persists one screen per session as a JSON document plus the uploaded image bytes.
type ScreenRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
	now    func() time.Time
}

func NewScreenRepository(db *sqlite.Database, logger *slog.Logger) *ScreenRepository {
	return &ScreenRepository{
		db:     db,
		logger: logger.With(slog.String("source", "ScreenRepository")),
		now:    time.Now,
	}
}

// Get returns the stored screen or a fresh one when the session has none yet.
func (r *ScreenRepository) Get(ctx context.Context, id string) (models.Screen, error) {
	var state []byte
	err := r.db.ReadOnly.QueryRowContext(ctx, `SELECT state FROM screens WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewScreen(), nil
	}
	if err != nil {
		return models.Screen{}, errors.Wrap(err, "read screen", slog.String("screen_id", id))
	}
	return decodeScreen(state)
}

// Update applies fn to the stored screen inside a write transaction and returns the result. Nothing is written when
// fn fails.
func (r *ScreenRepository) Update(
	ctx context.Context,
	id string,
	fn func(screen *models.Screen) error,
) (models.Screen, error) {
	return r.update(ctx, id, func(_ *sql.Tx, screen *models.Screen) error {
		return fn(screen)
	})
}

// PutImage replaces the session's image and bumps its version.
func (r *ScreenRepository) PutImage(ctx context.Context, id string, file models.ImageFile) (models.Screen, error) {
	return r.update(ctx, id, func(tx *sql.Tx, screen *models.Screen) error {
		version := 1
		if screen.Image != nil {
			version = screen.Image.Version + 1
		}
		screen.Image = &models.UploadedImage{
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Size:        int64(len(file.Data)),
			Version:     version,
		}
		stmt := `INSERT INTO screen_images (screen_id, filename, content_type, data)
VALUES (:screen_id, :filename, :content_type, :data)
ON CONFLICT (screen_id) DO UPDATE SET filename     = excluded.filename,
                                      content_type = excluded.content_type,
                                      data         = excluded.data`
		// The screen row must exist before the image references it.
		if err := r.save(ctx, tx, id, *screen); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt,
			sql.Named("screen_id", id),
			sql.Named("filename", file.Filename),
			sql.Named("content_type", file.ContentType),
			sql.Named("data", file.Data),
		); err != nil {
			return errors.Wrap(err, "upsert image")
		}
		return nil
	})
}

// Image returns the current image bytes or ErrNotFound.
func (r *ScreenRepository) Image(ctx context.Context, id string) (models.ImageFile, error) {
	var file models.ImageFile
	err := r.db.ReadOnly.QueryRowContext(ctx,
		`SELECT filename, content_type, data FROM screen_images WHERE screen_id = ?`, id,
	).Scan(&file.Filename, &file.ContentType, &file.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ImageFile{}, errors.Wrap(ErrNotFound, "read image", slog.String("screen_id", id))
	}
	if err != nil {
		return models.ImageFile{}, errors.Wrap(err, "read image", slog.String("screen_id", id))
	}
	return file, nil
}

func (r *ScreenRepository) update(
	ctx context.Context,
	id string,
	fn func(tx *sql.Tx, screen *models.Screen) error,
) (_ models.Screen, err error) {
	var tx *sql.Tx
	if tx, err = r.db.ReadWrite.BeginTx(ctx, nil); err != nil {
		return models.Screen{}, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction",
					errors.SlogError(errors.Wrap(rollbackErr, "rollback")))
			}
		}
	}()

	screen := models.NewScreen()
	var state []byte
	err = tx.QueryRowContext(ctx, `SELECT state FROM screens WHERE id = ?`, id).Scan(&state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return models.Screen{}, errors.Wrap(err, "read screen", slog.String("screen_id", id))
	default:
		if screen, err = decodeScreen(state); err != nil {
			return models.Screen{}, err
		}
	}

	if err = fn(tx, &screen); err != nil {
		return models.Screen{}, err
	}
	if err = r.save(ctx, tx, id, screen); err != nil {
		return models.Screen{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Screen{}, errors.Wrap(err, "commit transaction")
	}
	return screen, nil
}

func (r *ScreenRepository) save(ctx context.Context, tx *sql.Tx, id string, screen models.Screen) error {
	state, err := json.Marshal(screen)
	if err != nil {
		return errors.Wrap(err, "marshal screen")
	}
	stmt := `INSERT INTO screens (id, state, updated_at)
VALUES (:id, :state, :updated_at)
ON CONFLICT (id) DO UPDATE SET state      = excluded.state,
                               updated_at = excluded.updated_at`
	if _, err = tx.ExecContext(ctx, stmt,
		sql.Named("id", id),
		sql.Named("state", string(state)),
		sql.Named("updated_at", r.now().Unix()),
	); err != nil {
		return errors.Wrap(err, "upsert screen", slog.String("screen_id", id))
	}
	return nil
}

func decodeScreen(state []byte) (models.Screen, error) {
	screen := models.NewScreen()
	if err := json.Unmarshal(state, &screen); err != nil {
		return models.Screen{}, errors.Wrap(err, "unmarshal screen")
	}
	return screen, nil
}
