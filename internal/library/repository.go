package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cutroom/cutroom-agent/internal/sequence"
)

type Repository interface {
	CreateClip(ctx context.Context, clip *sequence.Clip) error
	GetClip(ctx context.Context, id string) (*sequence.Clip, error)
	ListClips(ctx context.Context) ([]sequence.Clip, error)
	DeleteClip(ctx context.Context, id string) error
	UpdateClipTrim(ctx context.Context, id string, start, end float64) error
	UpdateClipMetadata(ctx context.Context, id string, originalDuration, frameRate, start, end float64) error
	UpdateClipOrder(ctx context.Context, orderedIDs []string) error

	CreateExport(ctx context.Context, e *Export) error
	GetExport(ctx context.Context, id string) (*Export, error)
	ListExports(ctx context.Context, limit int) ([]*Export, error)
	UpdateExportStatus(ctx context.Context, id, status, outputPath, errorMsg string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateClip(ctx context.Context, c *sequence.Clip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, name, source_path, original_duration, start_s, end_s, frame_rate, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.SourcePath, c.OriginalDuration, c.Start, c.End, c.FrameRate, c.Position, c.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetClip(ctx context.Context, id string) (*sequence.Clip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, source_path, original_duration, start_s, end_s, frame_rate, position, created_at
		FROM clips WHERE id = ?
	`, id)

	var c sequence.Clip
	var createdAt string
	err := row.Scan(&c.ID, &c.Name, &c.SourcePath, &c.OriginalDuration, &c.Start, &c.End, &c.FrameRate, &c.Position, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (r *SQLiteRepository) ListClips(ctx context.Context) ([]sequence.Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, source_path, original_duration, start_s, end_s, frame_rate, position, created_at
		FROM clips ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []sequence.Clip
	for rows.Next() {
		var c sequence.Clip
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.SourcePath, &c.OriginalDuration, &c.Start, &c.End, &c.FrameRate, &c.Position, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) DeleteClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM clips WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateClipTrim(ctx context.Context, id string, start, end float64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE clips SET start_s = ?, end_s = ? WHERE id = ?", start, end, id)
	return err
}

func (r *SQLiteRepository) UpdateClipMetadata(ctx context.Context, id string, originalDuration, frameRate, start, end float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET original_duration = ?, frame_rate = ?, start_s = ?, end_s = ? WHERE id = ?
	`, originalDuration, frameRate, start, end, id)
	return err
}

// UpdateClipOrder rewrites every position column in one transaction so a
// partial reorder can never be observed.
func (r *SQLiteRepository) UpdateClipOrder(ctx context.Context, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, id := range orderedIDs {
		res, err := tx.ExecContext(ctx, "UPDATE clips SET position = ? WHERE id = ?", i, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("clip not found: %s", id)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) CreateExport(ctx context.Context, e *Export) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, format, status, output_path, error, clip_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Format, e.Status, e.OutputPath, e.Error, e.ClipCount,
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (*Export, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, format, status, output_path, error, clip_count, created_at, updated_at
		FROM exports WHERE id = ?
	`, id)
	return r.scanExport(row)
}

func (r *SQLiteRepository) scanExport(row *sql.Row) (*Export, error) {
	var e Export
	var createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.Format, &e.Status, &e.OutputPath, &e.Error, &e.ClipCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]*Export, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, format, status, output_path, error, clip_count, created_at, updated_at
		FROM exports ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		var e Export
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Format, &e.Status, &e.OutputPath, &e.Error, &e.ClipCount, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}

func (r *SQLiteRepository) UpdateExportStatus(ctx context.Context, id, status, outputPath, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, output_path = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, outputPath, errorMsg, id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
