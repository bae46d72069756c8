package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"audiofp/internal/models"
	"audiofp/internal/storage"
)

// SQLStore keeps the ledger in the invocations table.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore wraps an open database whose schema has been migrated.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) q(query string) string {
	return storage.Rebind(s.driver, query)
}

func (s *SQLStore) RecordStaged(ctx context.Context, asset *models.StagedAsset) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO invocations (id, original_name, mime_type, detected_mime, size, content_hash, staged_path, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		asset.ID, asset.OriginalName, asset.MimeType, asset.DetectedMime, asset.Size,
		asset.ContentHash, asset.Path, string(models.StatusStaged), asset.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("record staged %s: %w", asset.ID, err)
	}
	return nil
}

func (s *SQLStore) RecordOutcome(ctx context.Context, rec *models.InvocationRecord) error {
	var exitCode sql.NullInt64
	if rec.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*rec.ExitCode), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE invocations
		SET status = ?, exit_code = ?, error_text = ?, audio_duration = ?, elapsed_ms = ?, completed_at = ?
		WHERE id = ?`),
		string(rec.Status), exitCode, nullString(rec.Error), rec.AudioDuration,
		rec.Elapsed.Milliseconds(), rec.CompletedAt.UTC(), rec.AssetID)
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", rec.AssetID, err)
	}
	return expectRow(res, rec.AssetID)
}

func (s *SQLStore) MarkRemoved(ctx context.Context, assetID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE invocations SET removed_at = ? WHERE id = ?`), at.UTC(), assetID)
	if err != nil {
		return fmt.Errorf("mark removed %s: %w", assetID, err)
	}
	return expectRow(res, assetID)
}

func (s *SQLStore) ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]*models.StagedAsset, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, original_name, mime_type, detected_mime, size, content_hash, staged_path, created_at
		FROM invocations
		WHERE removed_at IS NULL AND created_at <= ?
		ORDER BY created_at
		LIMIT ?`), cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	defer rows.Close()

	var assets []*models.StagedAsset
	for rows.Next() {
		var a models.StagedAsset
		if err := rows.Scan(&a.ID, &a.OriginalName, &a.MimeType, &a.DetectedMime, &a.Size, &a.ContentHash, &a.Path, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan orphan: %w", err)
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// Purge drops rows older than before. Rows whose file is still on disk are kept.
func (s *SQLStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM invocations WHERE created_at < ? AND removed_at IS NOT NULL`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge ledger: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Get(ctx context.Context, assetID string) (*Entry, error) {
	var (
		e           Entry
		status      string
		exitCode    sql.NullInt64
		errText     sql.NullString
		duration    sql.NullFloat64
		elapsedMS   sql.NullInt64
		completedAt sql.NullTime
		removedAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, original_name, mime_type, detected_mime, size, content_hash, staged_path, created_at,
			status, exit_code, error_text, audio_duration, elapsed_ms, completed_at, removed_at
		FROM invocations WHERE id = ?`), assetID).Scan(
		&e.Asset.ID, &e.Asset.OriginalName, &e.Asset.MimeType, &e.Asset.DetectedMime, &e.Asset.Size,
		&e.Asset.ContentHash, &e.Asset.Path, &e.Asset.CreatedAt,
		&status, &exitCode, &errText, &duration, &elapsedMS, &completedAt, &removedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", assetID, err)
	}

	e.Status = models.InvocationStatus(status)
	if completedAt.Valid {
		rec := &models.InvocationRecord{
			AssetID:       e.Asset.ID,
			Status:        e.Status,
			Error:         errText.String,
			AudioDuration: duration.Float64,
			Elapsed:       time.Duration(elapsedMS.Int64) * time.Millisecond,
			CompletedAt:   completedAt.Time,
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			rec.ExitCode = &code
		}
		e.Outcome = rec
	}
	if removedAt.Valid {
		t := removedAt.Time
		e.RemovedAt = &t
	}
	return &e, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
