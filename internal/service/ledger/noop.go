package ledger

import (
	"context"
	"time"

	"audiofp/internal/models"
)

// NoopStore discards everything. It backs the "none" driver.
type NoopStore struct{}

func (NoopStore) RecordStaged(context.Context, *models.StagedAsset) error { return nil }
func (NoopStore) RecordOutcome(context.Context, *models.InvocationRecord) error { return nil }
func (NoopStore) MarkRemoved(context.Context, string, time.Time) error { return nil }
func (NoopStore) Purge(context.Context, time.Time) (int64, error) { return 0, nil }
func (NoopStore) Get(context.Context, string) (*Entry, error) { return nil, ErrNotFound }
func (NoopStore) Close() error { return nil }
func (NoopStore) ListOrphans(context.Context, time.Time, int) ([]*models.StagedAsset, error) {
	return nil, nil
}
