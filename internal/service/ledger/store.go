// Package ledger records staged uploads and their outcomes so that files
// left behind by a crash or a failed cleanup can be swept later.
package ledger

import (
	"context"
	"errors"
	"time"

	"audiofp/internal/models"
)

// ErrNotFound is returned by Get for unknown asset IDs.
var ErrNotFound = errors.New("ledger entry not found")

// Entry is everything the ledger knows about one staged asset.
type Entry struct {
	Asset     models.StagedAsset       `json:"asset"`
	Status    models.InvocationStatus  `json:"status"`
	Outcome   *models.InvocationRecord `json:"outcome,omitempty"`
	RemovedAt *time.Time               `json:"removed_at,omitempty"`
}

// Store persists ledger entries. Implementations must be safe for concurrent use.
type Store interface {
	RecordStaged(ctx context.Context, asset *models.StagedAsset) error
	RecordOutcome(ctx context.Context, rec *models.InvocationRecord) error
	MarkRemoved(ctx context.Context, assetID string, at time.Time) error
	// ListOrphans returns assets staged at or before cutoff that were never removed.
	ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]*models.StagedAsset, error)
	// Purge deletes entries created before the given time and reports how many went.
	Purge(ctx context.Context, before time.Time) (int64, error)
	Get(ctx context.Context, assetID string) (*Entry, error)
	Close() error
}
