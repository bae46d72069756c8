package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiofp/internal/observability"
)

func TestSweeperRemovesOrphanedFiles(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	dir := t.TempDir()
	now := time.Now().UTC()

	orphan := stagedAsset("orphan", now.Add(-2*time.Hour))
	orphan.Path = filepath.Join(dir, "orphan.mp3")
	require.NoError(t, os.WriteFile(orphan.Path, []byte("audio"), 0o600))
	require.NoError(t, store.RecordStaged(ctx, orphan))

	active := stagedAsset("active", now)
	active.Path = filepath.Join(dir, "active.mp3")
	require.NoError(t, os.WriteFile(active.Path, []byte("audio"), 0o600))
	require.NoError(t, store.RecordStaged(ctx, active))

	sweeper := NewSweeper(store, time.Hour, 0, observability.NewMetrics(prometheus.NewRegistry()), nil)
	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(orphan.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "orphan should be deleted")
	_, err = os.Stat(active.Path)
	assert.NoError(t, err, "files within the TTL are left alone")

	entry, err := store.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.NotNil(t, entry.RemovedAt)
}

func TestSweeperMarksAlreadyMissingFiles(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	asset := stagedAsset("gone", time.Now().UTC().Add(-2*time.Hour))
	asset.Path = filepath.Join(t.TempDir(), "gone.mp3")
	require.NoError(t, store.RecordStaged(ctx, asset))

	n, err := NewSweeper(store, time.Hour, 0, nil, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	orphans, err := store.ListOrphans(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestSweeperKeepsEntryWhenRemoveFails(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.RecordStaged(ctx, stagedAsset("stuck", time.Now().UTC().Add(-2*time.Hour))))

	sweeper := NewSweeper(store, time.Hour, 0, nil, nil)
	sweeper.remove = func(string) error { return errors.New("permission denied") }

	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	orphans, err := store.ListOrphans(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, orphans, 1, "entry stays pending for the next sweep")
}
