package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"audiofp/internal/models"
	"audiofp/internal/redis"
)

const (
	redisEntryPrefix = "audiofp:ledger:asset:"
	redisPendingKey  = "audiofp:ledger:pending"
)

// RedisStore keeps one JSON document per asset, expiring after the retention
// period, plus a sorted set of assets whose file has not been removed yet.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func entryKey(id string) string {
	return redisEntryPrefix + id
}

func (s *RedisStore) save(ctx context.Context, e *Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, entryKey(e.Asset.ID), payload, s.retention)
}

func (s *RedisStore) RecordStaged(ctx context.Context, asset *models.StagedAsset) error {
	e := &Entry{Asset: *asset, Status: models.StatusStaged}
	if err := s.save(ctx, e); err != nil {
		return fmt.Errorf("record staged %s: %w", asset.ID, err)
	}
	if err := s.client.ZAdd(ctx, redisPendingKey, float64(asset.CreatedAt.Unix()), asset.ID); err != nil {
		return fmt.Errorf("index staged %s: %w", asset.ID, err)
	}
	return nil
}

func (s *RedisStore) RecordOutcome(ctx context.Context, rec *models.InvocationRecord) error {
	e, err := s.Get(ctx, rec.AssetID)
	if err != nil {
		return err
	}
	e.Status = rec.Status
	e.Outcome = rec
	if err := s.save(ctx, e); err != nil {
		return fmt.Errorf("record outcome %s: %w", rec.AssetID, err)
	}
	return nil
}

func (s *RedisStore) MarkRemoved(ctx context.Context, assetID string, at time.Time) error {
	if err := s.client.ZRem(ctx, redisPendingKey, assetID); err != nil {
		return fmt.Errorf("unindex %s: %w", assetID, err)
	}
	e, err := s.Get(ctx, assetID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	at = at.UTC()
	e.RemovedAt = &at
	return s.save(ctx, e)
}

func (s *RedisStore) ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]*models.StagedAsset, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.ZRangeByScore(ctx, redisPendingKey, float64(cutoff.Unix()), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	assets := make([]*models.StagedAsset, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// The document expired; nothing left to locate the file with.
			_ = s.client.ZRem(ctx, redisPendingKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		asset := e.Asset
		assets = append(assets, &asset)
	}
	return assets, nil
}

// Purge is a no-op: entries expire on their own.
func (s *RedisStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Get(ctx context.Context, assetID string) (*Entry, error) {
	raw, err := s.client.Get(ctx, entryKey(assetID))
	if errors.Is(err, redis.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", assetID, err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode ledger entry %s: %w", assetID, err)
	}
	return &e, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
