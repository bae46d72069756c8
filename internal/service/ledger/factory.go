package ledger

import (
	"fmt"

	"audiofp/internal/config"
	"audiofp/internal/redis"
	"audiofp/internal/storage"
)

// New opens the store selected by cfg.Ledger.Driver.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Ledger.Driver {
	case "", "none":
		return NoopStore{}, nil
	case "redis":
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis ledger: %w", err)
		}
		return NewRedisStore(client, cfg.Ledger.Retention), nil
	default:
		db, err := storage.Open(cfg.Ledger.Driver, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(db, cfg.Ledger.Driver); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db, cfg.Ledger.Driver), nil
	}
}
