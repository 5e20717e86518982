package todo

import (
	"context"
	"fmt"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/errors"
)

// OpenStore builds the store backend named in cfg.
func OpenStore(ctx context.Context, cfg config.StoresConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return nil, errors.Validation("stores.backend",
			fmt.Sprintf("unknown backend %q", cfg.Backend),
			"memory", "sqlite", "redis")
	}
}
