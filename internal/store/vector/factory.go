package vector

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ptolemies/internal/config"
	"ptolemies/internal/model"
)

// Open constructs the configured vector Store backend.
func Open(ctx context.Context, cfg config.VectorStoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "memory-hnsw":
		return NewHNSW(16, 40), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, model.NewError(model.ErrStoreUnavailable, "connecting to postgres", err)
		}
		return NewPostgres(ctx, pool, cfg.Table, cfg.Dimension, cfg.Metric)
	case "qdrant":
		return NewQdrant(ctx, cfg.DSN, cfg.Table, cfg.Dimension, cfg.Metric)
	default:
		return nil, model.NewError(model.ErrInvalidQuery, "unknown vector store backend: "+cfg.Backend, nil)
	}
}
