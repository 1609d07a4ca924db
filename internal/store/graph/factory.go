package graph

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ptolemies/internal/config"
	"ptolemies/internal/model"
)

// Open constructs the configured graph Store backend.
func Open(ctx context.Context, cfg config.GraphStoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, model.NewError(model.ErrStoreUnavailable, "connecting to postgres", err)
		}
		return NewPostgres(ctx, pool)
	default:
		return nil, model.NewError(model.ErrInvalidQuery, "unknown graph store backend: "+cfg.Backend, nil)
	}
}
