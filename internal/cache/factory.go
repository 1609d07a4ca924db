package cache

import (
	"ptolemies/internal/config"
	"ptolemies/internal/model"
)

// Open constructs the configured Cache backend.
func Open(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.MaxItems), nil
	case "redis":
		return NewRedis(cfg.Addr, cfg.Password, cfg.DB)
	default:
		return nil, model.NewError(model.ErrInvalidQuery, "unknown cache backend: "+cfg.Backend, nil)
	}
}
