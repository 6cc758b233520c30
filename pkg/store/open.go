package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotsetgreg/factkeeper/pkg/config"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// OpenBackend builds the durable backend named in cfg.Store. The
// memory backend returns nil: FactStore then runs on its local map.
func OpenBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	sc := cfg.Store
	switch strings.ToLower(strings.TrimSpace(sc.Backend)) {
	case "", BackendMemory:
		return nil, nil
	case BackendSQLite:
		return NewSQLiteBackend(cfg.SQLitePath())
	case BackendPostgres, "pgx":
		if strings.TrimSpace(sc.PostgresDSN) == "" {
			return nil, fmt.Errorf("store backend postgres requires store.postgres_dsn")
		}
		return NewPostgresBackend(sc.PostgresDSN)
	case BackendMongo, "mongodb":
		if strings.TrimSpace(sc.MongoURI) == "" {
			return nil, fmt.Errorf("store backend mongo requires store.mongo_uri")
		}
		cctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout())
		defer cancel()
		return NewMongoBackend(cctx, sc.MongoURI, sc.MongoDatabase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, sc.Backend)
	}
}

// Open returns a ready FactStore over the configured backend.
func Open(ctx context.Context, cfg *config.Config) (*FactStore, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewFactStore(backend, cfg.StoreTimeout()), nil
}
