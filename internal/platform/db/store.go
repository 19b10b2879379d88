package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visionscreen/presbyopia/internal/config"
	"github.com/visionscreen/presbyopia/internal/domain/screening"
	"github.com/visionscreen/presbyopia/internal/platform/reporting"
)

// Store is an opened record store together with the handles the HTTP layer
// needs. Querier is nil for drivers without SQL access; Pool is nil unless the
// driver is postgres.
type Store struct {
	Driver  string
	Repo    screening.RecordRepository
	Querier reporting.Querier
	Pool    *pgxpool.Pool
}

// OpenStore opens the record store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite, "":
		repo, err := screening.OpenSQLiteRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: config.DriverSQLite, Repo: repo, Querier: repo}, nil

	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		repo, err := screening.NewRepoPG(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{Driver: config.DriverPostgres, Repo: repo, Querier: repo, Pool: pool}, nil

	case config.DriverMemory:
		return &Store{Driver: config.DriverMemory, Repo: screening.NewMemoryRepo()}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
