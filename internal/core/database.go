package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/profile-service/config"
	"github.com/duynhne/profile-service/internal/core/domain"
	"github.com/duynhne/profile-service/internal/core/repository/psql"
	"github.com/duynhne/profile-service/internal/core/repository/sqlite"
)

// Connect establishes the PostgreSQL pool using pgx/v5.
//
// IMPORTANT: SimpleProtocol mode with statement caching disabled keeps the pool
// compatible with transaction-mode poolers (PgCat/PgBouncer). Without this, you may see:
//
//	"prepared statement stmtcache_* does not exist"
//
// statement_timeout bounds every query server-side; a timed-out query surfaces
// to callers as an ordinary error.
func Connect(ctx context.Context, cfg config.DatabaseConfig, serviceName string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	poolCfg.ConnConfig.StatementCacheCapacity = 0
	poolCfg.ConnConfig.DescriptionCacheCapacity = 0
	poolCfg.ConnConfig.RuntimeParams["application_name"] = serviceName
	if cfg.StatementTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// OpenStore opens the identity/profile store selected by cfg.Driver.
// The PostgreSQL schema is applied only when cfg.AutoMigrate is set; SQLite
// always runs its bundled migrations.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, serviceName string) (domain.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg, serviceName)
		if err != nil {
			return nil, err
		}
		repo := psql.NewUserRepository(pool)
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				repo.Close()
				return nil, err
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}
