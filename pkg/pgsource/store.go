package pgsource

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/network"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store owns the connection pool of a network database
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// Open connects to dsn and pins the search path to schema
func Open(ctx context.Context, dsn, schema string, logger logging.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute
	if schema != "" {
		config.ConnConfig.RuntimeParams["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{pool: pool, logger: logger.With(logging.Component("pgsource"))}, nil
}

// Migrate applies the embedded schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info("migrations applied")
	return nil
}

// Load reads the whole network into memory
func (s *Store) Load(ctx context.Context) (*network.MemorySource, error) {
	timer := logging.StartTimer(s.logger, "network loaded", logging.Operation("load"))
	src, err := Load(ctx, s.pool)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}
	timer.End()
	return src, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
