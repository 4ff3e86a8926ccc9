package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/migrations"
)

type Options struct {
	Dialect         Dialect
	DSN             string
	ConnectAttempts uint64
	ConnectDelay    time.Duration
}

// Repository implements repository.Store on top of database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	q       queries
	logger  *zap.Logger
}

var _ repository.Store = (*Repository)(nil)

// NewRepository wraps an already opened database handle.
func NewRepository(db *sql.DB, dialect Dialect, logger *zap.Logger) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		q:       queriesFor(dialect),
		logger:  logger,
	}
}

// Open connects to the database, waiting for it to answer pings, and returns a ready store.
// Migrations are not applied; call Migrate.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Repository, error) {
	logger.Debug("Initializing database repository", zap.String("dialect", string(opts.Dialect)))

	dialect, err := ParseDialect(string(opts.Dialect))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), opts.DSN)
	if err != nil {
		logger.Error("Failed to open database connection", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == DialectSQLite {
		// A single connection keeps statements serialized and in-memory databases shared.
		db.SetMaxOpenConns(1)
	}

	delay := opts.ConnectDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(opts.ConnectAttempts, retry.NewExponential(delay))

	logger.Debug("Checking database connection")
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("Failed to ping database", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		logger.Error("Database is unreachable", zap.Error(err))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database repository initialized successfully", zap.String("dialect", string(dialect)))
	return NewRepository(db, dialect, logger), nil
}

// Migrate applies the embedded migrations for the store's dialect.
func (r *Repository) Migrate(ctx context.Context) error {
	gooseDialect := goose.DialectSQLite3
	if r.dialect == DialectPostgres {
		gooseDialect = goose.DialectPostgres
	}

	fsys, err := fs.Sub(migrations.FS, string(r.dialect))
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, r.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		r.logger.Error("Failed to apply migrations", zap.Error(err))
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	r.logger.Info("Database migrations completed successfully", zap.Int("applied", len(results)))
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.logger.Info("Closing database connection")
	if err := r.db.Close(); err != nil {
		r.logger.Error("Failed to close database connection", zap.Error(err))
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	r.logger.Info("Database connection closed successfully")
	return nil
}
