// Package database opens the SQL connection used by the database storage
// backend and applies its migrations. SQLite, PostgreSQL and MySQL are
// supported through GORM.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nuken/m3u-epg-checker/internal/config"
	"github.com/nuken/m3u-epg-checker/internal/database/migrations"
)

const sqliteMaxOpenConns = 4

// DB wraps a GORM database connection with additional functionality.
type DB struct {
	*gorm.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// Options contains optional configuration for database connections.
type Options struct {
	// PrepareStmt enables prepared statement caching. Default is true.
	// Set to false for SQLite when using transactions in tests.
	PrepareStmt bool
}

// New creates a new database connection based on the provided configuration.
// Use opts to customize behavior; pass nil for defaults (PrepareStmt: true).
func New(cfg config.DatabaseConfig, log *slog.Logger, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{PrepareStmt: true}
	}
	if log == nil {
		log = slog.Default()
	}

	dialector, err := getDialector(cfg)
	if err != nil {
		return nil, fmt.Errorf("getting dialector: %w", err)
	}

	gormLogger := newGormLogger(cfg.LogLevel, log)

	gormCfg := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            opts.PrepareStmt,
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	pool := poolLimits(cfg)
	sqlDB.SetMaxOpenConns(pool.maxOpen)
	sqlDB.SetMaxIdleConns(pool.maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	log.Info("database connection opened",
		slog.String("driver", cfg.Driver),
		slog.Int("max_open_conns", pool.maxOpen),
		slog.Int("max_idle_conns", pool.maxIdle),
	)

	return &DB{DB: db, cfg: cfg, logger: log}, nil
}

type limits struct {
	maxOpen, maxIdle int
}

// poolLimits caps SQLite pools, which allow a single writer, to avoid lock
// contention. Other drivers use the configured values.
func poolLimits(cfg config.DatabaseConfig) limits {
	l := limits{maxOpen: cfg.MaxOpenConns, maxIdle: cfg.MaxIdleConns}
	if cfg.Driver == "sqlite" && (l.maxOpen <= 0 || l.maxOpen > sqliteMaxOpenConns) {
		l.maxOpen = sqliteMaxOpenConns
		l.maxIdle = min(l.maxIdle, l.maxOpen)
	}
	return l
}

// getDialector returns the appropriate GORM dialector for the configured driver.
func getDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		// Pure Go driver; PRAGMAs in the DSN apply to every pooled connection.
		dsn := cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += "_pragma=busy_timeout(10000)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=synchronous(NORMAL)"

		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Schema returns a migrator loaded with every known migration.
func (db *DB) Schema() *migrations.Migrator {
	m := migrations.NewMigrator(db.DB, db.logger)
	m.RegisterAll(migrations.AllMigrations())
	return m
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.Schema().Up(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Driver returns the database driver name.
func (db *DB) Driver() string {
	return db.cfg.Driver
}
