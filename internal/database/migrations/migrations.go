// Package migrations versions the database schema. Each migration runs in
// its own transaction together with its schema_migrations record, so a
// failed step leaves nothing behind.
package migrations

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gorm.io/gorm"
)

// ErrNoRollback is returned by Down for a migration without a Down step.
var ErrNoRollback = errors.New("migration does not support rollback")

// Migration is one schema step.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
	Down        func(tx *gorm.DB) error
}

// MigrationRecord is a row in schema_migrations.
type MigrationRecord struct {
	ID          uint      `gorm:"primarykey"`
	Version     string    `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for migration records.
func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Status describes a registered migration and whether it has been applied.
type Status struct {
	Version     string     `json:"version" yaml:"version"`
	Description string     `json:"description" yaml:"description"`
	AppliedAt   *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// Applied reports whether the migration has run.
func (s Status) Applied() bool {
	return s.AppliedAt != nil
}

// Migrator applies registered migrations in version order.
type Migrator struct {
	db         *gorm.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrator creates a migrator. A nil logger uses slog.Default.
func NewMigrator(db *gorm.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger}
}

// RegisterAll adds migrations and keeps the registry sorted by version.
func (m *Migrator) RegisterAll(migrations []Migration) {
	m.migrations = append(m.migrations, migrations...)
	slices.SortFunc(m.migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	for _, mig := range pending {
		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", mig.Version),
			slog.String("description", mig.Description),
		)

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:     mig.Version,
				Description: mig.Description,
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("applying migration %s: %w", mig.Version, err)
		}
	}
	return nil
}

// Down rolls back the most recently applied migration. It is a no-op when
// nothing has been applied.
func (m *Migrator) Down(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	last := slices.MaxFunc(applied, func(a, b MigrationRecord) int {
		return cmp.Compare(a.Version, b.Version)
	})
	idx := slices.IndexFunc(m.migrations, func(mig Migration) bool {
		return mig.Version == last.Version
	})
	if idx < 0 {
		return fmt.Errorf("migration definition not found for version %s", last.Version)
	}
	mig := m.migrations[idx]
	if mig.Down == nil {
		return fmt.Errorf("%w: %s", ErrNoRollback, mig.Version)
	}

	m.logger.InfoContext(ctx, "rolling back migration", slog.String("version", mig.Version))

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mig.Down(tx); err != nil {
			return err
		}
		return tx.Where("version = ?", mig.Version).Delete(&MigrationRecord{}).Error
	})
}

// Pending returns the registered migrations not yet applied.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for i, s := range statuses {
		if !s.Applied() {
			pending = append(pending, m.migrations[i])
		}
	}
	return pending, nil
}

// Status lists every registered migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(applied))
	for _, r := range applied {
		at[r.Version] = r.AppliedAt
	}

	out := make([]Status, len(m.migrations))
	for i, mig := range m.migrations {
		out[i] = Status{Version: mig.Version, Description: mig.Description}
		if t, ok := at[mig.Version]; ok {
			out[i].AppliedAt = &t
		}
	}
	return out, nil
}

func (m *Migrator) applied(ctx context.Context) ([]MigrationRecord, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, fmt.Errorf("initializing migrations table: %w", err)
	}

	var records []MigrationRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("getting applied migrations: %w", err)
	}
	return records, nil
}
