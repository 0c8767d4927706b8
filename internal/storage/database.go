package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// FixedPlaylist is the gorm model backing DatabaseStore.
type FixedPlaylist struct {
	ID        string    `gorm:"primarykey;type:varchar(26)"`
	Content   []byte    `gorm:"not null"`
	Size      int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"index;not null"`
}

// TableName returns the table name for fixed playlists.
func (FixedPlaylist) TableName() string {
	return "fixed_playlists"
}

// DatabaseStore keeps fixed playlists in a SQL table through gorm. The
// schema is created by the database migrations.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore creates a DatabaseStore on db.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

// Put implements FixStore.
func (d *DatabaseStore) Put(ctx context.Context, data []byte) (string, error) {
	return put(ctx, d, data)
}

// Save implements FixStore.
func (d *DatabaseStore) Save(ctx context.Context, id string, data []byte) error {
	if _, err := ParseID(id); err != nil {
		return err
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&FixedPlaylist{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("checking fixed playlist: %w", err)
		}
		if count > 0 {
			return ErrExists
		}

		row := FixedPlaylist{
			ID:        id,
			Content:   data,
			Size:      len(data),
			CreatedAt: d.now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("creating fixed playlist: %w", err)
		}
		return nil
	})
}

// Get implements FixStore.
func (d *DatabaseStore) Get(ctx context.Context, id string) ([]byte, error) {
	var row FixedPlaylist
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting fixed playlist: %w", err)
	}
	return row.Content, nil
}

// Purge implements FixStore.
func (d *DatabaseStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	result := d.db.WithContext(ctx).
		Where("created_at < ?", olderThan.UTC()).
		Delete(&FixedPlaylist{})
	if result.Error != nil {
		return 0, fmt.Errorf("purging fixed playlists: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
