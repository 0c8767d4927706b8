package migrations

import (
	"gorm.io/gorm"

	"github.com/nuken/m3u-epg-checker/internal/storage"
)

// AllMigrations returns all registered migrations in order.
//   - 001: fixed_playlists table
func AllMigrations() []Migration {
	return []Migration{
		migration001FixedPlaylists(),
	}
}

func migration001FixedPlaylists() Migration {
	return Migration{
		Version:     "001",
		Description: "Create fixed_playlists table",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&storage.FixedPlaylist{})
		},
		Down: func(tx *gorm.DB) error {
			if tx.Migrator().HasTable(&storage.FixedPlaylist{}) {
				return tx.Migrator().DropTable(&storage.FixedPlaylist{})
			}
			return nil
		},
	}
}
