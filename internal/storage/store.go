// Package storage keeps generated fixed playlists so they can be downloaded
// after an analysis completes.
//
// Every stored playlist is identified by a ULID. Entries are write-once and
// expire through Purge, which the scheduler's janitor calls periodically.
// Three backends share the FixStore contract: an in-process map, a
// sandboxed directory of <id>.m3u files and a gorm-backed table.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/nuken/m3u-epg-checker/internal/config"
)

// Common errors returned by stores.
var (
	ErrNotFound  = errors.New("fixed playlist not found")
	ErrExists    = errors.New("fixed playlist already exists")
	ErrInvalidID = errors.New("invalid fixed playlist id")
)

// Download metadata for stored playlists.
const (
	FileExtension = ".m3u"
	ContentType   = "audio/x-mpegurl"
)

// FixStore persists fixed playlists.
type FixStore interface {
	// Put stores data under a freshly generated id and returns it.
	Put(ctx context.Context, data []byte) (string, error)
	// Save stores data under id. Reusing an id is ErrExists.
	Save(ctx context.Context, id string, data []byte) error
	// Get returns the playlist stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)
	// Purge removes entries created before olderThan and reports how many.
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// NewID returns a new ULID string stamped with the current time.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ParseID validates id and returns the time encoded in it.
func ParseID(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return ulid.Time(u.Time()), nil
}

// Filename returns the download filename for id.
func Filename(id string) string {
	return id + FileExtension
}

// put is the shared Put implementation: generate an id and Save under it.
func put(ctx context.Context, s FixStore, data []byte) (string, error) {
	id := NewID()
	if err := s.Save(ctx, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// New creates the FixStore selected by cfg.Backend. db is only used by the
// database backend and may be nil otherwise.
func New(cfg config.StorageConfig, db *gorm.DB, logger *slog.Logger) (FixStore, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.BaseDir, logger)
	case config.BackendDatabase:
		if db == nil {
			return nil, errors.New("database backend requires a database connection")
		}
		return NewDatabaseStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
