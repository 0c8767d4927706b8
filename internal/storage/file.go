package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// FileStore keeps each fixed playlist as <id>.m3u inside a sandboxed
// directory. Writes are atomic; reads take no lock.
type FileStore struct {
	sandbox *Sandbox
	logger  *slog.Logger
	mu      sync.Mutex // serializes Save so ids stay write-once
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	sb, err := NewSandbox(dir)
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{sandbox: sb, logger: logger}, nil
}

// Dir returns the absolute directory holding the playlists.
func (f *FileStore) Dir() string {
	return f.sandbox.BaseDir()
}

// Put implements FixStore.
func (f *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	return put(ctx, f, data)
}

// Save implements FixStore.
func (f *FileStore) Save(_ context.Context, id string, data []byte) error {
	if _, err := ParseID(id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	name := Filename(id)
	exists, err := f.sandbox.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}

	if err := f.sandbox.AtomicWrite(name, data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Get implements FixStore.
func (f *FileStore) Get(_ context.Context, id string) ([]byte, error) {
	if _, err := ParseID(id); err != nil {
		return nil, ErrNotFound
	}

	data, err := f.sandbox.ReadFile(Filename(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Purge implements FixStore. Age is taken from the timestamp in each id.
func (f *FileStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	entries, err := f.sandbox.List(".")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
			continue
		}

		created, err := ParseID(strings.TrimSuffix(entry.Name(), FileExtension))
		if err != nil || !created.Before(olderThan) {
			continue
		}

		if err := f.sandbox.Remove(entry.Name()); err != nil {
			f.logger.Warn("failed to remove expired playlist",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}
	return removed, nil
}
