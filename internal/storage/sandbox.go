package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesSandbox is returned for paths that resolve outside the sandbox.
var ErrEscapesSandbox = errors.New("path escapes sandbox")

// Sandbox confines file operations to a base directory. Names are checked
// lexically first, for a clear error, and every operation then goes through
// an os.Root so symlinks cannot lead outside either.
type Sandbox struct {
	baseDir string
	root    *os.Root
}

// NewSandbox opens a Sandbox rooted at baseDir, creating the directory if
// needed.
func NewSandbox(baseDir string) (*Sandbox, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("opening base directory: %w", err)
	}
	return &Sandbox{baseDir: abs, root: root}, nil
}

// BaseDir returns the absolute path of the sandbox.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// Close releases the directory handle.
func (s *Sandbox) Close() error {
	return s.root.Close()
}

// ResolvePath returns the absolute path for a name inside the sandbox.
func (s *Sandbox) ResolvePath(name string) (string, error) {
	rel, err := s.clean(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, rel), nil
}

func (s *Sandbox) clean(name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s (absolute paths not allowed)", ErrEscapesSandbox, name)
	}
	rel := filepath.Clean(name)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesSandbox, name)
	}
	return rel, nil
}

// Exists reports whether name exists in the sandbox.
func (s *Sandbox) Exists(name string) (bool, error) {
	rel, err := s.clean(name)
	if err != nil {
		return false, err
	}

	_, err = s.root.Stat(rel)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("checking path: %w", err)
}

// ReadFile reads name. A missing file wraps fs.ErrNotExist.
func (s *Sandbox) ReadFile(name string) ([]byte, error) {
	rel, err := s.clean(name)
	if err != nil {
		return nil, err
	}

	data, err := s.root.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Remove deletes name.
func (s *Sandbox) Remove(name string) error {
	rel, err := s.clean(name)
	if err != nil {
		return err
	}
	if err := s.root.Remove(rel); err != nil {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// List returns the entries of directory name, sorted by filename.
func (s *Sandbox) List(name string) ([]fs.DirEntry, error) {
	rel, err := s.clean(name)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(s.root.FS(), filepath.ToSlash(rel))
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return entries, nil
}

// AtomicWrite writes data to a hidden temporary file beside name and renames
// it into place. Readers never observe a partial file.
func (s *Sandbox) AtomicWrite(name string, data []byte) error {
	rel, err := s.clean(name)
	if err != nil {
		return err
	}

	dir := filepath.Dir(rel)
	if err := s.root.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(rel)+"."+randomSuffix()+".tmp")
	if err := s.root.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := s.root.Rename(tmp, rel); err != nil {
		_ = s.root.Remove(tmp)
		return fmt.Errorf("renaming to target: %w", err)
	}
	return nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
