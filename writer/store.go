package writer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// ErrNotFound is returned by a Store when a file does not exist.
var ErrNotFound = errors.New("file not found")

// Store persists generated sitemap files by name.
type Store interface {
	// WriteFile stores data under name, replacing any previous content.
	WriteFile(ctx context.Context, name string, data []byte) error
	// ReadFile returns the content stored under name or ErrNotFound.
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// FSStore writes files into a directory of an afero filesystem.
type FSStore struct {
	fs  afero.Fs
	dir string
}

// NewFSStore returns a Store rooted at dir on fs.
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	return &FSStore{fs: fs, dir: dir}
}

// NewOSStore returns a Store rooted at dir on the local disk.
func NewOSStore(dir string) *FSStore {
	return NewFSStore(afero.NewOsFs(), dir)
}

// Dir returns the directory files are written to.
func (s *FSStore) Dir() string {
	return s.dir
}

// WriteFile writes data to a temporary file and renames it into place, so
// readers never see a partial sitemap.
func (s *FSStore) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

// ReadFile returns the content of name or ErrNotFound.
func (s *FSStore) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// ETag returns a strong entity tag for data.
func ETag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
