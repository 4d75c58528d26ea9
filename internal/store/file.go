package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileSuffix = ".json"

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key Key) string {
	name := strings.Join([]string{
		escapeKeyPart(key.StopID),
		escapeKeyPart(key.StopPost),
		escapeKeyPart(key.Line),
		key.Date,
	}, "_") + fileSuffix
	return filepath.Join(s.dir, name)
}

// escapeKeyPart makes a key part safe as a file name. The separator is
// escaped too so that distinct keys never share a file.
func escapeKeyPart(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "_", "%5F")
}

func (s *FileStore) Get(_ context.Context, key Key) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Put writes through a temporary file so readers never see a partial payload.
func (s *FileStore) Put(_ context.Context, key Key, payload []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Prune deletes cache files whose date suffix is before the given day.
// Files that do not look like cache entries are left alone.
func (s *FileStore) Prune(ctx context.Context, before time.Time) (int, error) {
	cutoff := before.Format(DateLayout)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("listing cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stem := strings.TrimSuffix(name, fileSuffix)
		i := strings.LastIndex(stem, "_")
		if i < 0 {
			continue
		}
		date := stem[i+1:]
		if _, err := time.Parse(DateLayout, date); err != nil {
			continue
		}
		if date >= cutoff {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return removed, fmt.Errorf("removing %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) Close() error {
	return nil
}
