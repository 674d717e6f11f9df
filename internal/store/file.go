package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/block-replay/block-replay/internal/record"
)

// File names used by FileStore.
const (
	LogSuffix      = "-logs.json"
	SnapshotSuffix = "-start.xml"
	CacheFile      = "playback.json"
)

// FileStore keeps each session as <name>-logs.json and <name>-start.xml in
// one directory, next to the playback.json cache.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// LogPath returns the log file path of session name.
func (f *FileStore) LogPath(name string) string {
	return filepath.Join(f.Dir, name+LogSuffix)
}

// SnapshotPath returns the snapshot file path of session name.
func (f *FileStore) SnapshotPath(name string) string {
	return filepath.Join(f.Dir, name+SnapshotSuffix)
}

// CachePath returns the playback cache path.
func (f *FileStore) CachePath() string {
	return filepath.Join(f.Dir, CacheFile)
}

// Save implements Store.
func (f *FileStore) Save(ctx context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := record.MarshalLog(s.Records)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	if err := writeAtomic(f.CachePath(), data); err != nil {
		return err
	}
	if err := writeAtomic(f.LogPath(s.Name), data); err != nil {
		return err
	}
	return writeAtomic(f.SnapshotPath(s.Name), []byte(s.Snapshot))
}

// Load implements Store. A missing snapshot file loads as an empty
// snapshot.
func (f *FileStore) Load(ctx context.Context, name string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	records, err := record.ReadLogFile(f.LogPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, fmt.Errorf("session %q: %w", name, ErrNotFound)
		}
		return Session{}, err
	}
	snapshot, err := os.ReadFile(f.SnapshotPath(name)) //nolint:gosec // path built from the store directory
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Session{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Session{Name: name, Records: records, Snapshot: string(snapshot)}, nil
}

// List implements Store. Session names are millisecond timestamps, so
// lexical order is recording order for names of equal length.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(f.Dir, "*"+LogSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), LogSuffix))
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names, nil
}

// LoadCache implements Store.
func (f *FileStore) LoadCache(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := record.ReadLogFile(f.CachePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("playback cache: %w", ErrNotFound)
		}
		return nil, err
	}
	return records, nil
}

// ClearCache implements Store.
func (f *FileStore) ClearCache(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(f.CachePath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete playback cache: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
