// Package store persists recorded sessions: the record log, the project
// snapshot taken when recording started, and the playback cache that lets
// the last session be replayed without choosing a file.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/block-replay/block-replay/internal/record"
)

// ErrNotFound is returned when a session or the playback cache is absent.
var ErrNotFound = errors.New("not found")

// Session is everything persisted for one recording.
type Session struct {
	Name     string
	Records  []record.Record
	Snapshot string
}

// Validate checks that the session can be stored.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("session name must be non-empty")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("session name %q must not contain path separators", s.Name)
	}
	for i, r := range s.Records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// Store saves and loads sessions.
type Store interface {
	// Save persists the session and makes its log the playback cache.
	Save(ctx context.Context, s Session) error
	// Load returns the named session, or ErrNotFound.
	Load(ctx context.Context, name string) (Session, error)
	// List returns the stored session names, oldest first.
	List(ctx context.Context) ([]string, error)
	// LoadCache returns the most recently saved log, or ErrNotFound.
	LoadCache(ctx context.Context) ([]record.Record, error)
	// ClearCache removes the playback cache. Missing caches are not an error.
	ClearCache(ctx context.Context) error
}
