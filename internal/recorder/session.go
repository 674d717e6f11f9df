// Package recorder captures a live editor session as an ordered log of
// serialized records.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/store"
)

// AudioRecorder captures narration alongside a session. Implementations
// live outside this module.
type AudioRecorder interface {
	Start() error
	// Stop ends the capture and saves it under name.
	Stop(name string) error
}

// Options configure a Session.
type Options struct {
	// Store persists the session on Stop. Optional.
	Store store.Store
	// Audio is started by Start unless audio is skipped. Optional.
	Audio AudioRecorder
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Session records host events while recording is on.
type Session struct {
	env   *record.Env
	store store.Store
	audio AudioRecorder
	clock func() time.Time

	records   []record.Record
	index     int
	recording bool
	lastTime  time.Time
	name      string
	snapshot  string
	audioOn   bool
}

// New returns an idle session recording against env.
func New(env *record.Env, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		env:      env,
		store:    opts.Store,
		audio:    opts.Audio,
		clock:    clock,
		lastTime: clock(),
	}
}

// Start begins a recording. Unless keepPrevious is set the log is cleared.
// The project snapshot is taken first; a failed snapshot aborts the start.
// Audio is best effort. The first record captures the current block scale.
func (s *Session) Start(ctx context.Context, keepPrevious, skipAudio bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot, err := s.env.Editor.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot project: %w", err)
	}
	if !keepPrevious {
		s.records = nil
		s.index = 0
	}
	if s.index > len(s.records) {
		s.index = len(s.records)
	}
	s.snapshot = snapshot
	s.lastTime = s.clock()
	s.name = strconv.FormatInt(s.lastTime.UnixMilli(), 10)
	s.recording = true

	s.audioOn = false
	if !skipAudio && s.audio != nil {
		if err := s.audio.Start(); err != nil {
			s.env.Logger.Warn("audio recording unavailable", "error", err)
		} else {
			s.audioOn = true
		}
	}

	s.Capture(record.TypeSetBlockScale, map[string]any{"scale": s.env.Editor.BlocksScale()})
	s.env.Logger.Info("recording started", "session", s.name, "records", len(s.records))
	return nil
}

// Capture serializes payload and adds it as a record of type typ.
func (s *Session) Capture(typ string, payload map[string]any) bool {
	if !s.recording {
		return false
	}
	return s.AddRecord(record.New(typ, s.env.Codec.Serialize(payload)))
}

// AddRecord inserts rec at the cursor and advances it. rec.Data must
// already be serialized. It is a no-op unless recording.
func (s *Session) AddRecord(rec record.Record) bool {
	if !s.recording {
		return false
	}
	now := s.clock()
	rec.TimeDelta = now.Sub(s.lastTime).Milliseconds()
	if rec.TimeDelta < 0 {
		rec.TimeDelta = 0
	}
	s.lastTime = now

	s.records = append(s.records, record.Record{})
	copy(s.records[s.index+1:], s.records[s.index:])
	s.records[s.index] = rec
	s.index++
	s.env.Logger.Debug("record added", "type", rec.Type, "timeDelta", rec.TimeDelta)
	return true
}

// Stop ends the recording and persists the log and snapshot. Recording is
// off even when persisting fails.
func (s *Session) Stop(ctx context.Context) error {
	s.recording = false
	var errs []error
	if s.store != nil {
		err := s.store.Save(ctx, store.Session{
			Name:     s.name,
			Records:  s.Records(),
			Snapshot: s.snapshot,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to save session: %w", err))
		}
	}
	if s.audioOn {
		s.audioOn = false
		if err := s.audio.Stop(s.name + "-audio"); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audio: %w", err))
		}
	}
	s.env.Logger.Info("recording stopped", "session", s.name, "records", len(s.records))
	return errors.Join(errs...)
}

// LoadFromCache replaces the log with the last saved one. Failures are
// logged and otherwise ignored. New captures append after the loaded
// records.
func (s *Session) LoadFromCache(ctx context.Context) {
	if s.store == nil {
		return
	}
	records, err := s.store.LoadCache(ctx)
	if err != nil {
		s.env.Logger.Debug("no playback cache", "error", err)
		return
	}
	s.records = records
	s.index = len(records)
	s.recording = false
}

// Records returns a copy of the log.
func (s *Session) Records() []record.Record {
	out := make([]record.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Session) Len() int { return len(s.records) }

// Name returns the session name, the start time in Unix milliseconds.
func (s *Session) Name() string { return s.name }

// Recording reports whether records are being captured.
func (s *Session) Recording() bool { return s.recording }

// Snapshot returns the project snapshot taken by Start.
func (s *Session) Snapshot() string { return s.snapshot }
