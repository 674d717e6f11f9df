// Package replay drives a recorded session against a live editor, one
// record at a time, either paced like the original session or as fast as
// the editor settles.
package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/block-replay/block-replay/internal/config"
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/loop"
	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/report"
)

// Default timings.
const (
	DefaultTick         = time.Millisecond
	DefaultPollInterval = time.Millisecond
	DefaultStepTimeout  = 300 * time.Millisecond
)

// Options configure a Driver.
type Options struct {
	// Session names the run in the report.
	Session string
	// Fast skips pointer animation and pacing; handlers install stop
	// conditions instead.
	Fast bool
	// Speed divides the recorded time deltas. Zero means 1.
	Speed float64
	// Tick is the delay between a handler calling Done and the step
	// completing.
	Tick time.Duration
	// PollInterval is how often stop conditions are checked.
	PollInterval time.Duration
	// StepTimeout bounds a step waiting on a stop condition.
	StepTimeout time.Duration
	// OnPointer moves the synthetic pointer.
	OnPointer func(p host.Point)
	// OnClick shows a click highlight at p.
	OnClick func(p host.Point)
	// Trace, when set, receives one line per completed step. When nil and
	// BLOCK_REPLAY_TRACE is on, trace lines go to stderr.
	Trace io.Writer
}

// OptionsFromConfig maps the replay section of the configuration onto driver
// options. Session and callbacks are left to the caller.
func OptionsFromConfig(c config.Replay) Options {
	return Options{
		Fast:         c.Fast,
		Speed:        c.Speed,
		Tick:         c.Tick,
		PollInterval: c.PollInterval,
		StepTimeout:  c.StepTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Speed <= 0 {
		o.Speed = 1
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = DefaultStepTimeout
	}
	if o.Trace == nil && IsTraceEnabled(os.Getenv(TraceEnvVar)) {
		o.Trace = os.Stderr
	}
	return o
}

// Driver replays records in order. Step n+1 starts only after step n has
// completed. All methods must be called on the scheduler's thread.
type Driver struct {
	env      *record.Env
	handlers *record.Registry
	sched    loop.Scheduler
	records  []record.Record
	opts     Options

	next    int
	started time.Time
	report  *report.Report
}

// New returns a driver positioned at the first record.
func New(env *record.Env, handlers *record.Registry, sched loop.Scheduler, records []record.Record, opts Options) *Driver {
	opts = opts.withDefaults()
	d := &Driver{
		env:      env,
		handlers: handlers,
		sched:    sched,
		records:  records,
		opts:     opts,
	}
	d.rewind()
	return d
}

func (d *Driver) rewind() {
	d.next = 0
	d.started = d.sched.Now()
	d.report = report.New(d.opts.Session, d.opts.Fast, d.started)
}

// Remaining returns the number of records not yet started.
func (d *Driver) Remaining() int {
	return len(d.records) - d.next
}

// Report returns the outcomes collected so far.
func (d *Driver) Report() *report.Report {
	d.report.Duration = d.sched.Now().Sub(d.started)
	return d.report
}

// PlayNext starts the next record and calls done once it has completed. It
// returns false, without calling done, when every record has been played.
func (d *Driver) PlayNext(done func()) bool {
	if d.next >= len(d.records) {
		return false
	}
	s := &step{
		driver:  d,
		index:   d.next,
		rec:     d.records[d.next],
		started: d.sched.Now(),
		done:    done,
	}
	d.next++
	s.run()
	return true
}

// Play replays every remaining record and calls done after the last one.
// In real-time mode each record waits for its recorded delta, scaled by
// Speed, after the previous one completed.
func (d *Driver) Play(done func()) {
	var next func()
	next = func() {
		if d.next >= len(d.records) {
			if done != nil {
				done()
			}
			return
		}
		d.sched.After(d.delay(d.records[d.next]), func() {
			d.PlayNext(next)
		})
	}
	next()
}

func (d *Driver) delay(rec record.Record) time.Duration {
	if d.opts.Fast || rec.TimeDelta <= 0 {
		return 0
	}
	ms := float64(rec.TimeDelta) / d.opts.Speed
	return time.Duration(ms * float64(time.Millisecond))
}

// Reset brings the editor back to the session's start: dialogs closed, the
// identity registry cleared and the snapshot loaded. An empty snapshot
// starts a new project on the motion category. The driver rewinds to the
// first record.
func (d *Driver) Reset(ctx context.Context, snapshot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	editor := d.env.Editor
	editor.CloseDialogs()
	d.env.Menus.Close()
	d.env.IDs.Reset()
	if snapshot != "" {
		if err := editor.OpenProject(snapshot); err != nil {
			return fmt.Errorf("failed to open snapshot: %w", err)
		}
	} else {
		editor.NewProject()
		editor.ChangeCategory("motion")
	}
	d.rewind()
	return nil
}

func (d *Driver) trace(s report.Step) {
	if d.opts.Trace == nil {
		return
	}
	_, _ = fmt.Fprintf(d.opts.Trace, "[block-replay] step=%d type=%s outcome=%s\n", s.Index, s.Type, s.Outcome)
}
