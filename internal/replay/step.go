package replay

import (
	"time"

	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/report"
)

// step is one record in flight. It implements record.Control.
type step struct {
	driver  *Driver
	index   int
	rec     record.Record
	started time.Time
	done    func()

	ctx       *record.Context
	cursor    *host.Point
	ending    bool
	completed bool
	cleanup   func()
	cancels   []func()
}

func (s *step) run() {
	d := s.driver
	h, ok := d.handlers.Lookup(s.rec.Type)
	if !ok {
		d.env.Logger.Warn("unknown record type", "type", s.rec.Type, "index", s.index)
		s.complete(report.Unknown, "no handler")
		return
	}

	s.ctx = record.NewContext(d.env, s.rec.Type, s)
	if d.opts.Fast {
		s.cancels = append(s.cancels, d.sched.After(d.opts.StepTimeout, s.timeout))
	} else if h.Cursor != nil {
		if p, ok := h.Cursor(s.ctx, s.rec.Data); ok {
			s.cursor = &p
			if d.opts.OnPointer != nil {
				d.opts.OnPointer(p)
			}
		}
	}

	data := d.env.Codec.Deserialize(s.rec.Data)
	if h.Replay == nil {
		s.Done()
		return
	}
	h.Replay(s.ctx, data)
}

// Fast implements record.Control.
func (s *step) Fast() bool {
	return s.driver.opts.Fast
}

// Done implements record.Control.
func (s *step) Done() {
	if s.ending {
		return
	}
	s.ending = true
	s.cancels = append(s.cancels, s.driver.sched.After(s.driver.opts.Tick, func() {
		outcome, reason := report.Applied, ""
		if r, skipped := s.ctx.Skipped(); skipped {
			outcome, reason = report.Skipped, r
		}
		s.complete(outcome, reason)
	}))
}

// Until implements record.Control.
func (s *step) Until(cond func() bool, cleanup func()) {
	if s.ending {
		return
	}
	s.cleanup = cleanup
	if !s.driver.opts.Fast {
		s.cancels = append(s.cancels, s.driver.sched.After(s.driver.opts.StepTimeout, s.timeout))
	}
	var poll func()
	poll = func() {
		if s.ending {
			return
		}
		if cond() {
			s.runCleanup()
			s.Done()
			return
		}
		s.cancels = append(s.cancels, s.driver.sched.After(s.driver.opts.PollInterval, poll))
	}
	s.cancels = append(s.cancels, s.driver.sched.After(s.driver.opts.PollInterval, poll))
}

func (s *step) timeout() {
	if s.ending {
		return
	}
	s.ending = true
	s.driver.env.Logger.Warn("step timed out",
		"type", s.rec.Type, "index", s.index, "timeout", s.driver.opts.StepTimeout)
	s.runCleanup()
	s.complete(report.Timeout, "stop condition not reached")
}

func (s *step) runCleanup() {
	if s.cleanup != nil {
		c := s.cleanup
		s.cleanup = nil
		c()
	}
}

func (s *step) complete(outcome report.Outcome, reason string) {
	if s.completed {
		return
	}
	s.completed = true
	s.ending = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil

	d := s.driver
	result := report.Step{
		Index:    s.index,
		Type:     s.rec.Type,
		Outcome:  outcome,
		Reason:   reason,
		Duration: d.sched.Now().Sub(s.started),
	}
	if s.ctx != nil {
		result.Clicked = s.ctx.Clicked()
		if s.ctx.Clicked() && s.cursor != nil && d.opts.OnClick != nil {
			d.opts.OnClick(*s.cursor)
		}
		s.ctx.ClearClick()
	}
	d.report.Add(result)
	d.trace(result)

	if s.done != nil {
		s.done()
	}
}
