package loop

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler for tests. Time only moves when
// Advance is called; due callbacks run in time order, ties in scheduling
// order.
type Manual struct {
	now    time.Time
	seq    int
	timers []*timer
}

type timer struct {
	at       time.Time
	seq      int
	fn       func()
	canceled bool
}

// NewManual returns a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	return m.now
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	t := &timer{at: m.now.Add(d), seq: m.seq, fn: fn}
	m.seq++
	m.timers = append(m.timers, t)
	return func() { t.canceled = true }
}

// Pending returns the number of callbacks not yet run or canceled.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.canceled {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, running every callback that becomes due,
// including callbacks scheduled by callbacks within the window.
func (m *Manual) Advance(d time.Duration) {
	end := m.now.Add(d)
	for {
		t := m.next(end)
		if t == nil {
			break
		}
		if t.at.After(m.now) {
			m.now = t.at
		}
		t.canceled = true
		t.fn()
	}
	m.now = end
	m.compact()
}

// RunUntilIdle advances time until no callbacks remain, up to limit.
func (m *Manual) RunUntilIdle(limit time.Duration) {
	deadline := m.now.Add(limit)
	for m.Pending() > 0 {
		t := m.next(deadline)
		if t == nil {
			return
		}
		m.Advance(t.at.Sub(m.now))
	}
}

func (m *Manual) next(end time.Time) *timer {
	var due []*timer
	for _, t := range m.timers {
		if !t.canceled && !t.at.After(end) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.canceled {
			live = append(live, t)
		}
	}
	m.timers = live
}
