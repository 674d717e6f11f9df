// Package loop provides the host's single logical thread: a scheduler that
// runs every callback one at a time, in order.
//
// Replay steps, poll ticks and host callbacks all run on the loop, so the
// identity registry, the session log and the open menu need no locking.
package loop

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs callbacks on the host thread.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// After runs fn on the host thread once d has elapsed. The returned
	// function cancels fn if it has not run yet.
	After(d time.Duration, fn func()) (cancel func())
}

// Loop is a Scheduler backed by one goroutine draining a mailbox.
type Loop struct {
	inbox  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New returns a stopped loop with a mailbox of the given size.
func New(mailbox int) *Loop {
	if mailbox <= 0 {
		mailbox = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		inbox:  make(chan func(), mailbox),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. Calling it again has no effect.
func (l *Loop) Start() {
	l.once.Do(func() { go l.run() })
}

// Stop stops the loop after the callback in progress. Pending callbacks are
// dropped. Safe to call multiple times.
func (l *Loop) Stop() {
	l.cancel()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn. It reports false when the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case <-l.ctx.Done():
		return false
	case l.inbox <- fn:
		return true
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) func() {
	var mu sync.Mutex
	canceled := false
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			mu.Lock()
			c := canceled
			mu.Unlock()
			if !c {
				fn()
			}
		})
	})
	return func() {
		mu.Lock()
		canceled = true
		mu.Unlock()
		t.Stop()
	}
}

// Wait blocks until fn's completion callback has been called or ctx ends.
// fn runs on the loop.
func (l *Loop) Wait(ctx context.Context, fn func(done func())) error {
	finished := make(chan struct{})
	var once sync.Once
	done := func() { once.Do(func() { close(finished) }) }
	if !l.Post(func() { fn(done) }) {
		return context.Canceled
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return context.Canceled
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case fn := <-l.inbox:
			fn()
		}
	}
}
