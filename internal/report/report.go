// Package report collects the outcome of every step of a replay run and
// formats it as text, JSON or JUnit XML.
package report

import (
	"fmt"
	"time"
)

// Outcome is the result of one replay step.
type Outcome string

// Step outcomes.
const (
	Applied Outcome = "applied"
	Skipped Outcome = "skipped"
	Unknown Outcome = "unknown"
	Timeout Outcome = "timeout"
)

// Report is the structured output of a replay run.
type Report struct {
	Session  string        `json:"session"`
	Fast     bool          `json:"fast"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Steps    []Step        `json:"steps"`
}

// Step is the outcome of one record.
type Step struct {
	Index    int           `json:"index"`
	Type     string        `json:"type"`
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Clicked  bool          `json:"clicked,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// New returns an empty report for session.
func New(session string, fast bool, started time.Time) *Report {
	return &Report{Session: session, Fast: fast, Started: started, Steps: []Step{}}
}

// Add appends a step outcome.
func (r *Report) Add(s Step) {
	r.Steps = append(r.Steps, s)
}

// Counts returns the number of steps per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := map[Outcome]int{Applied: 0, Skipped: 0, Unknown: 0, Timeout: 0}
	for _, s := range r.Steps {
		counts[s.Outcome]++
	}
	return counts
}

// Passed reports whether every step was applied or skipped as already
// satisfied. Unknown types and timeouts count as failures.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if s.Outcome == Unknown || s.Outcome == Timeout {
			return false
		}
	}
	return true
}

// Summary returns a one-line description of the run.
func (r *Report) Summary() string {
	c := r.Counts()
	return fmt.Sprintf("%d steps: %d applied, %d skipped, %d unknown, %d timed out",
		len(r.Steps), c[Applied], c[Skipped], c[Unknown], c[Timeout])
}
