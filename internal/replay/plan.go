package replay

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/record"
)

// Plan is a dry-run preview of a session log. Not persisted.
type Plan struct {
	Session string
	Total   int
	Fast    bool

	// Duration is the expected run time: paced delays plus one tick per
	// step. In fast mode it is the lower bound.
	Duration time.Duration

	// Bound is the worst case of a fast-mode run, every step timing out.
	Bound time.Duration

	Types   []string
	Unknown []string
	Steps   []PlanStep
}

// PlanStep is one record as it would be replayed.
type PlanStep struct {
	Index   int
	Type    string
	Delay   time.Duration
	Known   bool
	Summary string
}

// BuildPlan previews records without touching an editor, timed the way a
// Driver with opts would pace them.
func BuildPlan(session string, records []record.Record, handlers *record.Registry, opts Options) *Plan {
	opts = opts.withDefaults()
	pacer := &Driver{opts: opts}
	plan := &Plan{Session: session, Total: len(records), Fast: opts.Fast, Steps: make([]PlanStep, len(records))}
	if opts.Fast {
		plan.Bound = time.Duration(len(records)) * (opts.StepTimeout + opts.PollInterval)
	}
	seen := make(map[string]bool)
	missing := make(map[string]bool)
	for i, rec := range records {
		delay := pacer.delay(rec)
		_, known := handlers.Lookup(rec.Type)
		plan.Duration += delay + opts.Tick
		if !seen[rec.Type] {
			seen[rec.Type] = true
			plan.Types = append(plan.Types, rec.Type)
		}
		if !known && !missing[rec.Type] {
			missing[rec.Type] = true
			plan.Unknown = append(plan.Unknown, rec.Type)
		}
		plan.Steps[i] = PlanStep{
			Index:   i,
			Type:    rec.Type,
			Delay:   delay,
			Known:   known,
			Summary: summarize(rec.Data),
		}
	}
	return plan
}

// summarize describes a payload by its message, or else its keys.
func summarize(data map[string]any) string {
	if msg := codec.String(data["message"]); msg != "" {
		return msg
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// FormatPlan writes a human-readable plan.
func FormatPlan(w io.Writer, plan *Plan) error {
	_, _ = fmt.Fprintf(w, "Session: %s\n", plan.Session)
	_, _ = fmt.Fprintf(w, "Records: %d | Types: %d | Duration: %s\n",
		plan.Total, len(plan.Types), plan.Duration.Round(time.Millisecond))
	if plan.Fast {
		_, _ = fmt.Fprintf(w, "Fast mode: at most %s if every step times out\n", plan.Bound)
	}

	sep := strings.Repeat("─", 72)
	_, _ = fmt.Fprintf(w, "\n%s\n", sep)
	_, _ = fmt.Fprintf(w, " %-5s %-34s %-9s %s\n", "#", "Type", "Delay", "Payload")
	_, _ = fmt.Fprintf(w, "%s\n", sep)
	for _, s := range plan.Steps {
		typ := s.Type
		if !s.Known {
			typ += " (?)"
		}
		_, _ = fmt.Fprintf(w, " %-5d %-34s %-9s %s\n",
			s.Index+1, truncate(typ, 34), s.Delay.Round(time.Millisecond), truncate(s.Summary, 40))
	}
	_, _ = fmt.Fprintf(w, "%s\n", sep)

	if len(plan.Unknown) > 0 {
		for _, t := range plan.Unknown {
			_, _ = fmt.Fprintf(w, "✗ unknown record type %q\n", t)
		}
		return nil
	}
	_, err := fmt.Fprintln(w, "✓ All record types have handlers")
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
