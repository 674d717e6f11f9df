package report

import (
	"fmt"
	"io"
)

// FormatText writes one line per step that was not applied, then the
// summary. Applied steps are listed too when verbose is set.
func FormatText(w io.Writer, r *Report, verbose bool) error {
	for _, s := range r.Steps {
		if s.Outcome == Applied && !verbose {
			continue
		}
		line := fmt.Sprintf("  [%d] %-36s %s", s.Index, s.Type, s.Outcome)
		if s.Reason != "" {
			line += ": " + s.Reason
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	status := "ok"
	if !r.Passed() {
		status = "FAILED"
	}
	_, err := fmt.Fprintf(w, "%s: %s (%s)\n", r.Session, r.Summary(), status)
	return err
}
