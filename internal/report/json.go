package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FormatJSON writes the report as indented JSON.
func FormatJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadFile decodes a report written by FormatJSON.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path from caller
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid report JSON: %w", err)
	}
	return &r, nil
}
