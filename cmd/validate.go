package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/record"
)

// ValidationResult is the validation outcome for a single log file.
type ValidationResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

var validateFormatFlag string

var validateCmd = &cobra.Command{
	Use:   "validate <log>...",
	Short: "Check session logs before replaying them",
	Long: `Check one or more session logs without replaying them.

A log is valid when it is a JSON array of records with non-empty types and
non-negative delays, every record type has a replay handler, and every
serialized object in the payloads has a known objType.

Exits non-zero if any file has errors.

Formats:
  text   Human-readable output to stderr (default)
  json   Structured JSON to stdout

Examples:
  block-replay validate 1700000000000-logs.json
  block-replay validate --format json *-logs.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	validateCmd.Flags().StringVar(&validateFormatFlag, "format", "text", "Output format: text, json")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(validateFormatFlag)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json", validateFormatFlag)
	}

	handlers := record.DefaultRegistry()
	results := make([]ValidationResult, 0, len(args))
	invalid := 0
	for _, path := range args {
		r := validateFile(path, handlers)
		if !r.Valid {
			invalid++
		}
		results = append(results, r)
	}

	switch format {
	case "text":
		formatValidateText(cmd.ErrOrStderr(), results, resolveColor())
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d file(s) invalid", invalid, len(results))
	}
	return nil
}

// validateFile checks one log file.
func validateFile(path string, handlers *record.Registry) ValidationResult {
	records, err := record.ReadLogFile(path)
	if err != nil {
		return ValidationResult{File: path, Errors: []string{err.Error()}}
	}

	known := make(map[string]bool, len(codec.KnownTypes))
	for _, t := range codec.KnownTypes {
		known[t] = true
	}

	errs := []string{}
	for i, rec := range records {
		if _, ok := handlers.Lookup(rec.Type); !ok {
			errs = append(errs, fmt.Sprintf("record %d: unknown record type %q", i, rec.Type))
		}
		for _, bad := range unknownObjTypes(rec.Data, known) {
			errs = append(errs, fmt.Sprintf("record %d: unknown objType %q", i, bad))
		}
	}
	return ValidationResult{File: path, Valid: len(errs) == 0, Errors: errs}
}

// unknownObjTypes walks a payload and returns the sorted, distinct objType
// tags that are not in known.
func unknownObjTypes(v any, known map[string]bool) []string {
	found := make(map[string]bool)
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			if t, ok := x[codec.TypeKey].(string); ok && !known[t] {
				found[t] = true
			}
			for _, child := range x {
				walk(child)
			}
		case []any:
			for _, child := range x {
				walk(child)
			}
		}
	}
	walk(v)

	out := make([]string, 0, len(found))
	for t := range found {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func formatValidateText(w io.Writer, results []ValidationResult, color bool) {
	validCount := 0
	for _, r := range results {
		if r.Valid {
			validCount++
			fmt.Fprintf(w, "%s %s: valid\n", paint(color, ansiGreen, "✓"), r.File)
			continue
		}
		fmt.Fprintf(w, "%s %s:\n", paint(color, ansiRed, "✗"), r.File)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	if len(results) > 1 {
		fmt.Fprintf(w, "\nResult: %d/%d files valid\n", validCount, len(results))
	}
}
