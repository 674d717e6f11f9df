package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/block-replay/block-replay/internal/report"
)

var (
	reportFormatFlag string
	reportLogFlag    string
)

var reportCmd = &cobra.Command{
	Use:   "report <report.json>",
	Short: "Render a replay report",
	Long: `Render a replay report written by the editor as text, JSON or JUnit XML.

Exits non-zero when any step had an unknown record type or timed out.

Formats:
  text   One line per step that was not applied, then a summary (default)
  json   The report as indented JSON
  junit  JUnit XML for CI systems

Examples:
  block-replay report replay-report.json
  block-replay report --format junit --log 1700000000000-logs.json replay-report.json > junit.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	reportCmd.Flags().StringVar(&reportFormatFlag, "format", "text", "Output format: text, json, junit")
	reportCmd.Flags().StringVar(&reportLogFlag, "log", "", "Log file name used as the JUnit classname")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(reportFormatFlag)
	switch format {
	case "text", "json", "junit":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json, junit", reportFormatFlag)
	}

	r, err := report.ReadFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		err = report.FormatText(out, r, verboseFlag)
	case "json":
		err = report.FormatJSON(out, r)
	case "junit":
		logFile := reportLogFlag
		if logFile == "" {
			logFile = r.Session
		}
		err = report.FormatJUnit(out, r, logFile)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !r.Passed() {
		return fmt.Errorf("replay failed: %s", r.Summary())
	}
	return nil
}
