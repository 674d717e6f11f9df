package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/block-replay/block-replay/internal/matcher"
	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/replay"
)

var inspectTypeFlag []string

var inspectCmd = &cobra.Command{
	Use:   "inspect <log>",
	Short: "List the records of a session log",
	Long: `List every record of a session log with its delay, cumulative time
and a short summary of its payload.

Use --type to keep only matching record types. Patterns may be literal
names, globs (menu*), re:<regex>, or {{ .regex "<regex>" }}.

Examples:
  block-replay inspect 1700000000000-logs.json
  block-replay inspect --type 'blockDrop' --type 'menu*' session-logs.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	inspectCmd.Flags().StringSliceVar(&inspectTypeFlag, "type", nil, "Only show record types matching these patterns")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	filter, err := matcher.CompileAll(inspectTypeFlag)
	if err != nil {
		return err
	}
	records, err := record.ReadLogFile(args[0])
	if err != nil {
		return err
	}

	plan := buildPlan(sessionName(args[0]), records, replay.Options{})
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tDELTA\tAT\tSUMMARY")
	var at time.Duration
	shown := 0
	for _, step := range plan.Steps {
		at += step.Delay
		if !filter.Match(step.Type) {
			continue
		}
		shown++
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", step.Index, step.Type, step.Delay, at, step.Summary)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d records\n", shown, len(records))
	return nil
}
