package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/replay"
)

var (
	dryrunSpeedFlag float64
	dryrunFastFlag  bool
)

var dryrunCmd = &cobra.Command{
	Use:   "dryrun <log>",
	Short: "Preview how a session log would replay",
	Long: `Preview a replay without an editor: the records in order, the delay
before each one at the chosen speed, and whether every record type has a
replay handler.

Timings come from the replay section of the config: speed, tick,
poll_interval and step_timeout. In fast mode delays are skipped and each
step is bounded by the step timeout plus one poll.

Exits non-zero when the log contains record types with no handler.

Examples:
  block-replay dryrun 1700000000000-logs.json
  block-replay dryrun --speed 2 1700000000000-logs.json
  block-replay dryrun --fast 1700000000000-logs.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDryrun,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	dryrunCmd.Flags().Float64Var(&dryrunSpeedFlag, "speed", 0, "Playback speed multiplier (default from config)")
	dryrunCmd.Flags().BoolVar(&dryrunFastFlag, "fast", false, "Preview fast mode")
	rootCmd.AddCommand(dryrunCmd)
}

func runDryrun(cmd *cobra.Command, args []string) error {
	opts := replay.OptionsFromConfig(cfg.Replay)
	if dryrunSpeedFlag < 0 {
		return fmt.Errorf("invalid speed %v: must be > 0", dryrunSpeedFlag)
	}
	if dryrunSpeedFlag > 0 {
		opts.Speed = dryrunSpeedFlag
	}
	opts.Fast = opts.Fast || dryrunFastFlag

	records, err := record.ReadLogFile(args[0])
	if err != nil {
		return err
	}
	plan := buildPlan(sessionName(args[0]), records, opts)
	if err := replay.FormatPlan(cmd.OutOrStdout(), plan); err != nil {
		return err
	}
	if n := len(plan.Unknown); n > 0 {
		return fmt.Errorf("%d unknown record type(s) in %s", n, args[0])
	}
	return nil
}

func buildPlan(session string, records []record.Record, opts replay.Options) *replay.Plan {
	return replay.BuildPlan(session, records, record.DefaultRegistry(), opts)
}
