// Package cmd implements the block-replay Cobra command tree.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/block-replay/block-replay/internal/config"
	"github.com/block-replay/block-replay/internal/diagnostics"
)

// Version, Commit, and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configFlag  string
	verboseFlag bool

	cfg      = config.Defaults()
	logger   = slog.Default()
	stopSink = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "block-replay",
	Short: "Inspect, check and manage recorded block editor sessions",
	Long: `block-replay - record-and-replay tooling for block editor sessions

A recorded session is a JSON log of editor events (block drops, slot edits,
runs, dialog actions) plus a project snapshot taken when recording started.
The editor replays the log itself; this tool works on the logs.

Configuration is read from --config, else from BLOCK_REPLAY_CONFIG, else
built-in defaults are used.

Examples:
  # List the records of a session
  block-replay inspect 1700000000000-logs.json

  # Check logs before sharing them
  block-replay validate *-logs.json

  # Preview replay timing at double speed
  block-replay dryrun --speed 2 1700000000000-logs.json

  # Keep sessions in a database
  block-replay import --store sqlite --path sessions.db 1700000000000-logs.json

  # Render a replay report for CI
  block-replay report --format junit replay-report.json`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command, then drains the diagnostics sink.
func Execute() error {
	err := rootCmd.Execute()
	stopSink()
	return err
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	rootCmd.SetVersionTemplate(fmt.Sprintf("block-replay version {{.Version}} (commit: %s, built: %s)\n", Commit, Date))
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug output to stderr")
}

// setup loads the configuration and installs the logger. When a diagnostics
// endpoint is configured, warnings are also shipped there.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Resolve(configFlag)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Level()
	if verboseFlag {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})

	if cfg.Diagnostics.Endpoint != "" {
		sink, err := diagnostics.NewSink(diagnostics.Config{
			Endpoint:       cfg.Diagnostics.Endpoint,
			InstallationID: cfg.Diagnostics.InstallationID,
			FlushInterval:  cfg.Diagnostics.FlushInterval,
			MaxAttempts:    cfg.Diagnostics.MaxAttempts,
			RetryDelay:     cfg.Diagnostics.RetryDelay,
			Logger:         slog.New(handler),
		})
		if err != nil {
			return fmt.Errorf("invalid diagnostics config: %w", err)
		}
		handler = diagnostics.Fanout(handler, diagnostics.NewHandler(sink, slog.LevelWarn))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sink.Run(ctx)
			close(done)
		}()
		stopSink = func() {
			cancel()
			<-done
		}
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
	return nil
}

// warnf prints a user-facing warning to the command's stderr.
func warnf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), "block-replay: warning: "+format+"\n", args...)
}
