package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/store"
)

var (
	exportSessionFlag string
	exportOutFlag     string
	exportFormatFlag  string

	importNameFlag     string
	importSnapshotFlag string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a stored session log, or the playback cache, to a file",
	Long: `Write the records of a stored session to a file or stdout.

Without --session the playback cache (the most recently saved session)
is exported.

Examples:
  block-replay export --path ./sessions > cache.json
  block-replay export --store sqlite --path sessions.db --session 1700000000000 --out s.json
  block-replay export --session 1700000000000 --format yaml`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <log>",
	Short: "Save a session log file into a store",
	Long: `Save a session log into a store. The session name and snapshot are taken
from the file name: dir/<name>-logs.json imports dir/<name>-start.xml too
when it exists. The imported log becomes the playback cache.

Examples:
  block-replay import --store sqlite --path sessions.db 1700000000000-logs.json
  block-replay import --name demo --snapshot start.xml recorded.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the playback cache",
	Long: `Remove the playback cache so the next editor start has nothing to
resume. Stored sessions are kept. Running clean twice is not an error.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	for _, c := range []*cobra.Command{listCmd, exportCmd, importCmd, cleanCmd} {
		addStoreFlags(c)
		rootCmd.AddCommand(c)
	}
	exportCmd.Flags().StringVar(&exportSessionFlag, "session", "", "Session name (default: playback cache)")
	exportCmd.Flags().StringVarP(&exportOutFlag, "out", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormatFlag, "format", "json", "Output format: json, yaml")
	importCmd.Flags().StringVar(&importNameFlag, "name", "", "Session name (default: derived from the file name)")
	importCmd.Flags().StringVar(&importSnapshotFlag, "snapshot", "", "Project snapshot file (default: <name>-start.xml next to the log)")
}

func runList(cmd *cobra.Command, _ []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // read-only use

	names, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(exportFormatFlag)
	if format != "json" && format != "yaml" {
		return fmt.Errorf("invalid format %q: valid values are json, yaml", exportFormatFlag)
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // read-only use

	var records []record.Record
	if exportSessionFlag == "" {
		records, err = st.LoadCache(cmd.Context())
	} else {
		var sess store.Session
		sess, err = st.Load(cmd.Context(), exportSessionFlag)
		records = sess.Records
	}
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutFlag != "" {
		f, err := os.Create(exportOutFlag) //nolint:gosec // user-provided output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // best-effort close after write
		w = f
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode YAML output: %w", err)
		}
		return enc.Close()
	}
	return record.EncodeLog(w, records)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	records, err := record.ReadLogFile(path)
	if err != nil {
		return err
	}

	name := importNameFlag
	if name == "" {
		name = sessionName(path)
	}
	snapPath := importSnapshotFlag
	if snapPath == "" {
		snapPath = filepath.Join(filepath.Dir(path), sessionName(path)+store.SnapshotSuffix)
	}
	snapshot, err := os.ReadFile(snapPath) //nolint:gosec // user-provided snapshot path
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && importSnapshotFlag == "":
		warnf(cmd, "no snapshot found at %s, importing without one", snapPath)
	default:
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	sess := store.Session{Name: name, Records: records, Snapshot: string(snapshot)}
	if err := st.Save(cmd.Context(), sess); err != nil {
		closeStore() //nolint:errcheck,gosec // already failing
		return err
	}
	if err := closeStore(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	logger.Info("session imported", "name", name, "records", len(records))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d records)\n", name, len(records))
	return nil
}

func runClean(cmd *cobra.Command, _ []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // nothing left to flush
	if err := st.ClearCache(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "playback cache cleared")
	return nil
}
