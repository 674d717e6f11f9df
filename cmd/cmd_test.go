package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/block-replay/block-replay/internal/config"
	"github.com/block-replay/block-replay/internal/record"
	"github.com/block-replay/block-replay/internal/report"
	"github.com/block-replay/block-replay/internal/store"
)

const sampleLog = `[
  {"type": "setBlockScale", "data": {"scale": 1}, "timeDelta": 0},
  {"type": "changeCategory", "data": {"message": "IDE.changeCategory", "category": "motion"}, "timeDelta": 120},
  {"type": "menu", "data": {"message": "Block.userMenu"}, "timeDelta": 80},
  {"type": "run", "data": {"message": "IDE.greenFlag"}, "timeDelta": 200},
  {"type": "stop", "data": {"message": "IDE.stop"}, "timeDelta": 100}
]`

// newRoot builds a fresh root with the given subcommand and resets shared
// flag state.
func newRoot(sub *cobra.Command) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cfg = config.Defaults()
	verboseFlag = false
	storeKindFlag, storePathFlag = "", ""

	root := &cobra.Command{
		Use:           "block-replay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "")
	root.AddCommand(sub)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root, stdout, stderr
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestSessionName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/tmp/x/1700000000000-logs.json", want: "1700000000000"},
		{path: "demo.json", want: "demo"},
		{path: "noext", want: "noext"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionName(tt.path))
		})
	}
}

func TestInspect_ListsAndFilters(t *testing.T) {
	inspectTypeFlag = nil
	sub := &cobra.Command{Use: "inspect <log>", Args: cobra.ExactArgs(1), RunE: runInspect}
	sub.Flags().StringSliceVar(&inspectTypeFlag, "type", nil, "")
	root, stdout, _ := newRoot(sub)

	path := writeFile(t, t.TempDir(), "1700000000000-logs.json", sampleLog)
	root.SetArgs([]string{"inspect", "--type", "run", "--type", "s*", path})
	require.NoError(t, root.Execute())

	out := stdout.String()
	assert.Contains(t, out, "IDE.greenFlag")
	assert.Contains(t, out, "setBlockScale")
	assert.Contains(t, out, "500ms")
	assert.NotContains(t, out, "changeCategory")
	assert.Contains(t, out, "3 of 5 records")
}

func TestInspect_BadPattern(t *testing.T) {
	inspectTypeFlag = nil
	sub := &cobra.Command{Use: "inspect <log>", Args: cobra.ExactArgs(1), RunE: runInspect}
	sub.Flags().StringSliceVar(&inspectTypeFlag, "type", nil, "")
	root, _, _ := newRoot(sub)

	path := writeFile(t, t.TempDir(), "a-logs.json", sampleLog)
	root.SetArgs([]string{"inspect", "--type", "re:(", path})
	assert.Error(t, root.Execute())
}

func makeValidateRoot() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	validateFormatFlag = "text"
	sub := &cobra.Command{Use: "validate <log>...", Args: cobra.MinimumNArgs(1), RunE: runValidate}
	sub.Flags().StringVar(&validateFormatFlag, "format", "text", "")
	return newRoot(sub)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "ok-logs.json", sampleLog)
	unknownType := writeFile(t, dir, "type-logs.json", `[{"type": "teleport", "data": {}}]`)
	unknownObj := writeFile(t, dir, "obj-logs.json",
		`[{"type": "blockDrop", "data": {"block": {"objType": "Gadget", "inner": [{"objType": "Widget"}]}}}]`)
	badJSON := writeFile(t, dir, "bad-logs.json", `{"type": "run"}`)

	tests := []struct {
		name    string
		file    string
		wantErr []string
	}{
		{name: "valid", file: valid},
		{name: "unknown record type", file: unknownType, wantErr: []string{`unknown record type "teleport"`}},
		{name: "unknown objType", file: unknownObj, wantErr: []string{`unknown objType "Gadget"`, `unknown objType "Widget"`}},
		{name: "bad JSON", file: badJSON, wantErr: []string{"invalid log JSON"}},
		{name: "missing file", file: filepath.Join(dir, "nope.json"), wantErr: []string{"failed to open log file"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validateFile(tt.file, record.DefaultRegistry())
			if len(tt.wantErr) == 0 {
				assert.True(t, r.Valid, "errors: %v", r.Errors)
				assert.Empty(t, r.Errors)
				return
			}
			assert.False(t, r.Valid)
			joined := strings.Join(r.Errors, "\n")
			for _, want := range tt.wantErr {
				assert.Contains(t, joined, want)
			}
		})
	}
}

func TestValidate_Command(t *testing.T) {
	t.Setenv("BLOCK_REPLAY_COLOR", "0")
	dir := t.TempDir()
	valid := writeFile(t, dir, "ok-logs.json", sampleLog)
	invalid := writeFile(t, dir, "bad-logs.json", `[{"type": "teleport"}]`)

	root, _, stderr := makeValidateRoot()
	root.SetArgs([]string{"validate", valid})
	require.NoError(t, root.Execute())
	assert.Contains(t, stderr.String(), "✓ "+valid+": valid")

	root, _, stderr = makeValidateRoot()
	root.SetArgs([]string{"validate", valid, invalid})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 file(s) invalid")
	assert.Contains(t, stderr.String(), "Result: 1/2 files valid")

	root, stdout, _ := makeValidateRoot()
	root.SetArgs([]string{"validate", "--format", "json", valid})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), `"valid": true`)

	root, _, _ = makeValidateRoot()
	root.SetArgs([]string{"validate", "--format", "xml", valid})
	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func makeDryrunRoot() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	dryrunSpeedFlag, dryrunFastFlag = 0, false
	sub := &cobra.Command{Use: "dryrun <log>", Args: cobra.ExactArgs(1), RunE: runDryrun}
	sub.Flags().Float64Var(&dryrunSpeedFlag, "speed", 0, "")
	sub.Flags().BoolVar(&dryrunFastFlag, "fast", false, "")
	return newRoot(sub)
}

func TestDryrun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "1700000000000-logs.json", sampleLog)

	root, stdout, _ := makeDryrunRoot()
	root.SetArgs([]string{"dryrun", "--speed", "2", path})
	require.NoError(t, root.Execute())
	out := stdout.String()
	assert.Contains(t, out, "Session: 1700000000000")
	assert.Contains(t, out, "Duration: 255ms")
	assert.Contains(t, out, "All record types have handlers")

	root, stdout, _ = makeDryrunRoot()
	root.SetArgs([]string{"dryrun", "--fast", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "Duration: 5ms")
	assert.Contains(t, stdout.String(), "Fast mode: at most 1.505s if every step times out")

	unknown := writeFile(t, dir, "u-logs.json", `[{"type": "teleport", "data": {}}]`)
	root, stdout, _ = makeDryrunRoot()
	root.SetArgs([]string{"dryrun", unknown})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 unknown record type(s)")
	assert.Contains(t, stdout.String(), "teleport (?)")
}

func TestDryrun_UsesReplayConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "1700000000000-logs.json", sampleLog)
	tests := []struct {
		name string
		edit func(c *config.Config)
		args []string
		want []string
	}{
		{
			name: "tick",
			edit: func(c *config.Config) { c.Replay.Tick = 10 * time.Millisecond },
			want: []string{"Duration: 550ms"},
		},
		{
			name: "speed",
			edit: func(c *config.Config) { c.Replay.Speed = 5 },
			want: []string{"Duration: 105ms"},
		},
		{
			name: "speed flag wins",
			edit: func(c *config.Config) { c.Replay.Speed = 5 },
			args: []string{"--speed", "2"},
			want: []string{"Duration: 255ms"},
		},
		{
			name: "fast with poll interval and timeout",
			edit: func(c *config.Config) {
				c.Replay.Fast = true
				c.Replay.PollInterval = 10 * time.Millisecond
				c.Replay.StepTimeout = 90 * time.Millisecond
			},
			want: []string{"Duration: 5ms", "at most 500ms"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, stdout, _ := makeDryrunRoot()
			tt.edit(cfg)
			root.SetArgs(append(append([]string{"dryrun"}, tt.args...), path))
			require.NoError(t, root.Execute())
			for _, w := range tt.want {
				assert.Contains(t, stdout.String(), w)
			}
		})
	}
}

func storeCmd(use string, run func(*cobra.Command, []string) error, args cobra.PositionalArgs) *cobra.Command {
	c := &cobra.Command{Use: use, Args: args, RunE: run}
	addStoreFlags(c)
	return c
}

func TestImportExportListClean(t *testing.T) {
	for _, kind := range []string{config.StoreFile, config.StoreSQLite} {
		t.Run(kind, func(t *testing.T) {
			src := t.TempDir()
			logPath := writeFile(t, src, "1700000000000-logs.json", sampleLog)
			writeFile(t, src, "1700000000000-start.xml", "<project/>")

			target := filepath.Join(t.TempDir(), "sessions")
			if kind == config.StoreSQLite {
				target = filepath.Join(t.TempDir(), "sessions.db")
			} else {
				require.NoError(t, os.MkdirAll(target, 0750))
			}
			storeArgs := []string{"--store", kind, "--path", target}

			importNameFlag, importSnapshotFlag = "", ""
			imp := storeCmd("import <log>", runImport, cobra.ExactArgs(1))
			imp.Flags().StringVar(&importNameFlag, "name", "", "")
			imp.Flags().StringVar(&importSnapshotFlag, "snapshot", "", "")
			root, stdout, _ := newRoot(imp)
			root.SetArgs(append([]string{"import", logPath}, storeArgs...))
			require.NoError(t, root.Execute())
			assert.Contains(t, stdout.String(), "imported 1700000000000 (5 records)")

			root, stdout, _ = newRoot(storeCmd("list", runList, cobra.NoArgs))
			root.SetArgs(append([]string{"list"}, storeArgs...))
			require.NoError(t, root.Execute())
			assert.Equal(t, "1700000000000\n", stdout.String())

			exportSessionFlag, exportOutFlag, exportFormatFlag = "", "", "json"
			exp := storeCmd("export", runExport, cobra.NoArgs)
			exp.Flags().StringVar(&exportSessionFlag, "session", "", "")
			exp.Flags().StringVar(&exportFormatFlag, "format", "json", "")
			exp.Flags().StringVarP(&exportOutFlag, "out", "o", "", "")
			root, stdout, _ = newRoot(exp)
			root.SetArgs(append([]string{"export", "--session", "1700000000000", "--format", "yaml"}, storeArgs...))
			require.NoError(t, root.Execute())
			assert.Contains(t, stdout.String(), "type: changeCategory")
			assert.Contains(t, stdout.String(), "timeDelta: 120")

			root, stdout, _ = newRoot(exp)
			root.SetArgs(append([]string{"export", "--format", "json"}, storeArgs...))
			exportSessionFlag = ""
			require.NoError(t, root.Execute())
			assert.Contains(t, stdout.String(), `"type": "setBlockScale"`)

			root, stdout, _ = newRoot(storeCmd("clean", runClean, cobra.NoArgs))
			root.SetArgs(append([]string{"clean"}, storeArgs...))
			require.NoError(t, root.Execute())
			assert.Contains(t, stdout.String(), "playback cache cleared")

			root, _, _ = newRoot(exp)
			root.SetArgs(append([]string{"export"}, storeArgs...))
			exportSessionFlag = ""
			err := root.Execute()
			require.Error(t, err)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestImport_ExplicitSnapshotMissing(t *testing.T) {
	src := t.TempDir()
	logPath := writeFile(t, src, "demo.json", sampleLog)

	importNameFlag, importSnapshotFlag = "", ""
	imp := storeCmd("import <log>", runImport, cobra.ExactArgs(1))
	imp.Flags().StringVar(&importNameFlag, "name", "", "")
	imp.Flags().StringVar(&importSnapshotFlag, "snapshot", "", "")
	root, _, _ := newRoot(imp)
	root.SetArgs([]string{"import", "--path", t.TempDir(), "--snapshot", filepath.Join(src, "nope.xml"), logPath})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read snapshot")
}

func TestImport_WarnsWithoutSnapshot(t *testing.T) {
	logPath := writeFile(t, t.TempDir(), "1700000000000-logs.json", sampleLog)
	target := t.TempDir()

	importNameFlag, importSnapshotFlag = "", ""
	imp := storeCmd("import <log>", runImport, cobra.ExactArgs(1))
	imp.Flags().StringVar(&importNameFlag, "name", "", "")
	imp.Flags().StringVar(&importSnapshotFlag, "snapshot", "", "")
	root, stdout, stderr := newRoot(imp)
	root.SetArgs([]string{"import", "--path", target, logPath})
	require.NoError(t, root.Execute())

	assert.Contains(t, stderr.String(), "block-replay: warning: no snapshot found at")
	assert.Contains(t, stdout.String(), "imported 1700000000000")

	saved, err := store.NewFileStore(target).Load(context.Background(), "1700000000000")
	require.NoError(t, err)
	assert.Empty(t, saved.Snapshot)
}

func TestOpenStore_InvalidKind(t *testing.T) {
	cfg = config.Defaults()
	storeKindFlag, storePathFlag = "s3", "x"
	defer func() { storeKindFlag, storePathFlag = "", "" }()
	_, _, err := openStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid store "s3"`)
}

func makeReportRoot() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	reportFormatFlag, reportLogFlag = "text", ""
	sub := &cobra.Command{Use: "report <report.json>", Args: cobra.ExactArgs(1), RunE: runReport}
	sub.Flags().StringVar(&reportFormatFlag, "format", "text", "")
	sub.Flags().StringVar(&reportLogFlag, "log", "", "")
	return newRoot(sub)
}

func writeReport(t *testing.T, r *report.Report) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, report.FormatJSON(&buf, r))
	return writeFile(t, t.TempDir(), "replay-report.json", buf.String())
}

func TestReport(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := report.New("1700000000000", false, started)
	ok.Add(report.Step{Index: 0, Type: "setBlockScale", Outcome: report.Applied})
	ok.Add(report.Step{Index: 1, Type: "changeCategory", Outcome: report.Skipped, Reason: "already selected"})
	okPath := writeReport(t, ok)

	bad := report.New("1700000000001", true, started)
	bad.Add(report.Step{Index: 0, Type: "teleport", Outcome: report.Unknown})
	badPath := writeReport(t, bad)

	root, stdout, _ := makeReportRoot()
	root.SetArgs([]string{"report", okPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "already selected")
	assert.Contains(t, stdout.String(), "(ok)")

	root, stdout, _ = makeReportRoot()
	root.SetArgs([]string{"report", "--format", "junit", "--log", "x-logs.json", okPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), `classname="x-logs.json"`)

	root, _, _ = makeReportRoot()
	root.SetArgs([]string{"report", "--format", "json", badPath})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay failed")

	root, _, _ = makeReportRoot()
	root.SetArgs([]string{"report", "--format", "csv", okPath})
	assert.Error(t, root.Execute())
}

func TestResolveColor(t *testing.T) {
	t.Setenv("BLOCK_REPLAY_COLOR", "on")
	assert.True(t, resolveColor())
	assert.Equal(t, ansiRed+"x"+ansiReset, paint(true, ansiRed, "x"))

	t.Setenv("BLOCK_REPLAY_COLOR", "off")
	assert.False(t, resolveColor())
	assert.Equal(t, "x", paint(false, ansiRed, "x"))

	t.Setenv("BLOCK_REPLAY_COLOR", "")
	t.Setenv("NO_COLOR", "1")
	assert.False(t, resolveColor())
}

func TestSetup(t *testing.T) {
	defer func() { configFlag, verboseFlag, cfg = "", false, config.Defaults() }()
	dir := t.TempDir()
	c := &cobra.Command{}
	c.SetErr(new(bytes.Buffer))

	configFlag = writeFile(t, dir, "ok.yaml", "replay:\n  speed: 2\n")
	require.NoError(t, setup(c, nil))
	assert.Equal(t, 2.0, cfg.Replay.Speed)

	configFlag = writeFile(t, dir, "bad.yaml", "replay:\n  sped: 2\n")
	assert.Error(t, setup(c, nil))
}

func TestRootHelpExamplesUseRealFlags(t *testing.T) {
	for _, line := range strings.Split(rootCmd.Long, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "block-replay" || strings.HasPrefix(fields[1], "-") {
			continue
		}
		sub, _, err := rootCmd.Find(fields[1:2])
		require.NoError(t, err, line)
		require.NotEqual(t, rootCmd, sub, "unknown command in %q", line)
		for _, f := range fields[2:] {
			name, ok := strings.CutPrefix(f, "--")
			if !ok {
				continue
			}
			name, _, _ = strings.Cut(name, "=")
			assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s in %q", name, line)
		}
	}
}
