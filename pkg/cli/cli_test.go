package cli

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stage"
)

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	rootCmd.SetArgs(nil)
	return strings.TrimSpace(buf.String()), err
}

func TestVersionAndStages(t *testing.T) {
	out, err := runRootCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vtana "+version, out)

	out, err = runRootCommand(t, "stages")
	require.NoError(t, err)
	for _, st := range stage.All() {
		assert.Contains(t, out, st.Name)
	}
}

func TestEveryStageHasACommand(t *testing.T) {
	for _, st := range stage.All() {
		cmd, _, err := rootCmd.Find([]string{st.Name})
		require.NoError(t, err)
		assert.Equal(t, st.Name, cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("src"))
		assert.NotNil(t, cmd.Flags().Lookup("dst"))
	}
	trimCmd, _, _ := rootCmd.Find([]string{"trim"})
	assert.NotNil(t, trimCmd.Flags().Lookup("policy"))
	assert.Nil(t, trimCmd.Flags().Lookup("group"))
}

func TestDemoRunExportLineage(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.db")
	data := filepath.Join(dir, "chain")
	lin := filepath.Join(dir, "lineage")

	out, err := runRootCommand(t, "demo", "--dst", raw, "--channels", "3", "--days", "3", "--seed", "7")
	require.NoError(t, err, out)
	assert.Contains(t, out, "generated")

	_, err = runRootCommand(t, "demo", "--dst", raw)
	assert.Error(t, err, "an existing raw snapshot is not replaced without --force")

	out, err = runRootCommand(t, "run", "--src", raw, "--data-dir", data, "--lineage-dir", lin, "--log-level", "warn")
	require.NoError(t, err, out)
	for _, name := range stage.Canonical {
		assert.Contains(t, out, name)
	}

	last := stage.ChainPath(data, len(stage.Canonical)-1, "distribution")
	_, err = os.Stat(last)
	require.NoError(t, err)

	out, err = runRootCommand(t, "export", "--src", last, "--table", "global", "--format", "csv", "--circular")
	require.NoError(t, err, out)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, config.SlotsPerDay+1)
	assert.Equal(t, []string{"time", "diff_method"}, records[0][:2])
	assert.Equal(t, config.CircularAxis, records[1][0])

	out, err = runRootCommand(t, "lineage", "--lineage-dir", lin, "--dst", last)
	require.NoError(t, err, out)
	assert.Equal(t, len(stage.Canonical), strings.Count(out, "digest"))

	out, err = runRootCommand(t, "lineage", "--lineage-dir", lin, "--dst", last, "--gc", "0.5")
	require.NoError(t, err, out)
	assert.Contains(t, out, "garbage collection rewrote 0 value log files")

	_, err = runRootCommand(t, "lineage", "--lineage-dir", lin, "--gc", "2")
	assert.Error(t, err, "discard ratio must be below 1")
	lineageFlags.gc = 0.5
}

func TestUnusableLineageDirIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))
	t.Cleanup(func() { flagLineageDir = "" })

	raw := filepath.Join(dir, "raw.db")
	out, err := runRootCommand(t, "demo", "--dst", raw, "--channels", "2", "--days", "2")
	require.NoError(t, err, out)

	out, err = runRootCommand(t, "filter", "--src", raw, "--dst", filepath.Join(dir, "filtered.db"), "--lineage-dir", blocked)
	require.NoError(t, err, out)
	assert.Contains(t, out, "lineage disabled")
	assert.Contains(t, out, "filter")

	_, err = runRootCommand(t, "lineage", "--lineage-dir", blocked)
	assert.ErrorContains(t, err, "lineage is disabled")
}

func TestDumpAndImport(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.db")
	dump := filepath.Join(dir, "raw.json")
	restored := filepath.Join(dir, "restored.db")

	_, err := runRootCommand(t, "demo", "--dst", raw, "--channels", "2", "--days", "2", "--seed", "3")
	require.NoError(t, err)

	_, err = runRootCommand(t, "dump", "--src", raw, "-o", dump)
	require.NoError(t, err)

	out, err := runRootCommand(t, "import", "--dst", restored, dump)
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported")
	assert.NotContains(t, out, "skipped")
}

func TestStageCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := runRootCommand(t, "filter", "--src", filepath.Join(dir, "missing.db"), "--dst", filepath.Join(dir, "out.db"))
	assert.Error(t, err)

	_, err = runRootCommand(t, "filter", "--src", filepath.Join(dir, "missing.db"))
	assert.Error(t, err, "--dst is required")

	_, err = runRootCommand(t, "export", "--src", filepath.Join(dir, "missing.db"))
	assert.Error(t, err)
}

func TestChainWithCohort(t *testing.T) {
	assert.Equal(t, stage.Canonical, chainWithCohort(stage.Canonical, ""))

	chain := chainWithCohort(stage.Canonical, "A")
	require.Len(t, chain, len(stage.Canonical)+1)
	assert.Equal(t, []string{"filter", "discretize", "dedup", "cohort", "sessions", "stats"}, chain[:6])
}

func TestTrimThresholdFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg config.Config)
	}{
		{
			name: "k sets the symmetric threshold by default",
			args: []string{"--k", "1.75"},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 1.75, cfg.SymmetricK)
			},
		},
		{
			name: "k sets the lower threshold for log-sigma-lower",
			args: []string{"--policy", "log-sigma-lower", "--k", "1.5"},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 1.5, cfg.LowerK)
			},
		},
		{
			name:    "k is rejected for linear-sigma",
			args:    []string{"--policy", "linear-sigma", "--k", "2"},
			wantErr: true,
		},
		{
			name: "linear-sigma takes per-platform thresholds",
			args: []string{"--policy", "linear", "--yt-k", "3", "--tw-k", "2"},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 3.0, cfg.YouTubeK)
				assert.Equal(t, 2.0, cfg.TwitchK)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stageFlags{}
			cmd := &cobra.Command{Use: "trim"}
			f.register(cmd, "trim")
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg := config.Default()
			err := f.apply(cmd, &cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestTrimCommandRejectsKForLinearSigma(t *testing.T) {
	dir := t.TempDir()
	_, err := runRootCommand(t, "trim", "--src", filepath.Join(dir, "in.db"), "--dst", filepath.Join(dir, "out.db"),
		"--policy", "linear-sigma", "--k", "2")
	assert.ErrorContains(t, err, "--yt-k")
}
