// Package cli wires the pipeline stages into the vtana command.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/lineage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/logging"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stage"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/ray-0411/vtuber-data-analyze/pkg/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"        _\n" +
		" __   _| |_ __ _ _ __   __ _\n" +
		" \\ \\ / / __/ _` | '_ \\ / _` |\n" +
		"  \\ V /| || (_| | | | | (_| |\n" +
		"   \\_/  \\__\\__,_|_| |_|\\__,_|\n"
)

// global flags
var (
	flagLogLevel   string
	flagForce      bool
	flagDriver     string
	flagLineageDir string
	flagDataDir    string
)

var rootCmd = &cobra.Command{
	Use:           "vtana",
	Short:         "vtana - streamer viewer-count analysis pipeline",
	Long:          color.CyanString(logo) + "\nCleans scraped YouTube and Twitch viewer counts and derives per-channel and global statistics.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// ExecuteContext runs the root command; stages stop when ctx is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&flagForce, "force", false, "overwrite existing destination snapshots")
	pf.StringVar(&flagDriver, "driver", "", "sqlite driver: sqlite (pure Go) or sqlite3 (cgo)")
	pf.StringVar(&flagLineageDir, "lineage-dir", "", "directory of the lineage store (empty disables lineage)")
	pf.StringVar(&flagDataDir, "data-dir", "", "directory for chained snapshots")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(lineageCmd)
	for _, st := range stage.All() {
		rootCmd.AddCommand(stageCommand(st))
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "vtana %s\n", version)
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List pipeline stages",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		printHeader(w, "Stages")
		for _, st := range stage.All() {
			fmt.Fprintf(w, "  %-13s %s\n", st.Name, st.Description)
		}
		fmt.Fprintf(w, "\nrun order: %v\n", stage.Canonical)
	},
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, color.CyanString(title))
	fmt.Fprintln(w, "─────────────────────")
}

// loadConfig reads VTANA_* and applies flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("force") {
		cfg.Force = flagForce
	}
	if flags.Changed("driver") {
		cfg.Driver = flagDriver
	}
	if flags.Changed("lineage-dir") {
		cfg.LineageDir = flagLineageDir
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	return cfg, nil
}

// session bundles what a command needs to run stages.
type session struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	lineage *lineage.Store
}

func (s *session) Close() {
	s.log.Sync()
	if s.lineage != nil {
		s.lineage.Close()
	}
}

func (s *session) runner() *stage.Runner {
	return stage.NewRunner(s.cfg, s.log, s.lineage)
}

// open loads configuration, applies overrides, builds the logger and opens
// the lineage store when configured. A store that fails to open is logged
// and left disabled.
func open(cmd *cobra.Command, override func(*config.Config) error) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if override != nil {
		if err := override(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, log: log}
	if cfg.LineageDir != "" {
		store, err := lineage.Open(lineage.Config{Path: cfg.LineageDir})
		if err != nil {
			log.Warnw("lineage disabled", "dir", cfg.LineageDir, "error", err)
		} else {
			s.lineage = store
		}
	}
	return s, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
