package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/export"
	"github.com/ray-0411/vtuber-data-analyze/pkg/fixture"
	"github.com/ray-0411/vtuber-data-analyze/pkg/logging"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage/sqlite"
)

// output returns the file named by path, or stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

var exportFlags struct {
	src      string
	table    string
	format   string
	circular bool
	out      string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a finished table as JSON or CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := sqlite.Open(exportFlags.src, sqlite.Options{Driver: cfg.Driver})
		if err != nil {
			return err
		}
		defer store.Close()

		w, closeOut, err := output(cmd, exportFlags.out)
		if err != nil {
			return err
		}
		_, err = export.NewExporter(store).Export(contextOf(cmd), w, export.ExportOptions{
			Table:    exportFlags.table,
			Format:   exportFlags.format,
			Circular: exportFlags.circular,
		})
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	},
}

var dumpFlags struct {
	src string
	out string
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the streamer and main rows of a snapshot as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := sqlite.Open(dumpFlags.src, sqlite.Options{Driver: cfg.Driver})
		if err != nil {
			return err
		}
		defer store.Close()

		w, closeOut, err := output(cmd, dumpFlags.out)
		if err != nil {
			return err
		}
		_, err = export.DumpToJSON(contextOf(cmd), w, store)
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	},
}

var importFlags struct {
	dst string
}

var importCmd = &cobra.Command{
	Use:   "import <dump.json>",
	Short: "Create a raw snapshot from a JSON dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open dump: %w", err)
		}
		defer in.Close()

		store, err := createSnapshot(importFlags.dst, cfg)
		if err != nil {
			return err
		}
		res, err := export.NewImporter(store).ImportFromJSON(contextOf(cmd), in)
		if cerr := store.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(importFlags.dst)
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s streamers, %s observations (%s) into %s\n",
			color.GreenString("✓ imported"),
			logging.Count(res.EntitiesImported), logging.Count(res.ObservationsImported),
			res.DateRange, importFlags.dst)
		for _, msg := range res.Errors {
			fmt.Fprintln(w, color.YellowString("  skipped %s", msg))
		}
		return nil
	},
}

// createSnapshot creates an empty raw snapshot, replacing an existing file
// only when forced.
func createSnapshot(path string, cfg config.Config) (*sqlite.Storage, error) {
	if cfg.Force {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return sqlite.Create(path, sqlite.Options{Driver: cfg.Driver})
}

var demoFlags struct {
	dst      string
	channels int
	days     int
	seed     int64
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Create a synthetic raw snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := fixture.DefaultOptions()
		opts.Channels = demoFlags.channels
		opts.Days = demoFlags.days
		opts.Seed = demoFlags.seed
		entities, obs := fixture.Generate(opts)

		store, err := createSnapshot(demoFlags.dst, cfg)
		if err != nil {
			return err
		}
		err = store.Seed(contextOf(cmd), entities, obs)
		if cerr := store.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(demoFlags.dst)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s streamers, %s observations into %s\n",
			color.GreenString("✓ generated"), logging.Count(len(entities)), logging.Count(len(obs)), demoFlags.dst)
		return nil
	},
}

func init() {
	fl := exportCmd.Flags()
	fl.StringVar(&exportFlags.src, "src", "", "snapshot to read")
	fl.StringVar(&exportFlags.table, "table", export.TableGlobal, fmt.Sprintf("table to export %v", export.Tables))
	fl.StringVar(&exportFlags.format, "format", "json", "json or csv")
	fl.BoolVar(&exportFlags.circular, "circular", false, "order slots on a day starting at "+config.CircularAxis)
	fl.StringVarP(&exportFlags.out, "out", "o", "", "output file (default stdout)")
	exportCmd.MarkFlagRequired("src")

	fl = dumpCmd.Flags()
	fl.StringVar(&dumpFlags.src, "src", "", "snapshot to read")
	fl.StringVarP(&dumpFlags.out, "out", "o", "", "output file (default stdout)")
	dumpCmd.MarkFlagRequired("src")

	importCmd.Flags().StringVar(&importFlags.dst, "dst", "", "raw snapshot to create")
	importCmd.MarkFlagRequired("dst")

	fl = demoCmd.Flags()
	def := fixture.DefaultOptions()
	fl.StringVar(&demoFlags.dst, "dst", "", "raw snapshot to create")
	fl.IntVar(&demoFlags.channels, "channels", def.Channels, "number of streamers")
	fl.IntVar(&demoFlags.days, "days", def.Days, "days of data")
	fl.Int64Var(&demoFlags.seed, "seed", def.Seed, "random seed")
	demoCmd.MarkFlagRequired("dst")
}
