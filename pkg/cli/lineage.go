package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ray-0411/vtuber-data-analyze/pkg/lineage"
)

var lineageFlags struct {
	dst string
	gc  float64
}

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Show the stages that produced a snapshot",
	Long: "With --dst, walks back from that snapshot to its raw input. Without it, lists every recorded run.\n" +
		"With --gc, rewrites value log files whose stale share exceeds the given ratio first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		if s.lineage == nil {
			return errors.New("lineage is disabled: set --lineage-dir or VTANA_LINEAGE_DIR")
		}

		w := cmd.OutOrStdout()
		if cmd.Flags().Changed("gc") {
			n, err := s.lineage.RunGC(lineageFlags.gc)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "garbage collection rewrote %d value log files\n", n)
		}

		ctx := contextOf(cmd)
		var runs []lineage.Run
		if lineageFlags.dst != "" {
			runs, err = s.lineage.Chain(ctx, lineageFlags.dst)
		} else {
			runs, err = s.lineage.List(ctx)
		}
		if err != nil {
			return err
		}

		printHeader(w, "Lineage")
		if len(runs) == 0 {
			fmt.Fprintln(w, "no recorded runs")
			return nil
		}
		for i := range runs {
			printRun(w, &runs[i])
			fmt.Fprintf(w, "    %-22s %s\n", "digest", runs[i].DestinationDigest)
		}
		return nil
	},
}

func init() {
	lineageCmd.Flags().StringVar(&lineageFlags.dst, "dst", "", "snapshot whose history to show")
	lineageCmd.Flags().Float64Var(&lineageFlags.gc, "gc", 0.5, "discard ratio for value log garbage collection")
}
