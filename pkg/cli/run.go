package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ray-0411/vtuber-data-analyze/pkg/stage"
)

var runFlags struct {
	src    string
	stages []string
	cohort string
	from   string
	to     string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline from a raw snapshot",
	Long: "Applies every stage in order. Stage i writes <data-dir>/<NN>_<stage>.db and\n" +
		"the next stage reads it. The raw snapshot is never modified.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		names := runFlags.stages
		if len(names) == 0 {
			names = chainWithCohort(stage.Canonical, runFlags.cohort)
		}
		for _, name := range names {
			if _, err := stage.Lookup(name); err != nil {
				return err
			}
		}

		params := map[string]string{}
		if runFlags.cohort != "" {
			params[stage.ParamGroup] = runFlags.cohort
		}
		if runFlags.from != "" {
			params[stage.ParamFrom] = runFlags.from
		}
		if runFlags.to != "" {
			params[stage.ParamTo] = runFlags.to
		}

		w := cmd.OutOrStdout()
		printHeader(w, fmt.Sprintf("Pipeline: %d stages into %s", len(names), s.cfg.DataDir))
		runs, err := s.runner().RunChain(contextOf(cmd), runFlags.src, s.cfg.DataDir, names, params)
		for _, run := range runs {
			printRun(w, run)
		}
		if err != nil {
			fmt.Fprintln(w, color.RedString("✗ stopped after %d of %d stages", len(runs), len(names)))
			return err
		}
		return nil
	},
}

// chainWithCohort inserts the cohort stage after dedup when a group is set.
func chainWithCohort(chain []string, group string) []string {
	out := make([]string, 0, len(chain)+1)
	for _, name := range chain {
		out = append(out, name)
		if name == "dedup" && group != "" {
			out = append(out, "cohort")
		}
	}
	return out
}

func init() {
	fl := runCmd.Flags()
	fl.StringVar(&runFlags.src, "src", "", "raw snapshot")
	fl.StringSliceVar(&runFlags.stages, "stages", nil, "stages to run, in order (default: the full pipeline)")
	fl.StringVar(&runFlags.cohort, "cohort", "", "keep only this streamer group")
	fl.StringVar(&runFlags.from, "from", "", "distribution window start")
	fl.StringVar(&runFlags.to, "to", "", "distribution window end (exclusive)")
	runCmd.MarkFlagRequired("src")
}
