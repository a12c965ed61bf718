package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/lineage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/logging"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stage"
)

// stageFlags holds the per-stage options. Each stage command registers only
// the flags it reads.
type stageFlags struct {
	src, dst string
	floor    int
	policy   string
	k        float64
	ytK, twK float64
	passes   int
	diff     string
	group    string
	from, to string
}

func (f *stageFlags) register(cmd *cobra.Command, name string) {
	fl := cmd.Flags()
	fl.StringVar(&f.src, "src", "", "source snapshot")
	fl.StringVar(&f.dst, "dst", "", "destination snapshot")
	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("dst")

	switch name {
	case "filter":
		fl.IntVar(&f.floor, "floor", config.ViewerFloor, "minimum audience on at least one platform")
	case "trim":
		fl.StringVar(&f.policy, "policy", "", "log-sigma, log-sigma-lower or linear-sigma")
		fl.Float64Var(&f.k, "k", 0, "threshold for the log-sigma policies")
		fl.Float64Var(&f.ytK, "yt-k", 0, "YouTube threshold for linear-sigma")
		fl.Float64Var(&f.twK, "tw-k", 0, "Twitch threshold for linear-sigma")
		fl.IntVar(&f.passes, "passes", 0, "maximum trimming passes")
	case "profile":
		fl.StringVar(&f.diff, "diff", "", "arithmetic or geometric")
	case "cohort":
		fl.StringVar(&f.group, "group", "", "streamer group to keep")
		cmd.MarkFlagRequired("group")
	case "distribution":
		fl.StringVar(&f.from, "from", "", "window start, YYYY-MM-DD [HH:MM]")
		fl.StringVar(&f.to, "to", "", "window end (exclusive)")
	}
}

// apply copies flags the user set into cfg.
func (f *stageFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	if fl.Changed("floor") {
		cfg.ViewerFloor = f.floor
	}
	if fl.Changed("policy") {
		cfg.TrimPolicy = f.policy
	}
	if fl.Changed("k") {
		switch cfg.TrimPolicy {
		case "log-sigma-lower", "lower":
			cfg.LowerK = f.k
		case "linear-sigma", "linear":
			return errors.New("--k does not apply to linear-sigma: set --yt-k and --tw-k")
		default:
			cfg.SymmetricK = f.k
		}
	}
	if fl.Changed("yt-k") {
		cfg.YouTubeK = f.ytK
	}
	if fl.Changed("tw-k") {
		cfg.TwitchK = f.twK
	}
	if fl.Changed("passes") {
		cfg.TrimPasses = f.passes
	}
	if fl.Changed("diff") {
		cfg.DiffMethod = f.diff
	}
	return nil
}

func (f *stageFlags) params() map[string]string {
	p := map[string]string{}
	if f.group != "" {
		p[stage.ParamGroup] = f.group
	}
	if f.from != "" {
		p[stage.ParamFrom] = f.from
	}
	if f.to != "" {
		p[stage.ParamTo] = f.to
	}
	return p
}

func stageCommand(st stage.Stage) *cobra.Command {
	f := &stageFlags{}
	cmd := &cobra.Command{
		Use:   st.Name,
		Short: st.Description,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, func(cfg *config.Config) error { return f.apply(cmd, cfg) })
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.runner().Run(contextOf(cmd), st.Name, f.src, f.dst, f.params())
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	f.register(cmd, st.Name)
	return cmd
}

func printRun(w io.Writer, run *lineage.Run) {
	fmt.Fprintf(w, "%s %s -> %s (%s, %s bytes)\n",
		color.GreenString("✓ "+run.Stage), run.Source, run.Destination,
		run.Duration().Round(time.Millisecond), logging.Count(run.DestinationBytes))

	keys := make([]string, 0, len(run.Counters))
	for k := range run.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-22s %s\n", k, logging.Count(run.Counters[k]))
	}
}
