package stage

import (
	"context"
	"fmt"

	"github.com/ray-0411/vtuber-data-analyze/pkg/cleaning"
	"github.com/ray-0411/vtuber-data-analyze/pkg/concurrency"
	"github.com/ray-0411/vtuber-data-analyze/pkg/discretize"
	"github.com/ray-0411/vtuber-data-analyze/pkg/logging"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/profile"
	"github.com/ray-0411/vtuber-data-analyze/pkg/session"
	"github.com/ray-0411/vtuber-data-analyze/pkg/stats"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/trim"
)

func init() {
	register(Stage{Name: "filter", Description: "drop rows with no session or an audience below the floor", Run: runFilter})
	register(Stage{Name: "discretize", Description: "snap times to 15-minute slots and average each slot", Run: runDiscretize})
	register(Stage{Name: "dedup", Description: "drop exact duplicate rows, keeping the lowest id", Run: runDedup})
	register(Stage{Name: "stats", Description: "rebuild per-channel statistics", Run: runStats})
	register(Stage{Name: "trim", Description: "remove outliers and rebuild statistics", Run: runTrim})
	register(Stage{Name: "cohort", Description: "keep one group of streamers", Run: runCohort})
	register(Stage{Name: "profile", Description: "build per-platform time profiles", Run: runProfile})
	register(Stage{Name: "global", Description: "aggregate time profiles across channels", Run: runGlobal})
	register(Stage{Name: "concurrency", Description: "measure performance against concurrent live streams", Run: runConcurrency})
	register(Stage{Name: "distribution", Description: "count days at each concurrency level per slot", Run: runDistribution})
	register(Stage{Name: "sessions", Description: "summarize individual broadcasts", Run: runSessions})
}

func runFilter(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	obs, err := store.Observations(ctx)
	if err != nil {
		return nil, err
	}
	res := cleaning.Filter(obs, int64(env.Config.ViewerFloor))
	removed, err := store.DeleteObservations(ctx, res.IDs())
	if err != nil {
		return nil, fmt.Errorf("failed to delete filtered rows: %w", err)
	}
	return Counters{
		"no_session":  int64(len(res.NoSession)),
		"below_floor": int64(len(res.BelowFloor)),
		"removed":     removed,
	}, nil
}

func runDiscretize(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	obs, err := store.Observations(ctx)
	if err != nil {
		return nil, err
	}
	res, err := discretize.Apply(obs, func(done, total int) {
		env.Log.Infof("discretized %s / %s rows", logging.Count(done), logging.Count(total))
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to build indexes: %w", err)
	}
	if err := store.RewriteObservations(ctx, res.Changed); err != nil {
		return nil, fmt.Errorf("failed to rewrite rows: %w", err)
	}
	return Counters{
		"rows":      int64(res.Total),
		"rewritten": int64(len(res.Changed)),
		"yt_groups": int64(res.Groups[model.YouTube]),
		"tw_groups": int64(res.Groups[model.Twitch]),
		"yt_merged": int64(res.Merged[model.YouTube]),
		"tw_merged": int64(res.Merged[model.Twitch]),

		"yt_max_spread": res.MaxSpread[model.YouTube],
		"tw_max_spread": res.MaxSpread[model.Twitch],
	}, nil
}

func runDedup(ctx context.Context, store storage.Storage, _ Env) (Counters, error) {
	obs, err := store.Observations(ctx)
	if err != nil {
		return nil, err
	}
	removed, err := store.DeleteObservations(ctx, cleaning.Dedup(obs))
	if err != nil {
		return nil, fmt.Errorf("failed to delete duplicates: %w", err)
	}
	return Counters{"removed": removed}, nil
}

func load(ctx context.Context, store storage.Storage) ([]model.Entity, []model.Observation, error) {
	entities, err := store.Entities(ctx)
	if err != nil {
		return nil, nil, err
	}
	obs, err := store.Observations(ctx)
	if err != nil {
		return nil, nil, err
	}
	return entities, obs, nil
}

func runStats(ctx context.Context, store storage.Storage, _ Env) (Counters, error) {
	entities, obs, err := load(ctx, store)
	if err != nil {
		return nil, err
	}
	rows := stats.Recompute(entities, obs)
	if err := store.ReplaceStatistics(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to write statistics: %w", err)
	}
	return Counters{"channels": int64(len(rows))}, nil
}

func runTrim(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	cfg := env.Config
	policy, err := trim.ParsePolicy(cfg.TrimPolicy, trim.Thresholds{
		Symmetric: cfg.SymmetricK,
		Lower:     cfg.LowerK,
		YouTube:   cfg.YouTubeK,
		Twitch:    cfg.TwitchK,
	})
	if err != nil {
		return nil, err
	}

	entities, obs, err := load(ctx, store)
	if err != nil {
		return nil, err
	}
	res := trim.Iterate(entities, obs, policy, cfg.TrimPasses)
	for i, pass := range res.Passes {
		env.Log.Infow("trim pass",
			"pass", i+1,
			"policy", res.Policy,
			"youtube", pass[model.YouTube],
			"twitch", pass[model.Twitch])
	}

	if _, err := store.DeleteObservations(ctx, res.RemovedIDs); err != nil {
		return nil, fmt.Errorf("failed to delete outliers: %w", err)
	}
	if err := store.ReplaceStatistics(ctx, res.Statistics); err != nil {
		return nil, fmt.Errorf("failed to write statistics: %w", err)
	}
	return Counters{
		"yt_removed": int64(res.Removed[model.YouTube]),
		"tw_removed": int64(res.Removed[model.Twitch]),
		"removed":    int64(res.Total()),
		"passes":     int64(len(res.Passes)),
	}, nil
}

func runCohort(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	group := env.Param(ParamGroup)
	if group == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, ParamGroup)
	}
	entities, obs, err := load(ctx, store)
	if err != nil {
		return nil, err
	}

	res := cleaning.Cohort(entities, obs, group)
	removed, err := store.DeleteObservations(ctx, res.ObservationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to delete rows outside %q: %w", group, err)
	}
	if err := store.DeleteEntities(ctx, res.EntityIDs); err != nil {
		return nil, fmt.Errorf("failed to delete streamers outside %q: %w", group, err)
	}

	entities, obs, err = load(ctx, store)
	if err != nil {
		return nil, err
	}
	if err := store.ReplaceStatistics(ctx, stats.Recompute(entities, obs)); err != nil {
		return nil, fmt.Errorf("failed to write statistics: %w", err)
	}
	return Counters{
		"entities_removed":     int64(len(res.EntityIDs)),
		"observations_removed": removed,
		"channels":             int64(len(res.Channels)),
	}, nil
}

// statistics reads channel statistics and refuses an empty table when the
// snapshot has streamers.
func statistics(ctx context.Context, store storage.Storage, entities []model.Entity) ([]model.ChannelStatistics, error) {
	rows, err := store.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && len(entities) > 0 {
		return nil, ErrNoStatistics
	}
	return rows, nil
}

func runProfile(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	strategy, err := profile.ParseStrategy(env.Config.DiffMethod)
	if err != nil {
		return nil, err
	}
	entities, obs, err := load(ctx, store)
	if err != nil {
		return nil, err
	}
	st, err := statistics(ctx, store, entities)
	if err != nil {
		return nil, err
	}

	counters := Counters{}
	for _, p := range model.Platforms {
		rows := profile.Build(p, st, obs, strategy)
		if err := store.ReplaceTimeProfiles(ctx, p, rows); err != nil {
			return nil, fmt.Errorf("failed to write %s profile: %w", p, err)
		}
		counters[p.Prefix()+"_rows"] = int64(len(rows))
	}
	return counters, nil
}

func runGlobal(ctx context.Context, store storage.Storage, _ Env) (Counters, error) {
	yt, err := store.TimeProfiles(ctx, model.YouTube)
	if err != nil {
		return nil, err
	}
	tw, err := store.TimeProfiles(ctx, model.Twitch)
	if err != nil {
		return nil, err
	}
	rows, err := profile.Global(yt, tw)
	if err != nil {
		return nil, err
	}
	if err := store.ReplaceGlobalProfile(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to write global profile: %w", err)
	}
	return Counters{"slots": int64(len(rows))}, nil
}

func runConcurrency(ctx context.Context, store storage.Storage, _ Env) (Counters, error) {
	entities, obs, err := load(ctx, store)
	if err != nil {
		return nil, err
	}
	st, err := statistics(ctx, store, entities)
	if err != nil {
		return nil, err
	}

	records := concurrency.Records(st, obs)
	effects := concurrency.Effects(records)
	if err := store.ReplaceConcurrency(ctx, records, effects); err != nil {
		return nil, fmt.Errorf("failed to write concurrency: %w", err)
	}
	return Counters{"records": int64(len(records)), "levels": int64(len(effects))}, nil
}

func runDistribution(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	records, err := store.ConcurrencyRecords(ctx)
	if err != nil {
		return nil, err
	}

	var w concurrency.Window
	from, to := env.Param(ParamFrom), env.Param(ParamTo)
	switch {
	case from != "" || to != "":
		if from == "" || to == "" {
			return nil, fmt.Errorf("%w: both %s and %s are required", ErrMissingParam, ParamFrom, ParamTo)
		}
		if w, err = concurrency.ParseWindow(from, to); err != nil {
			return nil, err
		}
	default:
		var ok bool
		if w, ok = concurrency.DefaultWindow(records); !ok {
			env.Log.Warn("no concurrency records; writing an empty distribution")
		}
	}

	rows, err := concurrency.Distribution(records, w)
	if err != nil {
		return nil, err
	}
	if err := store.ReplaceDistribution(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to write distribution: %w", err)
	}
	return Counters{"slots": int64(len(rows)), "days": int64(w.Days())}, nil
}

func runSessions(ctx context.Context, store storage.Storage, env Env) (Counters, error) {
	obs, err := store.Observations(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := session.SummarizeAll(obs, func(done, total int) {
		env.Log.Debugf("summarized %s / %s sessions", logging.Count(done), logging.Count(total))
	})
	if err != nil {
		return nil, err
	}
	if err := store.ReplaceSessions(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to write sessions: %w", err)
	}
	counters := Counters{"sessions": int64(len(rows))}
	for _, r := range rows {
		counters[r.Platform.Prefix()+"_sessions"]++
		counters["missing_points"] += int64(r.MissingPoints)
	}
	return counters, nil
}
