package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

const sessionTimeLayout = "2006-01-02 15:04"

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebuild drops the named tables and views, applies schema and runs fill in
// the same transaction.
func (s *Storage) rebuild(ctx context.Context, drop []string, schema string, fill func(tx *sql.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, name := range drop {
			kind := "table"
			if name == "expected_pressure" {
				kind = "view"
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("drop %s if exists %s", kind, name)); err != nil {
				return fmt.Errorf("failed to drop %s: %w", name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create %s: %w", strings.Join(drop, ", "), err)
		}
		return fill(tx)
	})
}

// readIfExists runs query only when table exists. A derived table that was
// never produced reads as empty.
func (s *Storage) readIfExists(ctx context.Context, table, query string, scan func(*sql.Rows) error) error {
	ok, err := s.HasTable(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if !ok {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
	}
	return rows.Err()
}

// ReplaceStatistics drops and rebuilds channel_avg
func (s *Storage) ReplaceStatistics(ctx context.Context, rows []model.ChannelStatistics) error {
	cols := statisticsColumnList()
	insert := fmt.Sprintf("insert into channel_avg (%s) values (%s)", strings.Join(cols, ", "), placeholders(len(cols)))

	return s.rebuild(ctx, []string{"channel_avg"}, statisticsSchema(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			args := []any{r.EntityID, r.ChannelID, r.ChannelName}
			for _, p := range model.Platforms {
				ps := r.Platforms[p]
				args = append(args, ps.Count, ps.Avg, ps.Std, ps.Min, ps.Max, ps.LnCount, ps.LnAvg, ps.LnStd, ps.GeoAvg)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert statistics for %s: %w", r.ChannelID, err)
			}
		}
		return nil
	})
}

// Statistics returns channel_avg in streamer order
func (s *Storage) Statistics(ctx context.Context) ([]model.ChannelStatistics, error) {
	query := fmt.Sprintf("select %s from channel_avg order by entity_id", strings.Join(statisticsColumnList(), ", "))
	var out []model.ChannelStatistics
	err := s.readIfExists(ctx, "channel_avg", query, func(rows *sql.Rows) error {
		var r model.ChannelStatistics
		dest := []any{&r.EntityID, &r.ChannelID, &r.ChannelName}
		for _, p := range model.Platforms {
			ps := &r.Platforms[p]
			dest = append(dest, &ps.Count, &ps.Avg, &ps.Std, &ps.Min, &ps.Max, &ps.LnCount, &ps.LnAvg, &ps.LnStd, &ps.GeoAvg)
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// ensureTimeSlots materializes the 96 slot labels once.
func ensureTimeSlots(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, timeSlotSchema); err != nil {
		return fmt.Errorf("failed to create time_slots: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `insert or ignore into time_slots (time) values (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, l := range timeslot.Labels() {
		if _, err := stmt.ExecContext(ctx, l); err != nil {
			return fmt.Errorf("failed to insert time slot %s: %w", l, err)
		}
	}
	return nil
}

func profileTable(p model.Platform) string {
	return p.Prefix() + "_time_profile"
}

// ReplaceTimeProfiles drops and rebuilds the platform's time profile table
func (s *Storage) ReplaceTimeProfiles(ctx context.Context, p model.Platform, rows []model.TimeProfile) error {
	table := profileTable(p)
	return s.rebuild(ctx, []string{table}, fmt.Sprintf(profileSchema, table), func(tx *sql.Tx) error {
		if err := ensureTimeSlots(ctx, tx); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`insert into %s
(entity_id, channel_id, channel_name, time, live_count, avg_viewers, diff_percent, diff_method)
values (?, ?, ?, ?, ?, ?, ?, ?)`, table))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.EntityID, r.ChannelID, r.ChannelName, r.Time,
				r.LiveCount, r.AvgViewers, r.DiffPercent, r.DiffMethod); err != nil {
				return fmt.Errorf("failed to insert %s row %s/%s: %w", table, r.ChannelID, r.Time, err)
			}
		}
		return nil
	})
}

// TimeProfiles returns the platform's time profile in streamer then slot order
func (s *Storage) TimeProfiles(ctx context.Context, p model.Platform) ([]model.TimeProfile, error) {
	table := profileTable(p)
	query := fmt.Sprintf(`select entity_id, channel_id, channel_name, time, live_count, avg_viewers, diff_percent, diff_method
from %s
order by entity_id, time`, table)

	var out []model.TimeProfile
	err := s.readIfExists(ctx, table, query, func(rows *sql.Rows) error {
		r := model.TimeProfile{Platform: p}
		if err := rows.Scan(&r.EntityID, &r.ChannelID, &r.ChannelName, &r.Time,
			&r.LiveCount, &r.AvgViewers, &r.DiffPercent, &r.DiffMethod); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func globalColumnList() []string {
	cols := []string{"time", "diff_method"}
	for _, g := range globalGroups {
		for _, c := range globalColumns {
			cols = append(cols, g+"_"+c)
		}
	}
	return cols
}

func globalSlots(r *model.GlobalTimeProfile) []*model.GlobalSlot {
	return []*model.GlobalSlot{&r.Platforms[model.YouTube], &r.Platforms[model.Twitch], &r.All}
}

// ReplaceGlobalProfile drops and rebuilds time_global_profile
func (s *Storage) ReplaceGlobalProfile(ctx context.Context, rows []model.GlobalTimeProfile) error {
	cols := globalColumnList()
	insert := fmt.Sprintf("insert into time_global_profile (%s) values (%s)", strings.Join(cols, ", "), placeholders(len(cols)))

	return s.rebuild(ctx, []string{"time_global_profile"}, globalSchema(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := range rows {
			r := rows[i]
			args := []any{r.Time, r.DiffMethod}
			for _, g := range globalSlots(&r) {
				args = append(args, g.LiveCount, g.WeightedAvg, g.ArithDiff, g.GeoDiff)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert global profile %s: %w", r.Time, err)
			}
		}
		return nil
	})
}

// GlobalProfile returns time_global_profile in slot order
func (s *Storage) GlobalProfile(ctx context.Context) ([]model.GlobalTimeProfile, error) {
	query := fmt.Sprintf("select %s from time_global_profile order by time", strings.Join(globalColumnList(), ", "))
	var out []model.GlobalTimeProfile
	err := s.readIfExists(ctx, "time_global_profile", query, func(rows *sql.Rows) error {
		var r model.GlobalTimeProfile
		dest := []any{&r.Time, &r.DiffMethod}
		for _, g := range globalSlots(&r) {
			dest = append(dest, &g.LiveCount, &g.WeightedAvg, &g.ArithDiff, &g.GeoDiff)
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed id list %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// ReplaceConcurrency drops and rebuilds live_concurrent and concurrent_effect
func (s *Storage) ReplaceConcurrency(ctx context.Context, records []model.ConcurrencyRecord, effects []model.ConcurrencyEffect) error {
	drop := []string{"expected_pressure", "live_concurrent", "concurrent_effect"}
	return s.rebuild(ctx, drop, concurrencySchema, func(tx *sql.Tx) error {
		rs, err := tx.PrepareContext(ctx, `insert into live_concurrent (date, time, live_count, id_list, geo_perf_percent)
values (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer rs.Close()
		for _, r := range records {
			if _, err := rs.ExecContext(ctx, r.Date, r.Time, r.LiveCount, joinIDs(r.IDs), r.GeoPerf); err != nil {
				return fmt.Errorf("failed to insert live_concurrent %s %s: %w", r.Date, r.Time, err)
			}
		}

		es, err := tx.PrepareContext(ctx, `insert into concurrent_effect (live_count, avg_geo_perf_percent, sample_cnt)
values (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer es.Close()
		for _, e := range effects {
			if _, err := es.ExecContext(ctx, e.LiveCount, e.AvgGeoPerf, e.Samples); err != nil {
				return fmt.Errorf("failed to insert concurrent_effect %d: %w", e.LiveCount, err)
			}
		}
		return s.restorePressureView(ctx, tx)
	})
}

// ConcurrencyRecords returns live_concurrent ordered by date and time
func (s *Storage) ConcurrencyRecords(ctx context.Context) ([]model.ConcurrencyRecord, error) {
	var out []model.ConcurrencyRecord
	err := s.readIfExists(ctx, "live_concurrent", `select date, time, live_count, id_list, geo_perf_percent
from live_concurrent
order by date, time`, func(rows *sql.Rows) error {
		var r model.ConcurrencyRecord
		var ids string
		if err := rows.Scan(&r.Date, &r.Time, &r.LiveCount, &ids, &r.GeoPerf); err != nil {
			return err
		}
		parsed, err := splitIDs(ids)
		if err != nil {
			return err
		}
		r.IDs = parsed
		out = append(out, r)
		return nil
	})
	return out, err
}

// ConcurrencyEffects returns concurrent_effect ordered by level
func (s *Storage) ConcurrencyEffects(ctx context.Context) ([]model.ConcurrencyEffect, error) {
	var out []model.ConcurrencyEffect
	err := s.readIfExists(ctx, "concurrent_effect", `select live_count, avg_geo_perf_percent, sample_cnt
from concurrent_effect
order by live_count`, func(rows *sql.Rows) error {
		var e model.ConcurrencyEffect
		if err := rows.Scan(&e.LiveCount, &e.AvgGeoPerf, &e.Samples); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// restorePressureView recreates expected_pressure when the distribution
// tables exist.
func (s *Storage) restorePressureView(ctx context.Context, tx *sql.Tx) error {
	var n int
	if err := tx.QueryRowContext(ctx, `select count(*) from sqlite_master where type = 'table' and name = 'live_count_by_time'`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, pressureView); err != nil {
		return fmt.Errorf("failed to create expected_pressure: %w", err)
	}
	return nil
}

// ReplaceDistribution drops and rebuilds live_count_by_time and
// live_count_distribution, then recreates the expected_pressure view.
func (s *Storage) ReplaceDistribution(ctx context.Context, rows []model.SlotDistribution) error {
	drop := []string{"expected_pressure", "live_count_by_time", "live_count_distribution"}
	return s.rebuild(ctx, drop, distributionSchema, func(tx *sql.Tx) error {
		bs, err := tx.PrepareContext(ctx, `insert into live_count_by_time (time, avg_live_count, total_days) values (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer bs.Close()
		ds, err := tx.PrepareContext(ctx, `insert into live_count_distribution (time, live_count, days) values (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer ds.Close()

		for _, r := range rows {
			if _, err := bs.ExecContext(ctx, r.Time, r.AvgLiveCount, r.TotalDays); err != nil {
				return fmt.Errorf("failed to insert live_count_by_time %s: %w", r.Time, err)
			}
			for _, l := range r.Levels {
				if _, err := ds.ExecContext(ctx, r.Time, l.Level, l.Days); err != nil {
					return fmt.Errorf("failed to insert distribution %s/%d: %w", r.Time, l.Level, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, effectPlaceholderSchema); err != nil {
			return fmt.Errorf("failed to ensure concurrent_effect: %w", err)
		}
		return s.restorePressureView(ctx, tx)
	})
}

// Distribution returns slot distributions in slot order with levels ascending
func (s *Storage) Distribution(ctx context.Context) ([]model.SlotDistribution, error) {
	var out []model.SlotDistribution
	index := make(map[string]int)
	err := s.readIfExists(ctx, "live_count_by_time", `select time, avg_live_count, total_days from live_count_by_time order by time`,
		func(rows *sql.Rows) error {
			var r model.SlotDistribution
			if err := rows.Scan(&r.Time, &r.AvgLiveCount, &r.TotalDays); err != nil {
				return err
			}
			index[r.Time] = len(out)
			out = append(out, r)
			return nil
		})
	if err != nil || len(out) == 0 {
		return out, err
	}

	err = s.readIfExists(ctx, "live_count_distribution", `select time, live_count, days from live_count_distribution order by time, live_count`,
		func(rows *sql.Rows) error {
			var t string
			var l model.LevelCount
			if err := rows.Scan(&t, &l.Level, &l.Days); err != nil {
				return err
			}
			if i, ok := index[t]; ok {
				out[i].Levels = append(out[i].Levels, l)
			}
			return nil
		})
	return out, err
}

// Pressure reads the expected_pressure view.
func (s *Storage) Pressure(ctx context.Context) ([]model.Pressure, error) {
	var out []model.Pressure
	err := s.readIfExists(ctx, "expected_pressure", `select time, coalesce(expected_pressure, 0) from expected_pressure order by time`,
		func(rows *sql.Rows) error {
			var p model.Pressure
			if err := rows.Scan(&p.Time, &p.Expected); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	return out, err
}

// ReplaceSessions drops and rebuilds stream_analysis
func (s *Storage) ReplaceSessions(ctx context.Context, rows []model.SessionSummary) error {
	return s.rebuild(ctx, []string{"stream_analysis"}, sessionSchema, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `insert into stream_analysis (
    platform, stream_id, channel, start_time, end_time, avg_viewers,
    max_viewers, max_time, min_viewers, min_time,
    expected_points, actual_points, missing_points)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.Platform.Label(), r.SessionID, r.Channel,
				r.Start.Format(sessionTimeLayout), r.End.Format(sessionTimeLayout), r.AvgViewers,
				r.MaxViewers, r.MaxAt.Format(sessionTimeLayout), r.MinViewers, r.MinAt.Format(sessionTimeLayout),
				r.ExpectedPoints, r.ActualPoints, r.MissingPoints); err != nil {
				return fmt.Errorf("failed to insert session %s/%d: %w", r.Platform.Label(), r.SessionID, err)
			}
		}
		return nil
	})
}

// Sessions returns stream_analysis in insertion order
func (s *Storage) Sessions(ctx context.Context) ([]model.SessionSummary, error) {
	var out []model.SessionSummary
	err := s.readIfExists(ctx, "stream_analysis", `select platform, stream_id, channel, start_time, end_time, avg_viewers,
       max_viewers, max_time, min_viewers, min_time, expected_points, actual_points, missing_points
from stream_analysis
order by id`, func(rows *sql.Rows) error {
		var r model.SessionSummary
		var platform, start, end, maxAt, minAt string
		if err := rows.Scan(&platform, &r.SessionID, &r.Channel, &start, &end, &r.AvgViewers,
			&r.MaxViewers, &maxAt, &r.MinViewers, &minAt,
			&r.ExpectedPoints, &r.ActualPoints, &r.MissingPoints); err != nil {
			return err
		}
		p, err := model.ParsePlatform(platform)
		if err != nil {
			return err
		}
		r.Platform = p
		for _, f := range []struct {
			in  string
			out *time.Time
		}{{start, &r.Start}, {end, &r.End}, {maxAt, &r.MaxAt}, {minAt, &r.MinAt}} {
			t, err := time.Parse(sessionTimeLayout, f.in)
			if err != nil {
				return fmt.Errorf("malformed session time %q: %w", f.in, err)
			}
			*f.out = t
		}
		out = append(out, r)
		return nil
	})
	return out, err
}
