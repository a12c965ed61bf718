package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/ray-0411/vtuber-data-analyze/pkg/concurrency"
	"github.com/ray-0411/vtuber-data-analyze/pkg/config"
	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

// Exportable tables
const (
	TableStatistics   = "statistics"
	TableYouTube      = "yt_profile"
	TableTwitch       = "tw_profile"
	TableGlobal       = "global"
	TableEffects      = "effects"
	TableDistribution = "distribution"
	TablePressure     = "pressure"
	TableSessions     = "sessions"
)

// Tables lists every table name accepted by ExportOptions.Table.
var Tables = []string{
	TableStatistics, TableYouTube, TableTwitch, TableGlobal,
	TableEffects, TableDistribution, TablePressure, TableSessions,
}

var (
	ErrUnknownTable  = errors.New("unknown export table")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Exporter renders finished snapshot tables for reports and spreadsheets
type Exporter struct {
	storage storage.Storage
}

// NewExporter creates a new exporter
func NewExporter(store storage.Storage) *Exporter {
	return &Exporter{storage: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Table to export, one of Tables
	Table string

	// Format: "json" or "csv"
	Format string

	// Circular orders time-keyed rows starting at config.CircularAxis
	Circular bool
}

// ExportResult contains stats about the export
type ExportResult struct {
	RowsExported int       `json:"rows_exported"`
	Table        string    `json:"table"`
	Format       string    `json:"format"`
	ExportedAt   time.Time `json:"exported_at"`
}

// table is a rendered export: ordered columns and one value per column per row.
type table struct {
	columns []string
	rows    [][]any
}

// Export writes a table in the requested format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	switch opts.Format {
	case "", "json":
		return e.ExportToJSON(ctx, w, opts)
	case "csv":
		return e.ExportToCSV(ctx, w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// ExportToJSON exports a table as JSON objects wrapped with metadata
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	t, err := e.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0, len(t.rows))
	for _, row := range t.rows {
		rec := make(map[string]any, len(t.columns))
		for i, c := range t.columns {
			rec[c] = row[i]
		}
		records = append(records, rec)
	}

	exportData := struct {
		Metadata struct {
			ExportedAt time.Time `json:"exported_at"`
			Table      string    `json:"table"`
			Columns    []string  `json:"columns"`
			RowCount   int       `json:"row_count"`
			Format     string    `json:"format"`
			Version    string    `json:"version"`
		} `json:"metadata"`
		Rows []map[string]any `json:"rows"`
	}{
		Rows: records,
	}

	exportData.Metadata.ExportedAt = time.Now()
	exportData.Metadata.Table = opts.Table
	exportData.Metadata.Columns = t.columns
	exportData.Metadata.RowCount = len(records)
	exportData.Metadata.Format = "json"
	exportData.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		RowsExported: len(records),
		Table:        opts.Table,
		Format:       "json",
		ExportedAt:   exportData.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV exports a table as CSV with a header row
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	t, err := e.load(ctx, opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(t.columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range t.rows {
		line := make([]string, len(row))
		for i, v := range row {
			line[i] = cell(v)
		}
		if err := writer.Write(line); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		RowsExported: len(t.rows),
		Table:        opts.Table,
		Format:       "csv",
		ExportedAt:   time.Now(),
	}, nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// round1 and round2 are the presentation precisions: one decimal for
// viewer averages and deviations, two for percentages.
func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (e *Exporter) load(ctx context.Context, opts ExportOptions) (table, error) {
	var (
		t   table
		err error
	)
	switch opts.Table {
	case TableStatistics:
		t, err = e.statistics(ctx)
	case TableYouTube:
		t, err = e.profile(ctx, model.YouTube, opts.Circular)
	case TableTwitch:
		t, err = e.profile(ctx, model.Twitch, opts.Circular)
	case TableGlobal:
		t, err = e.global(ctx, opts.Circular)
	case TableEffects:
		t, err = e.effects(ctx)
	case TableDistribution:
		t, err = e.distribution(ctx, opts.Circular)
	case TablePressure:
		t, err = e.pressure(ctx, opts.Circular)
	case TableSessions:
		t, err = e.sessions(ctx)
	default:
		return table{}, fmt.Errorf("%w: %q", ErrUnknownTable, opts.Table)
	}
	if err != nil {
		return table{}, fmt.Errorf("failed to read %s: %w", opts.Table, err)
	}
	return t, nil
}

func (e *Exporter) statistics(ctx context.Context) (table, error) {
	rows, err := e.storage.Statistics(ctx)
	if err != nil {
		return table{}, err
	}
	t := table{columns: []string{"id", "channel_id", "channel_name"}}
	for _, p := range model.Platforms {
		pre := p.Prefix() + "_"
		t.columns = append(t.columns,
			pre+"count", pre+"avg", pre+"std", pre+"min", pre+"max",
			pre+"ln_count", pre+"ln_avg", pre+"ln_std", pre+"geo_avg")
	}
	for _, r := range rows {
		row := []any{r.EntityID, r.ChannelID, r.ChannelName}
		for _, p := range model.Platforms {
			s := r.For(p)
			row = append(row,
				s.Count, round1(s.Avg), round1(s.Std), s.Min, s.Max,
				s.LnCount, round2(s.LnAvg), round2(s.LnStd), round1(s.GeoAvg))
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (e *Exporter) profile(ctx context.Context, p model.Platform, circular bool) (table, error) {
	rows, err := e.storage.TimeProfiles(ctx, p)
	if err != nil {
		return table{}, err
	}
	if circular {
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].EntityID != rows[j].EntityID {
				return rows[i].EntityID < rows[j].EntityID
			}
			return slotLess(rows[i].Time, rows[j].Time)
		})
	}
	t := table{columns: []string{"id", "channel_id", "channel_name", "time", "live_count", "avg_viewers", "diff_percent", "diff_method"}}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.EntityID, r.ChannelID, r.ChannelName, r.Time, r.LiveCount,
			round1(r.AvgViewers), round2(r.DiffPercent), r.DiffMethod,
		})
	}
	return t, nil
}

func (e *Exporter) global(ctx context.Context, circular bool) (table, error) {
	rows, err := e.storage.GlobalProfile(ctx)
	if err != nil {
		return table{}, err
	}
	if circular {
		sort.SliceStable(rows, func(i, j int) bool { return slotLess(rows[i].Time, rows[j].Time) })
	}
	t := table{columns: []string{"time", "diff_method"}}
	groups := []string{model.YouTube.Prefix(), model.Twitch.Prefix(), "all"}
	for _, g := range groups {
		t.columns = append(t.columns, g+"_sum", g+"_weighted_avg", g+"_arith_diff", g+"_weighted_diff")
	}
	for _, r := range rows {
		row := []any{r.Time, r.DiffMethod}
		for _, s := range []model.GlobalSlot{r.Platforms[model.YouTube], r.Platforms[model.Twitch], r.All} {
			row = append(row, s.LiveCount, round1(s.WeightedAvg), round2(s.ArithDiff), round2(s.GeoDiff))
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (e *Exporter) effects(ctx context.Context) (table, error) {
	rows, err := e.storage.ConcurrencyEffects(ctx)
	if err != nil {
		return table{}, err
	}
	t := table{columns: []string{"live_count", "avg_geo_perf", "samples"}}
	for _, r := range rows {
		t.rows = append(t.rows, []any{r.LiveCount, round2(r.AvgGeoPerf), r.Samples})
	}
	return t, nil
}

func (e *Exporter) distribution(ctx context.Context, circular bool) (table, error) {
	rows, err := e.storage.Distribution(ctx)
	if err != nil {
		return table{}, err
	}
	if circular {
		sort.SliceStable(rows, func(i, j int) bool { return slotLess(rows[i].Time, rows[j].Time) })
	}
	t := table{columns: []string{"time", "live_count", "days", "total_days", "avg_live_count"}}
	for _, r := range rows {
		for _, l := range r.Levels {
			t.rows = append(t.rows, []any{r.Time, l.Level, l.Days, r.TotalDays, round2(r.AvgLiveCount)})
		}
	}
	return t, nil
}

func (e *Exporter) pressure(ctx context.Context, circular bool) (table, error) {
	dist, err := e.storage.Distribution(ctx)
	if err != nil {
		return table{}, err
	}
	effects, err := e.storage.ConcurrencyEffects(ctx)
	if err != nil {
		return table{}, err
	}
	rows := concurrency.ExpectedPressure(dist, effects)
	if circular {
		sort.SliceStable(rows, func(i, j int) bool { return slotLess(rows[i].Time, rows[j].Time) })
	}
	t := table{columns: []string{"time", "expected_pressure"}}
	for _, r := range rows {
		t.rows = append(t.rows, []any{r.Time, round2(r.Expected)})
	}
	return t, nil
}

func (e *Exporter) sessions(ctx context.Context) (table, error) {
	rows, err := e.storage.Sessions(ctx)
	if err != nil {
		return table{}, err
	}
	const layout = "2006-01-02 15:04"
	t := table{columns: []string{
		"platform", "session_id", "channel", "start_time", "end_time",
		"avg_viewers", "max_viewers", "max_time", "min_viewers", "min_time",
		"expected_points", "actual_points", "missing_points",
	}}
	for _, r := range rows {
		t.rows = append(t.rows, []any{
			r.Platform.Label(), r.SessionID, r.Channel, r.Start.Format(layout), r.End.Format(layout),
			round1(r.AvgViewers), r.MaxViewers, r.MaxAt.Format(layout), r.MinViewers, r.MinAt.Format(layout),
			r.ExpectedPoints, r.ActualPoints, r.MissingPoints,
		})
	}
	return t, nil
}

func slotLess(a, b string) bool {
	return timeslot.SortKey(a, config.CircularAxis) < timeslot.SortKey(b, config.CircularAxis)
}
