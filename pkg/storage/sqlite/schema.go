package sqlite

import (
	"fmt"
	"strings"
)

// Ingestion tables. Raw snapshots produced by the scraper already contain
// them; Create writes them into a fresh file.
//
// language=sql
var baseSchema = `create table if not exists streamer
(
    id           integer primary key,
    channel_id   text not null unique,
    channel_name text not null default '',
    "group"      text not null default ''
);

create table if not exists main
(
    id        integer primary key,
    date      text    not null,
    time      text    not null,
    channel   text    not null,
    yt_number integer not null default 0,
    tw_number integer not null default 0,
    youtube   integer,
    twitch    integer
);`

// language=sql
var indexSchema = `create index if not exists idx_main_yt on main (date, time, yt_number);
create index if not exists idx_main_tw on main (date, time, tw_number);
analyze;`

// language=sql
var timeSlotSchema = `create table if not exists time_slots
(
    time text primary key
);`

// statisticsColumns lists the per-platform channel_avg columns in scan order.
var statisticsColumns = []string{
	"count", "avg", "std", "min", "max", "ln_count", "ln_avg", "ln_std", "geo_avg",
}

func statisticsSchema() string {
	var b strings.Builder
	b.WriteString("create table channel_avg\n(\n")
	b.WriteString("    entity_id    integer not null,\n")
	b.WriteString("    channel_id   text primary key,\n")
	b.WriteString("    channel_name text not null")
	for _, prefix := range []string{"yt", "tw"} {
		for _, c := range statisticsColumns {
			typ := "real"
			if c == "count" || c == "ln_count" || c == "min" || c == "max" {
				typ = "integer"
			}
			fmt.Fprintf(&b, ",\n    %s_%s %s not null default 0", prefix, c, typ)
		}
	}
	b.WriteString("\n);")
	return b.String()
}

func statisticsColumnList() []string {
	cols := []string{"entity_id", "channel_id", "channel_name"}
	for _, prefix := range []string{"yt", "tw"} {
		for _, c := range statisticsColumns {
			cols = append(cols, prefix+"_"+c)
		}
	}
	return cols
}

// language=sql
const profileSchema = `create table %s
(
    entity_id    integer not null,
    channel_id   text    not null,
    channel_name text    not null,
    time         text    not null references time_slots (time),
    live_count   integer not null,
    avg_viewers  real    not null,
    diff_percent real    not null,
    diff_method  text    not null,
    primary key (channel_id, time)
);`

// globalGroups are the column prefixes of time_global_profile.
var globalGroups = []string{"yt", "tw", "all"}

var globalColumns = []string{"sum", "weighted_avg", "arith_diff", "weighted_diff"}

func globalSchema() string {
	var b strings.Builder
	b.WriteString("create table time_global_profile\n(\n")
	b.WriteString("    time        text primary key,\n")
	b.WriteString("    diff_method text not null")
	for _, g := range globalGroups {
		for _, c := range globalColumns {
			typ := "real"
			if c == "sum" {
				typ = "integer"
			}
			fmt.Fprintf(&b, ",\n    %s_%s %s not null", g, c, typ)
		}
	}
	b.WriteString("\n);")
	return b.String()
}

// language=sql
var concurrencySchema = `create table live_concurrent
(
    date             text    not null,
    time             text    not null,
    live_count       integer not null,
    id_list          text    not null,
    geo_perf_percent real,
    primary key (date, time)
);

create table concurrent_effect
(
    live_count           integer primary key,
    avg_geo_perf_percent real    not null,
    sample_cnt           integer not null,
    created_at           text default (datetime('now'))
);`

// language=sql
var effectPlaceholderSchema = `create table if not exists concurrent_effect
(
    live_count           integer primary key,
    avg_geo_perf_percent real    not null,
    sample_cnt           integer not null,
    created_at           text default (datetime('now'))
);`

// language=sql
var distributionSchema = `create table live_count_by_time
(
    time           text primary key,
    avg_live_count real    not null,
    total_days     integer not null
);

create table live_count_distribution
(
    time       text    not null,
    live_count integer not null,
    days       integer not null,
    primary key (time, live_count)
);`

// Expected pressure of a slot: the days spent at each concurrency level,
// weighted by the effect of that level, averaged over the window. Levels
// without an effect contribute nothing.
//
// language=sql
var pressureView = `create view expected_pressure as
select b.time                                                                   as time,
       coalesce(sum(d.days * coalesce(e.avg_geo_perf_percent, 0)), 0) * 1.0
           / b.total_days                                                       as expected_pressure
from live_count_by_time b
         left join live_count_distribution d on d.time = b.time
         left join concurrent_effect e on e.live_count = d.live_count
group by b.time
order by b.time;`

// language=sql
var sessionSchema = `create table stream_analysis
(
    id              integer primary key autoincrement,
    platform        text    not null,
    stream_id       integer not null,
    channel         text    not null,
    start_time      text    not null,
    end_time        text    not null,
    avg_viewers     real    not null,
    max_viewers     integer not null,
    max_time        text    not null,
    min_viewers     integer not null,
    min_time        text    not null,
    expected_points integer not null,
    actual_points   integer not null,
    missing_points  integer not null
);`
