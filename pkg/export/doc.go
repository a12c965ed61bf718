// Package export renders finished snapshot tables and moves raw snapshots
// in and out of JSON dumps.
//
// # Tables
//
// Exporter reads one derived table from a snapshot and writes it as JSON
// or CSV. Values are stored at full precision; rounding happens here:
//   - viewer averages, standard deviations and geometric means: 1 decimal
//   - percentages and log-space moments: 2 decimals
//
// With Circular set, time-keyed tables are ordered on a day that starts at
// noon (config.CircularAxis), so late-night slots appear last.
//
// # JSON Format
//
//	{
//	  "metadata": {
//	    "exported_at": "2025-12-27T03:00:00Z",
//	    "table": "global",
//	    "columns": ["time", "diff_method", "yt_sum", ...],
//	    "row_count": 96,
//	    "format": "json",
//	    "version": "1.0"
//	  },
//	  "rows": [{"time": "00:00", "diff_method": "geometric", ...}]
//	}
//
// CSV output carries the same columns with a header row.
//
// # Dumps
//
// DumpToJSON writes the streamer and main rows of a snapshot.
// Importer reads such a dump into a fresh snapshot, skipping rows with a
// malformed date or time, an empty channel or negative counts, and writes
// observations in batches of MaxImportBatchSize.
package export
