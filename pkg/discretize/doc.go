/*
Package discretize snaps observation times to 15-minute slots and smooths
concurrent samples of one broadcast.

# What Discretization Does

The scraper samples every few minutes with second-level jitter:

	2025-07-01 20:03:12  UC0001  yt_number=812  youtube=1,240
	2025-07-01 20:08:47  UC0001  yt_number=812  youtube=1,310
	2025-07-01 20:13:05  UC0001  yt_number=812  youtube=1,295

Every time is rewritten to the start of its slot (minute - minute%15, the
hour never changes). Rows that now share (channel, date, slot, session id)
on a platform are equivalent measurements of one slice of one broadcast, so
each of them receives the truncated mean of the group:

	2025-07-01 20:00  UC0001  yt_number=812  youtube=1,281
	2025-07-01 20:00  UC0001  yt_number=812  youtube=1,281
	2025-07-01 20:00  UC0001  yt_number=812  youtube=1,281

The duplicate rows are then removed by the dedup stage.

# Aggregate Structure

Each group keeps an Aggregate:

	type Aggregate struct {
	    Sum   int64
	    Count int64
	    Min   int64
	    Max   int64
	}

Average truncates toward zero, matching an integer cast of an SQL AVG.

# Idempotence

Slot labels truncate to themselves and every group is already uniform, so
applying the pass to its own output changes nothing.

# Failure Mode

A date or time that does not parse aborts the whole pass. Later statistics
assume every row sits in a slot; skipping rows would silently bias them.
*/
package discretize
