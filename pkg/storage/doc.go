/*
Package storage defines how pipeline stages read and write a snapshot.

# Storage Interface

A snapshot holds the ingestion tables (main, streamer) plus whatever derived
tables earlier stages produced. Stages see it through the Storage interface:

	type Storage interface {
	    Entities(ctx) ([]model.Entity, error)
	    Observations(ctx) ([]model.Observation, error)
	    DeleteObservations(ctx, ids) (int64, error)
	    RewriteObservations(ctx, obs) error
	    ReplaceStatistics(ctx, rows) error
	    ...
	}

Backends:
  - memory: slices behind a mutex, for tests and dry runs
  - sqlite: a single relational database file per snapshot

# Derived Tables

Statistics, time profiles, global profiles, concurrency records, level
distributions and session summaries are never updated in place. Every
Replace* call drops the previous contents and writes the new rows, so no
stale row survives a change in the observation or entity set.

# Ordering

Entities always come back ordered by id. Anything that claims "streamer
order" must sort by that id, never by channel id.
*/
package storage
