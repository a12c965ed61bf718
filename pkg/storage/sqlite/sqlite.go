// Package sqlite stores a snapshot in a single SQLite database file.
//
// One Storage owns one file through one connection. Bulk writes run inside
// a single transaction so a stage's rewrite of the main table is one
// auditable step; derived tables are dropped and recreated on every
// Replace call.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
)

// Storage implements storage.Storage over a SQLite file.
type Storage struct {
	db   *sql.DB
	path string
}

var _ storage.Storage = (*Storage)(nil)

// Options configures Open and Create.
type Options struct {
	// Driver is config.DriverModernc (default) or config.DriverCgo.
	Driver string
}

// Open opens an existing snapshot file.
func Open(path string, opts Options) (*Storage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return open(path, opts)
}

// Create initializes a new snapshot file with the ingestion schema. The file
// must not exist yet.
func Create(path string, opts Options) (*Storage, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("failed to create snapshot: %s already exists", path)
	}
	s, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(baseSchema); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

func open(path string, opts Options) (*Storage, error) {
	source, err := dsn(opts.Driver, path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName(opts.Driver), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	// single connection: every read sees the snapshot as checked out
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return &Storage{db: db, path: path}, nil
}

// Path returns the snapshot file.
func (s *Storage) Path() string {
	return s.path
}

// Close releases the connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Seed inserts entities and observations, keeping their ids.
func (s *Storage) Seed(ctx context.Context, entities []model.Entity, obs []model.Observation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		es, err := tx.PrepareContext(ctx, `insert into streamer (id, channel_id, channel_name, "group") values (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer es.Close()
		for _, e := range entities {
			if _, err := es.ExecContext(ctx, e.ID, e.ChannelID, e.ChannelName, e.Group); err != nil {
				return fmt.Errorf("failed to insert streamer %d: %w", e.ID, err)
			}
		}

		ms, err := tx.PrepareContext(ctx, `insert into main (id, date, time, channel, yt_number, tw_number, youtube, twitch)
values (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer ms.Close()
		for _, o := range obs {
			if _, err := ms.ExecContext(ctx, o.ID, o.Date, o.Time, o.Channel,
				o.Sessions[model.YouTube], o.Sessions[model.Twitch],
				o.Viewers[model.YouTube], o.Viewers[model.Twitch]); err != nil {
				return fmt.Errorf("failed to insert observation %d: %w", o.ID, err)
			}
		}
		return nil
	})
}

// Entities returns streamers ordered by id
func (s *Storage) Entities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `select id, channel_id, channel_name, "group" from streamer order by id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query streamers: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.ChannelID, &e.ChannelName, &e.Group); err != nil {
			return nil, fmt.Errorf("failed to scan streamer: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Observations returns main rows ordered by id
func (s *Storage) Observations(ctx context.Context) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `select id, date, time, channel,
       coalesce(yt_number, 0), coalesce(tw_number, 0), youtube, twitch
from main
order by id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.ID, &o.Date, &o.Time, &o.Channel,
			&o.Sessions[model.YouTube], &o.Sessions[model.Twitch],
			&o.Viewers[model.YouTube], &o.Viewers[model.Twitch]); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteObservations removes rows by id in one transaction
func (s *Storage) DeleteObservations(ctx context.Context, ids []int64) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `delete from main where id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to delete observation %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	return removed, err
}

// RewriteObservations overwrites time and viewer counts in one transaction
func (s *Storage) RewriteObservations(ctx context.Context, obs []model.Observation) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `update main set time = ?, youtube = ?, twitch = ? where id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, o := range obs {
			if _, err := stmt.ExecContext(ctx, o.Time, o.Viewers[model.YouTube], o.Viewers[model.Twitch], o.ID); err != nil {
				return fmt.Errorf("failed to rewrite observation %d: %w", o.ID, err)
			}
		}
		return nil
	})
}

// DeleteEntities removes streamers by id
func (s *Storage) DeleteEntities(ctx context.Context, ids []int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `delete from streamer where id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("failed to delete streamer %d: %w", id, err)
			}
		}
		return nil
	})
}

// EnsureIndexes builds idx_main_yt and idx_main_tw and refreshes planner statistics
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, indexSchema); err != nil {
		return fmt.Errorf("failed to build indexes: %w", err)
	}
	return nil
}

// Stats summarizes the snapshot
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	st := &storage.Stats{}
	row := s.db.QueryRowContext(ctx, `select
    (select count(*) from streamer),
    (select count(*) from main),
    (select count(*) from main where coalesce(yt_number, 0) != 0 or coalesce(tw_number, 0) != 0),
    coalesce((select min(date) from main), ''),
    coalesce((select max(date) from main), '')`)
	if err := row.Scan(&st.Entities, &st.Observations, &st.LiveObservations, &st.FirstDate, &st.LastDate); err != nil {
		return nil, fmt.Errorf("failed to read snapshot stats: %w", err)
	}
	return st, nil
}

// HasTable reports whether a table or view exists.
func (s *Storage) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from sqlite_master where name = ? and type in ('table', 'view')`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
