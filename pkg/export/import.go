package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ray-0411/vtuber-data-analyze/pkg/model"
	"github.com/ray-0411/vtuber-data-analyze/pkg/storage"
	"github.com/ray-0411/vtuber-data-analyze/pkg/timeslot"
)

const (
	// MaxImportBatchSize is the maximum number of observations to write at once
	MaxImportBatchSize = 5000
)

// Seeder accepts raw rows. Both storage backends implement it.
type Seeder interface {
	Seed(ctx context.Context, entities []model.Entity, obs []model.Observation) error
}

// Importer loads a raw snapshot dump into an empty snapshot
type Importer struct {
	storage Seeder
}

// NewImporter creates a new importer
func NewImporter(store Seeder) *Importer {
	return &Importer{storage: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	EntitiesImported     int      `json:"entities_imported"`
	ObservationsImported int      `json:"observations_imported"`
	BatchesWritten       int      `json:"batches_written"`
	DateRange            string   `json:"date_range"`
	Errors               []string `json:"errors,omitempty"`
}

// EntityRecord is a streamer row in a dump.
type EntityRecord struct {
	ID          int64  `json:"id"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Group       string `json:"group"`
}

// ObservationRecord is a main row in a dump. Null viewer counts are
// encoded as JSON null.
type ObservationRecord struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Channel  string `json:"channel"`
	YTNumber int64  `json:"yt_number"`
	TWNumber int64  `json:"tw_number"`
	YouTube  *int64 `json:"youtube"`
	Twitch   *int64 `json:"twitch"`
}

// ImportData represents the structure of a raw snapshot dump
type ImportData struct {
	Metadata struct {
		EntityCount      int    `json:"entity_count"`
		ObservationCount int    `json:"observation_count"`
		Version          string `json:"version"`
	} `json:"metadata"`
	Entities     []EntityRecord      `json:"entities"`
	Observations []ObservationRecord `json:"observations"`
}

func nullable(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func pointer(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	x := v.Int64
	return &x
}

// Observation converts a dump record to a main row.
func (r ObservationRecord) Observation() model.Observation {
	return model.Observation{
		ID:       r.ID,
		Date:     r.Date,
		Time:     r.Time,
		Channel:  r.Channel,
		Sessions: [2]int64{r.YTNumber, r.TWNumber},
		Viewers:  [2]sql.NullInt64{nullable(r.YouTube), nullable(r.Twitch)},
	}
}

// ImportFromJSON imports a dump. Invalid observations are skipped and
// reported in ImportResult.Errors; entities are written as given.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var importData ImportData
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&importData); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	entities := make([]model.Entity, 0, len(importData.Entities))
	for _, e := range importData.Entities {
		entities = append(entities, model.Entity{ID: e.ID, ChannelID: e.ChannelID, ChannelName: e.ChannelName, Group: e.Group})
	}

	var validationErrors []string
	valid := make([]model.Observation, 0, len(importData.Observations))
	for i, rec := range importData.Observations {
		if err := validateImportedObservation(rec); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("observation %d: %v", i, err))
			continue
		}
		valid = append(valid, rec.Observation())
	}

	if err := im.storage.Seed(ctx, entities, nil); err != nil {
		return nil, fmt.Errorf("failed to write entities: %w", err)
	}

	batchCount := 0
	for i := 0; i < len(valid); i += MaxImportBatchSize {
		end := i + MaxImportBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := im.storage.Seed(ctx, nil, valid[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", batchCount, err)
		}
		batchCount++
	}

	st := storage.Summarize(entities, valid)
	dateRange := "empty"
	if st.FirstDate != "" {
		dateRange = fmt.Sprintf("%s to %s", st.FirstDate, st.LastDate)
	}

	return &ImportResult{
		EntitiesImported:     len(entities),
		ObservationsImported: len(valid),
		BatchesWritten:       batchCount,
		DateRange:            dateRange,
		Errors:               validationErrors,
	}, nil
}

// DumpToJSON writes entities and observations in the format read by
// ImportFromJSON.
func DumpToJSON(ctx context.Context, w io.Writer, store storage.Storage) (*ImportResult, error) {
	entities, err := store.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}
	obs, err := store.Observations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}

	var data ImportData
	data.Metadata.EntityCount = len(entities)
	data.Metadata.ObservationCount = len(obs)
	data.Metadata.Version = "1.0"
	for _, e := range entities {
		data.Entities = append(data.Entities, EntityRecord{ID: e.ID, ChannelID: e.ChannelID, ChannelName: e.ChannelName, Group: e.Group})
	}
	for _, o := range obs {
		data.Observations = append(data.Observations, ObservationRecord{
			ID: o.ID, Date: o.Date, Time: o.Time, Channel: o.Channel,
			YTNumber: o.Sessions[model.YouTube], TWNumber: o.Sessions[model.Twitch],
			YouTube: pointer(o.Viewers[model.YouTube]), Twitch: pointer(o.Viewers[model.Twitch]),
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return &ImportResult{EntitiesImported: len(entities), ObservationsImported: len(obs)}, nil
}

// validateImportedObservation validates a row before import
func validateImportedObservation(r ObservationRecord) error {
	if r.Channel == "" {
		return fmt.Errorf("channel cannot be empty")
	}
	if _, err := timeslot.At(r.Date, r.Time); err != nil {
		return err
	}
	if r.YTNumber < 0 || r.TWNumber < 0 {
		return fmt.Errorf("session ids cannot be negative")
	}
	if (r.YouTube != nil && *r.YouTube < 0) || (r.Twitch != nil && *r.Twitch < 0) {
		return fmt.Errorf("viewer counts cannot be negative")
	}
	return nil
}
