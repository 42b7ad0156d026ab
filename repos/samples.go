package repos

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"open-geo-engine/earthengine"
)

var sampleColumns = []string{"run_id", "longitude", "latitude", "time", "band", "value"}

// sampleRows flattens samples into one row per band value, skipping values
// that are missing.
func sampleRows(runID uuid.UUID, samples []earthengine.Sample, bands []string) [][]any {
	id := pgUUID(runID)
	var rows [][]any
	for _, s := range samples {
		for _, band := range bands {
			v, ok := s.Values[band]
			if !ok {
				continue
			}
			rows = append(rows, []any{id, s.Longitude, s.Latitude, s.Datetime.UTC().Truncate(time.Millisecond), band, v})
		}
	}
	return rows
}

// SaveSamples copies samples into band_samples and returns the number of
// rows written.
func (r *Repo) SaveSamples(ctx context.Context, runID uuid.UUID, samples []earthengine.Sample, bands []string) (int64, error) {
	rows := sampleRows(runID, samples, bands)
	if len(rows) == 0 {
		return 0, nil
	}
	return r.db.CopyFrom(ctx, pgx.Identifier{"band_samples"}, sampleColumns, pgx.CopyFromRows(rows))
}
