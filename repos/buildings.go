package repos

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"

	"open-geo-engine/buildings"
)

func (r *Repo) SaveBuildings(ctx context.Context, runID uuid.UUID, found []buildings.Building) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range found {
		tags := b.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		var footprint any
		if b.Geometry != nil {
			footprint = ewkb.Value(b.Geometry, 4326)
		}
		batch.Queue(`
			INSERT INTO building_centroids (run_id, osm_type, osm_id, location, tags,
			                                h3_cell, centroid, footprint)
			VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKB($7), ST_GeomFromEWKB($8))
			ON CONFLICT (run_id, osm_type, osm_id) DO NOTHING
		`, pgUUID(runID), b.OSMType, b.OSMID, b.Location, tags,
			b.H3Cell, ewkb.Value(b.Centroid, 4326), footprint)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < len(found); i++ {
		_, err := results.Exec()
		if err != nil {
			return fmt.Errorf("save building %s: %w", found[i].Key(), err)
		}
	}
	_ = results.Close()

	return tx.Commit(ctx)
}

// ListBuildingCentroids returns the buildings saved for runID without their
// footprints.
func (r *Repo) ListBuildingCentroids(ctx context.Context, runID uuid.UUID) ([]buildings.Building, error) {
	rows, err := r.db.Query(ctx, `
		SELECT osm_type, osm_id, location, tags, h3_cell, ST_AsBinary(centroid)
		FROM building_centroids
		WHERE run_id = $1
		ORDER BY osm_type, osm_id
	`, pgUUID(runID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []buildings.Building
	for rows.Next() {
		var b buildings.Building
		var centroid orb.Point
		if err := rows.Scan(&b.OSMType, &b.OSMID, &b.Location, &b.Tags, &b.H3Cell, ewkb.Scanner(&centroid)); err != nil {
			return nil, err
		}
		b.Centroid = centroid
		out = append(out, b)
	}
	return out, rows.Err()
}
