// Package repos is the optional PostGIS sink for building centroids and
// satellite samples.
package repos

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

var ErrNotFound = pgx.ErrNoRows

func Connect(ctx context.Context, databaseURL string) (*Repo, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.ConnConfig.Tracer = &tracer{}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Pool() *pgxpool.Pool {
	return r.db
}

func (r *Repo) Close() {
	r.db.Close()
}

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS building_centroids (
		run_id    uuid NOT NULL,
		osm_type  text NOT NULL,
		osm_id    bigint NOT NULL,
		location  text NOT NULL,
		tags      jsonb NOT NULL DEFAULT '{}',
		h3_cell   text NOT NULL DEFAULT '',
		centroid  geometry(Point, 4326) NOT NULL,
		footprint geometry(Geometry, 4326),
		PRIMARY KEY (run_id, osm_type, osm_id)
	)`,
	`CREATE INDEX IF NOT EXISTS building_centroids_centroid_idx
		ON building_centroids USING gist (centroid)`,
	`CREATE TABLE IF NOT EXISTS band_samples (
		run_id    uuid NOT NULL,
		longitude double precision NOT NULL,
		latitude  double precision NOT NULL,
		time      timestamptz NOT NULL,
		band      text NOT NULL,
		value     double precision NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS band_samples_run_idx ON band_samples (run_id)`,
}

// Migrate creates the tables if they do not exist.
func (r *Repo) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
