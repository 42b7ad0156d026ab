// Package joiner builds the training table: pollution sensor readings with
// the aggregated satellite values of the same place and period joined on.
package joiner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"open-geo-engine/aggregate"
	"open-geo-engine/config"
	"open-geo-engine/table"
)

const (
	OutputFile      = "train_nulls.csv"
	TimestampLayout = "2006-01-02 15"
)

type Joiner struct {
	LocationFile string
	SatelliteDir string
	PollutionDir string
	JoinedDir    string
	Aggregations []aggregate.Aggregation
	Concurrency  int
}

func New(cfg config.JoinerConfig) (*Joiner, error) {
	aggs := make([]aggregate.Aggregation, 0, len(cfg.TimeAggregations))
	for _, s := range cfg.TimeAggregations {
		agg, err := aggregate.ParseAggregation(s)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}
	return &Joiner{
		LocationFile: cfg.LocationFile,
		SatelliteDir: cfg.SatelliteDir,
		PollutionDir: cfg.PollutionDir,
		JoinedDir:    cfg.JoinedDir,
		Aggregations: aggs,
	}, nil
}

type Location struct {
	DeviceName string
	Latitude   string
	Longitude  string
}

// SensorLocation finds the one sensor whose device_name contains the stem of
// fileName. x is the longitude and y the latitude.
func SensorLocation(locations *table.Table, fileName string) (Location, error) {
	stem := table.Stem(fileName)
	var matches []table.Row
	for _, row := range locations.Rows {
		if strings.Contains(row["device_name"], stem) {
			matches = append(matches, row)
		}
	}

	switch len(matches) {
	case 0:
		return Location{}, fmt.Errorf("no sensor location matches %s", stem)
	case 1:
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m["device_name"]
		}
		return Location{}, fmt.Errorf("%d sensor locations match %s: %s", len(matches), stem, strings.Join(names, ", "))
	}

	m := matches[0]
	lon, err := aggregate.RoundCoordinateString(m["x"])
	if err != nil {
		return Location{}, fmt.Errorf("sensor %s: x: %w", m["device_name"], err)
	}
	lat, err := aggregate.RoundCoordinateString(m["y"])
	if err != nil {
		return Location{}, fmt.Errorf("sensor %s: y: %w", m["device_name"], err)
	}
	return Location{DeviceName: m["device_name"], Latitude: lat, Longitude: lon}, nil
}

// UniqueID is the join key of a period at a rounded location.
func UniqueID(period, latitude, longitude string) string {
	return period + "_" + latitude + "_" + longitude
}

func UniqueIDColumn(agg aggregate.Aggregation) string {
	return "unique_id_" + agg.KeyColumn()
}

// Satellite is one aggregated satellite table indexed by unique id.
type Satellite struct {
	Name        string
	Aggregation aggregate.Aggregation
	Columns     []string
	index       map[string]table.Row
}

func (s *Satellite) Lookup(id string) (table.Row, bool) {
	row, ok := s.index[id]
	return row, ok
}

// IndexSatellite keys t by period, latitude and longitude. Duplicate keys
// keep the first row.
func IndexSatellite(name string, t *table.Table, agg aggregate.Aggregation) (*Satellite, error) {
	key := agg.KeyColumn()
	for _, c := range []string{key, "latitude", "longitude"} {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("satellite table %s has no %s column", name, c)
		}
	}

	s := &Satellite{
		Name:        name,
		Aggregation: agg,
		Columns:     t.Columns,
		index:       make(map[string]table.Row, t.Len()),
	}
	for i, row := range t.Rows {
		lat, err := aggregate.RoundCoordinateString(row["latitude"])
		if err != nil {
			return nil, fmt.Errorf("satellite table %s row %d: latitude: %w", name, i+1, err)
		}
		lon, err := aggregate.RoundCoordinateString(row["longitude"])
		if err != nil {
			return nil, fmt.Errorf("satellite table %s row %d: longitude: %w", name, i+1, err)
		}
		id := UniqueID(row[key], lat, lon)
		if _, dup := s.index[id]; dup {
			slog.Debug("duplicate satellite key", "table", name, "id", id)
			continue
		}
		s.index[id] = row
	}
	return s, nil
}

// LoadSatellite reads every aggregated table under dir, in aggregation
// order then file name order.
func LoadSatellite(dir string, aggs []aggregate.Aggregation) ([]*Satellite, error) {
	var out []*Satellite
	for _, agg := range aggs {
		aggDir := filepath.Join(dir, string(agg))
		names, err := table.ListCSV(aggDir)
		if err != nil {
			return nil, fmt.Errorf("list satellite tables: %w", err)
		}
		for _, name := range names {
			t, err := table.ReadCSV(filepath.Join(aggDir, name))
			if err != nil {
				return nil, err
			}
			s, err := IndexSatellite(string(agg)+"/"+name, t, agg)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// PreparePollution sets the sensor location on every reading and derives the
// date and month of its timestamp along with the unique ids of aggs.
func PreparePollution(t *table.Table, loc Location, aggs []aggregate.Aggregation) error {
	if !t.HasColumn("timestamp") {
		return fmt.Errorf("pollution table has no timestamp column")
	}

	for _, c := range []string{"latitude", "longitude", "datetime", "month"} {
		t.AddColumn(c)
	}
	for _, agg := range aggs {
		t.AddColumn(UniqueIDColumn(agg))
	}

	for i, row := range t.Rows {
		ts, err := time.Parse(TimestampLayout, strings.TrimSpace(row["timestamp"]))
		if err != nil {
			return fmt.Errorf("row %d: timestamp: %w", i+1, err)
		}
		row["latitude"] = loc.Latitude
		row["longitude"] = loc.Longitude
		row["datetime"] = aggregate.Date.Period(ts)
		row["month"] = aggregate.Month.Period(ts)
		for _, agg := range aggs {
			row[UniqueIDColumn(agg)] = UniqueID(row[agg.KeyColumn()], loc.Latitude, loc.Longitude)
		}
	}
	return nil
}

// Join left-joins each satellite table onto t in order. Only columns not
// already in t are added, so earlier tables win; rows without a match get
// empty cells.
func Join(t *table.Table, satellites []*Satellite) {
	for _, s := range satellites {
		idColumn := UniqueIDColumn(s.Aggregation)
		if !t.HasColumn(idColumn) {
			t.AddColumn(idColumn)
			for _, row := range t.Rows {
				row[idColumn] = UniqueID(row[s.Aggregation.KeyColumn()], row["latitude"], row["longitude"])
			}
		}

		var added []string
		for _, c := range s.Columns {
			if !t.HasColumn(c) {
				t.AddColumn(c)
				added = append(added, c)
			}
		}
		if len(added) == 0 {
			continue
		}

		for _, row := range t.Rows {
			match, ok := s.Lookup(row[idColumn])
			for _, c := range added {
				if ok {
					row[c] = match[c]
				} else {
					row[c] = ""
				}
			}
		}
	}
}

// Execute joins every pollution file against every satellite table and
// writes the concatenation to <joined>/train_nulls.csv. Any failing file
// fails the run.
func (j *Joiner) Execute(ctx context.Context) (string, error) {
	locations, err := table.ReadCSV(j.LocationFile)
	if err != nil {
		return "", fmt.Errorf("sensor locations: %w", err)
	}
	for _, c := range []string{"device_name", "x", "y"} {
		if !locations.HasColumn(c) {
			return "", fmt.Errorf("sensor locations have no %s column", c)
		}
	}

	satellites, err := LoadSatellite(j.SatelliteDir, j.Aggregations)
	if err != nil {
		return "", err
	}

	names, err := table.ListCSV(j.PollutionDir)
	if err != nil {
		return "", fmt.Errorf("list pollution files: %w", err)
	}
	slog.Info("joining pollution data", "pollution_files", len(names), "satellite_tables", len(satellites))

	concurrency := j.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	joined := make([]*table.Table, len(names))
	errs := make([]error, len(names))
	sem := make(chan struct{}, concurrency)
	done := make(chan struct{}, len(names))
	for i, name := range names {
		sem <- struct{}{}
		go func(i int, name string) {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			joined[i], errs[i] = j.executeForFile(name, locations, satellites)
		}(i, name)
	}
	for range names {
		<-done
	}

	var result *multierror.Error
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", names[i], err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return "", err
	}

	train := table.Concat(joined...)
	if len(train.Columns) == 0 {
		return "", fmt.Errorf("no pollution data in %s", j.PollutionDir)
	}

	path := filepath.Join(j.JoinedDir, OutputFile)
	if err := table.WriteCSV(path, train); err != nil {
		return "", err
	}
	slog.Info("wrote training table", "path", path, "rows", train.Len())
	return path, nil
}

func (j *Joiner) executeForFile(name string, locations *table.Table, satellites []*Satellite) (*table.Table, error) {
	t, err := table.ReadCSV(filepath.Join(j.PollutionDir, name))
	if err != nil {
		return nil, err
	}

	loc, err := SensorLocation(locations, name)
	if err != nil {
		return nil, err
	}

	if err := PreparePollution(t, loc, j.Aggregations); err != nil {
		return nil, err
	}
	Join(t, satellites)
	return t, nil
}
