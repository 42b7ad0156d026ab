// Package predictions turns model prediction CSVs into GeoJSON points
// clipped to the configured countries.
package predictions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/rtree"

	"open-geo-engine/config"
	"open-geo-engine/table"
)

const MergedFile = "pm25_merged.geojson"

type Converter struct {
	Countries     []config.Country
	CSVFolder     string
	GeoJSONFolder string
	Concurrency   int

	index rtree.RTree
}

func New(countries []config.Country, cfg config.PredictionsConfig) *Converter {
	c := &Converter{
		Countries:     countries,
		CSVFolder:     cfg.CSVFolder,
		GeoJSONFolder: cfg.GeoJSONFolder,
	}
	for i, country := range countries {
		c.index.Insert(
			[2]float64{country.Bound.Min.X(), country.Bound.Min.Y()},
			[2]float64{country.Bound.Max.X(), country.Bound.Max.Y()},
			i,
		)
	}
	return c
}

// containing returns which countries' bounding boxes contain p, as a set of
// indexes into Countries.
func (c *Converter) containing(p orb.Point) map[int]bool {
	out := make(map[int]bool)
	c.index.Search([2]float64{p.X(), p.Y()}, [2]float64{p.X(), p.Y()},
		func(_, _ [2]float64, data interface{}) bool {
			out[data.(int)] = true
			return true
		})
	return out
}

// WeekBeginning returns the first date of a week label such as
// "2020-01-06_2020-01-13".
func WeekBeginning(week string) (string, error) {
	start, _, _ := strings.Cut(week, "_")
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(start))
	if err != nil {
		return "", fmt.Errorf("week %q: %w", week, err)
	}
	return t.Format(time.DateOnly), nil
}

func propertyValue(s string) any {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

// Clip converts the rows of t into point features. A row is emitted once for
// every country whose bounding box contains it, country by country.
func (c *Converter) Clip(t *table.Table) (*geojson.FeatureCollection, error) {
	for _, col := range []string{"longitude", "latitude", "week"} {
		if !t.HasColumn(col) {
			return nil, fmt.Errorf("missing column %s", col)
		}
	}

	perCountry := make([][]*geojson.Feature, len(c.Countries))
	for i, row := range t.Rows {
		lon, err := strconv.ParseFloat(row["longitude"], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: longitude: %w", i+1, err)
		}
		lat, err := strconv.ParseFloat(row["latitude"], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: latitude: %w", i+1, err)
		}
		week, err := WeekBeginning(row["week"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		p := orb.Point{lon, lat}
		for ci := range c.containing(p) {
			f := geojson.NewFeature(p)
			for _, col := range t.Columns {
				f.Properties[col] = propertyValue(row[col])
			}
			f.Properties["country"] = c.Countries[ci].Name
			f.Properties["week_beginning"] = week
			perCountry[ci] = append(perCountry[ci], f)
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, features := range perCountry {
		for _, f := range features {
			fc.Append(f)
		}
	}
	return fc, nil
}

// Execute writes <stem>_MN.geojson for every prediction CSV and the merge of
// all of them to pm25_merged.geojson. It returns the merged path.
func (c *Converter) Execute(ctx context.Context) (string, error) {
	names, err := table.ListCSV(c.CSVFolder)
	if err != nil {
		return "", fmt.Errorf("list predictions: %w", err)
	}
	slog.Info("converting predictions", "files", len(names), "countries", len(c.Countries))

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	collections := make([]*geojson.FeatureCollection, len(names))
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
			collections[i], errs[i] = c.executeForFile(name)
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

	merged := geojson.NewFeatureCollection()
	for _, fc := range collections {
		merged.Features = append(merged.Features, fc.Features...)
	}
	path := filepath.Join(c.GeoJSONFolder, MergedFile)
	if err := writeCollection(path, merged); err != nil {
		return "", err
	}
	slog.Info("wrote merged predictions", "path", path, "features", len(merged.Features))
	return path, nil
}

func (c *Converter) executeForFile(name string) (*geojson.FeatureCollection, error) {
	t, err := table.ReadCSV(filepath.Join(c.CSVFolder, name))
	if err != nil {
		return nil, err
	}
	fc, err := c.Clip(t)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(c.GeoJSONFolder, table.Stem(name)+"_MN.geojson")
	if err := writeCollection(out, fc); err != nil {
		return nil, err
	}
	return fc, nil
}

func writeCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
