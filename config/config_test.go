package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, []string{"B4", "B3", "B2"}, cfg.Data.ImageBands)
	assert.Equal(t, map[string][]string{"building": nil}, cfg.OSM.Tags)
	assert.Equal(t, []string{"date", "month"}, cfg.Joiner.TimeAggregations)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  country_codes: [MN]
  year: 2019
  mon_start: 6
  date_start: 15
  year_end: 2019
  mon_end: 7
  date_end: 1
  image_bands: [avg_rad]
osm:
  tags:
    leisure: [park]
  points:
    - [106.9, 47.9]
cache:
  kind: redis
  ttl: 1h
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"avg_rad"}, cfg.Data.ImageBands)
	assert.Equal(t, map[string][]string{"leisure": {"park"}}, cfg.OSM.Tags)
	assert.Equal(t, [][2]float64{{106.9, 47.9}}, cfg.OSM.Points)
	assert.Equal(t, "redis", cfg.Cache.Kind)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "LANDSAT/LC08/C01/T1", cfg.Data.ImageCollection)

	start, end, err := cfg.Data.DateRange()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 6, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC), end)

	countries, err := cfg.Data.Countries()
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "MN", countries[0].Code)
	assert.Equal(t, "Mongolia", countries[0].Name)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data: [\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCountries(t *testing.T) {
	d := Default().Data
	d.CountryCodes = []string{"es", "FR", "WO"}

	got, err := d.Countries()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Spain", got[0].Name)
	assert.InDelta(t, -9.39288367353, got[0].Bound.Min.Lon(), 1e-9)
	// no bounding box for France is configured
	assert.Equal(t, orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}, got[1].Bound)
	assert.Equal(t, "WO", got[2].Code)

	for _, code := range []string{"NOTACOUNTRY", "ESP", "Spain", "E"} {
		d.CountryCodes = []string{code}
		_, err = d.Countries()
		assert.Error(t, err, code)
	}
}

func TestDateRangeRejectsReversed(t *testing.T) {
	d := Default().Data
	d.Year, d.YearEnd = 2021, 2020
	_, _, err := d.DateRange()
	assert.Error(t, err)
}

func TestDateRangeRejectsInvalidDates(t *testing.T) {
	d := Default().Data
	d.Year, d.MonStart, d.DateStart = 2021, 2, 30
	d.YearEnd, d.MonEnd, d.DateEnd = 2022, 1, 1
	_, _, err := d.DateRange()
	assert.ErrorContains(t, err, "2021-02-30")

	d.Year, d.MonStart, d.DateStart = 2020, 1, 1
	d.MonEnd = 13
	_, _, err = d.DateRange()
	assert.ErrorContains(t, err, "end date")

	d.MonEnd = 1
	start, end, err := d.DateRange()
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", start.Format(time.DateOnly))
	assert.Equal(t, "2022-01-01", end.Format(time.DateOnly))
}

func TestUsePlaceDropsPoints(t *testing.T) {
	cfg := Default()
	cfg.OSM.Points = [][2]float64{{106.9, 47.9}}

	cfg.OSM.UsePlace("Ulaanbaatar")
	assert.Equal(t, "Ulaanbaatar", cfg.OSM.Place)
	assert.Empty(t, cfg.OSM.Points)
}
