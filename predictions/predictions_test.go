package predictions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-geo-engine/config"
	"open-geo-engine/table"
)

const testPredictions = `longitude,latitude,week,pm25
106.9,47.9,2020-01-06_2020-01-13,55.2
-3.68,40.41,2020-01-06_2020-01-13,12
150,-30,2020-01-13_2020-01-20,9
`

func testCountries() []config.Country {
	return []config.Country{
		{Code: "MN", Name: "Mongolia", Bound: orb.Bound{Min: orb.Point{87.75, 41.59}, Max: orb.Point{119.77, 52.04}}},
		{Code: "WO", Name: "World", Bound: orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}},
	}
}

func TestWeekBeginning(t *testing.T) {
	got, err := WeekBeginning("2020-01-06_2020-01-13")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-06", got)

	got, err = WeekBeginning("2020-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-06", got)

	_, err = WeekBeginning("week1_2020")
	assert.Error(t, err)
}

func TestClip(t *testing.T) {
	tbl, err := table.Read(strings.NewReader(testPredictions))
	require.NoError(t, err)

	fc, err := New(testCountries(), config.PredictionsConfig{}).Clip(tbl)
	require.NoError(t, err)

	// one Mongolian point, then every point again for the world
	require.Len(t, fc.Features, 4)

	first := fc.Features[0]
	assert.Equal(t, orb.Point{106.9, 47.9}, first.Geometry)
	assert.Equal(t, "Mongolia", first.Properties["country"])
	assert.Equal(t, "2020-01-06", first.Properties["week_beginning"])
	assert.Equal(t, "2020-01-06_2020-01-13", first.Properties["week"])
	assert.Equal(t, 55.2, first.Properties["pm25"])

	for _, f := range fc.Features[1:] {
		assert.Equal(t, "World", f.Properties["country"])
	}
	assert.Equal(t, "2020-01-13", fc.Features[3].Properties["week_beginning"])
}

func TestClipNeedsWeek(t *testing.T) {
	tbl, err := table.Read(strings.NewReader("longitude,latitude,pm25\n1,2,3\n"))
	require.NoError(t, err)
	_, err = New(testCountries(), config.PredictionsConfig{}).Clip(tbl)
	assert.ErrorContains(t, err, "missing column week")
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	csvDir := filepath.Join(dir, "csv")
	require.NoError(t, os.MkdirAll(csvDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(csvDir, "week_01.csv"), []byte(testPredictions), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(csvDir, "week_02.csv"),
		[]byte("longitude,latitude,week,pm25\n100,45,2020-01-13_2020-01-20,40\n"), 0644))

	c := New(testCountries()[:1], config.PredictionsConfig{
		CSVFolder:     csvDir,
		GeoJSONFolder: filepath.Join(dir, "geojson"),
	})
	path, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "geojson", MergedFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	merged, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, merged.Features, 2)
	assert.Equal(t, 55.2, merged.Features[0].Properties["pm25"])
	assert.Equal(t, 40.0, merged.Features[1].Properties["pm25"])

	_, err = os.Stat(filepath.Join(dir, "geojson", "week_01_MN.geojson"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "geojson", "week_02_MN.geojson"))
	assert.NoError(t, err)
}
