package earthengine

import (
	_ "embed"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/region.json
var testRegion []byte

func TestArrayToSamples(t *testing.T) {
	arr, err := DecodeRegion(testRegion)
	require.NoError(t, err)

	samples, err := ArrayToSamples(arr, []string{"B4", "B3", "B2"})
	require.NoError(t, err)

	// rows missing a coordinate or band are dropped
	require.Len(t, samples, 2)

	first := samples[0]
	assert.Equal(t, -3.6833, first.Longitude)
	assert.Equal(t, 40.415, first.Latitude)
	assert.Equal(t, int64(1578220800000), first.Time)
	assert.Equal(t, time.Date(2020, 1, 5, 10, 40, 0, 0, time.UTC), first.Datetime)
	assert.Equal(t, map[string]float64{"B4": 6869, "B3": 6511, "B2": 6930}, first.Values)

	// non-numeric band value is left missing
	assert.Equal(t, map[string]float64{"B4": 7100, "B2": 7400}, samples[1].Values)
}

func TestArrayToSamplesMissingBand(t *testing.T) {
	arr := [][]any{{"id", "longitude", "latitude", "time", "B4"}}
	_, err := ArrayToSamples(arr, []string{"B5"})
	assert.ErrorContains(t, err, "no B5 column")

	_, err = ArrayToSamples(nil, nil)
	assert.Error(t, err)
}

func TestSamplesTable(t *testing.T) {
	samples := []Sample{{
		Longitude: -3.6833,
		Latitude:  40.415,
		Time:      1578220800000,
		Datetime:  time.UnixMilli(1578220800000).UTC(),
		Values:    map[string]float64{"B4": 6869.5},
	}}

	tbl := SamplesTable(samples, []string{"B4", "B3"})
	assert.Equal(t, []string{"longitude", "latitude", "time", "datetime", "B4", "B3"}, tbl.Columns)
	require.Equal(t, 1, tbl.Len())
	row := tbl.Rows[0]
	assert.Equal(t, "-3.6833", row["longitude"])
	assert.Equal(t, "2020-01-05 10:40:00.000", row["datetime"])
	assert.Equal(t, "6869.5", row["B4"])
	assert.Equal(t, "", row["B3"])
}
