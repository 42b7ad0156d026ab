package joiner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-geo-engine/aggregate"
	"open-geo-engine/config"
	"open-geo-engine/table"
)

const (
	testLocations = `device_name,x,y
madrid_retiro_01,-3.683317243711068,40.41498005371624
madrid_centro_02,-3.7038,40.4168
`
	testPollution = `timestamp,pm25
2020-01-10 09,12.5
2020-01-10 10,13
2020-01-26 11,8
2020-02-03 00,20
`
	testDaily = `datetime,latitude,longitude,B4,B3
2020-01-10,40.4150,-3.6833,6961,7177
2020-01-10,40.4150,-3.6833,1,1
2020-01-26,40.4150,-3.6833,6000,7069
2020-01-26,40.4168,-3.7038,5000,5000
`
	testMonthly = `month,latitude,longitude,B4,avg_rad
2020-01,40.4150,-3.6833,6640,2.5
`
)

func readTest(t *testing.T, s string) *table.Table {
	t.Helper()
	tbl, err := table.Read(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestSensorLocation(t *testing.T) {
	locs := readTest(t, testLocations)

	loc, err := SensorLocation(locs, "retiro_01.csv")
	require.NoError(t, err)
	assert.Equal(t, Location{DeviceName: "madrid_retiro_01", Latitude: "40.4150", Longitude: "-3.6833"}, loc)

	_, err = SensorLocation(locs, "barcelona.csv")
	assert.ErrorContains(t, err, "no sensor location")

	_, err = SensorLocation(locs, "madrid.csv")
	assert.ErrorContains(t, err, "2 sensor locations match madrid")
}

func TestPreparePollution(t *testing.T) {
	p := readTest(t, testPollution)
	loc := Location{Latitude: "40.4150", Longitude: "-3.6833"}
	require.NoError(t, PreparePollution(p, loc, []aggregate.Aggregation{aggregate.Date, aggregate.Month}))

	assert.Equal(t, []string{"timestamp", "pm25", "latitude", "longitude", "datetime", "month", "unique_id_datetime", "unique_id_month"}, p.Columns)
	row := p.Rows[0]
	assert.Equal(t, "2020-01-10", row["datetime"])
	assert.Equal(t, "2020-01", row["month"])
	assert.Equal(t, "2020-01-10_40.4150_-3.6833", row["unique_id_datetime"])
	assert.Equal(t, "2020-01_40.4150_-3.6833", row["unique_id_month"])
}

func TestPreparePollutionBadTimestamp(t *testing.T) {
	p := readTest(t, "timestamp,pm25\n2020-01-10T09:00,1\n")
	err := PreparePollution(p, Location{}, nil)
	assert.ErrorContains(t, err, "row 1: timestamp")
}

func TestJoin(t *testing.T) {
	daily, err := IndexSatellite("date/a.csv", readTest(t, testDaily), aggregate.Date)
	require.NoError(t, err)
	monthly, err := IndexSatellite("month/a.csv", readTest(t, testMonthly), aggregate.Month)
	require.NoError(t, err)

	p := readTest(t, testPollution)
	loc := Location{Latitude: "40.4150", Longitude: "-3.6833"}
	require.NoError(t, PreparePollution(p, loc, []aggregate.Aggregation{aggregate.Date, aggregate.Month}))

	Join(p, []*Satellite{daily, monthly})

	assert.Equal(t, []string{
		"timestamp", "pm25", "latitude", "longitude", "datetime", "month",
		"unique_id_datetime", "unique_id_month", "B4", "B3", "avg_rad",
	}, p.Columns)

	// duplicate satellite keys keep the first row
	assert.Equal(t, "6961", p.Rows[0]["B4"])
	assert.Equal(t, "6961", p.Rows[1]["B4"])
	assert.Equal(t, "2.5", p.Rows[0]["avg_rad"])

	// the monthly B4 never overwrites the daily one
	assert.Equal(t, "6000", p.Rows[2]["B4"])

	// no satellite data for February
	assert.Equal(t, "", p.Rows[3]["B4"])
	assert.Equal(t, "", p.Rows[3]["avg_rad"])
}

func TestIndexSatelliteNeedsKeyColumn(t *testing.T) {
	_, err := IndexSatellite("x.csv", readTest(t, testDaily), aggregate.Month)
	assert.ErrorContains(t, err, "has no month column")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestJoinerExecute(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sensor_locations.csv"), testLocations)
	writeFile(t, filepath.Join(dir, "pollution", "retiro_01.csv"), testPollution)
	writeFile(t, filepath.Join(dir, "pollution", "centro_02.csv"), "timestamp,pm25\n2020-01-26 08,30\n")
	writeFile(t, filepath.Join(dir, "described", "date", "madrid.csv"), testDaily)
	writeFile(t, filepath.Join(dir, "described", "month", "madrid.csv"), testMonthly)

	j, err := New(config.JoinerConfig{
		LocationFile:     filepath.Join(dir, "sensor_locations.csv"),
		SatelliteDir:     filepath.Join(dir, "described"),
		PollutionDir:     filepath.Join(dir, "pollution"),
		TimeAggregations: []string{"date", "month"},
		JoinedDir:        filepath.Join(dir, "joined"),
	})
	require.NoError(t, err)

	path, err := j.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "joined", "train_nulls.csv"), path)

	train, err := table.ReadCSV(path)
	require.NoError(t, err)
	require.Equal(t, 5, train.Len())

	// files are concatenated in name order
	centro := train.Rows[0]
	assert.Equal(t, "30", centro["pm25"])
	assert.Equal(t, "40.4168", centro["latitude"])
	assert.Equal(t, "5000", centro["B4"])
	assert.Equal(t, "", centro["avg_rad"])

	assert.Equal(t, "6961", train.Rows[1]["B4"])
}

func TestJoinerExecuteFailsOnUnknownSensor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sensor_locations.csv"), testLocations)
	writeFile(t, filepath.Join(dir, "pollution", "valencia.csv"), testPollution)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "described", "date"), 0755))

	j := &Joiner{
		LocationFile: filepath.Join(dir, "sensor_locations.csv"),
		SatelliteDir: filepath.Join(dir, "described"),
		PollutionDir: filepath.Join(dir, "pollution"),
		JoinedDir:    filepath.Join(dir, "joined"),
		Aggregations: []aggregate.Aggregation{aggregate.Date},
	}
	_, err := j.Execute(context.Background())
	assert.ErrorContains(t, err, "valencia.csv: no sensor location matches valencia")
}
