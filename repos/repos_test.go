package repos

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-geo-engine/earthengine"
)

func TestSampleRows(t *testing.T) {
	runID := uuid.Must(uuid.NewV4())
	dt := time.UnixMilli(1578220800000).UTC()
	samples := []earthengine.Sample{
		{Longitude: -3.6833, Latitude: 40.415, Time: 1578220800000, Datetime: dt, Values: map[string]float64{"B4": 6869, "B3": 6511}},
		{Longitude: -3.6833, Latitude: 40.415, Time: 1578220800000, Datetime: dt, Values: map[string]float64{"B3": 1}},
	}

	rows := sampleRows(runID, samples, []string{"B4", "B3"})
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], len(sampleColumns))
	assert.Equal(t, "B4", rows[0][4])
	assert.Equal(t, 6869.0, rows[0][5])
	assert.Equal(t, "B3", rows[2][4])
	assert.Equal(t, dt, rows[2][3])
	assert.Equal(t, pgUUID(runID), rows[0][0])
}

func TestSampleRowsEmpty(t *testing.T) {
	assert.Empty(t, sampleRows(uuid.Nil, nil, []string{"B4"}))
}
