package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-geo-engine/buildings"
	"open-geo-engine/config"
)

type mockComputer struct {
	mu      sync.Mutex
	fail    map[float64]bool // by longitude
	exports []ExportRequest
}

func (m *mockComputer) Compute(_ context.Context, expr Expression) (json.RawMessage, error) {
	raw, err := json.Marshal(expr.Values[expr.Result])
	if err != nil {
		return nil, err
	}
	var node struct {
		FunctionInvocationValue struct {
			Arguments struct {
				Geometry struct {
					FunctionInvocationValue struct {
						Arguments struct {
							Coordinates struct {
								ConstantValue []float64 `json:"constantValue"`
							} `json:"coordinates"`
						} `json:"arguments"`
					} `json:"functionInvocationValue"`
				} `json:"geometry"`
			} `json:"arguments"`
		} `json:"functionInvocationValue"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	coords := node.FunctionInvocationValue.Arguments.Geometry.FunctionInvocationValue.Arguments.Coordinates.ConstantValue
	if m.fail[coords[0]] {
		return nil, errors.New("boom")
	}
	return json.RawMessage(fmt.Sprintf(
		`[["id","longitude","latitude","time","B4"],["img",%g,%g,1578220800000,100]]`,
		coords[0], coords[1])), nil
}

func (m *mockComputer) Export(_ context.Context, req ExportRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports = append(m.exports, req)
	return fmt.Sprintf("operations/%d", len(m.exports)), nil
}

func testLoader(c Computer) *Loader {
	cfg := config.Default().Data
	cfg.ImageBands = []string{"B4"}
	cfg.YearEnd, cfg.MonEnd, cfg.DateEnd = 2020, 1, 15
	l, err := NewLoader(c, cfg)
	if err != nil {
		panic(err)
	}
	return l
}

func centroids(n int) []buildings.Building {
	out := make([]buildings.Building, n)
	for i := range out {
		out[i] = buildings.Building{OSMType: "way", OSMID: int64(i), Centroid: orb.Point{float64(i), 40}}
	}
	return out
}

func TestForCentroidsKeepsOrder(t *testing.T) {
	l := testLoader(&mockComputer{})
	samples, err := l.ForCentroids(context.Background(), centroids(5))
	require.NoError(t, err)
	require.Len(t, samples, 5)
	for i, s := range samples {
		assert.Equal(t, float64(i), s.Longitude)
		assert.Equal(t, 100.0, s.Values["B4"])
	}
}

func TestForCentroidsToleratesFewErrors(t *testing.T) {
	l := testLoader(&mockComputer{fail: map[float64]bool{3: true}})
	samples, err := l.ForCentroids(context.Background(), centroids(20))
	require.NoError(t, err)
	assert.Len(t, samples, 19)
}

func TestForCentroidsTooManyErrors(t *testing.T) {
	l := testLoader(&mockComputer{fail: map[float64]bool{1: true, 2: true}})
	_, err := l.ForCentroids(context.Background(), centroids(10))
	assert.ErrorContains(t, err, "too many errors")
}

func TestExportCountries(t *testing.T) {
	m := &mockComputer{}
	l := testLoader(m)
	countries := []config.Country{
		{Code: "ES", Bound: orb.Bound{Min: orb.Point{-9, 35}, Max: orb.Point{3, 43}}},
		{Code: "GB", Bound: orb.Bound{Min: orb.Point{-7, 49}, Max: orb.Point{1, 58}}},
	}

	ops, err := l.ExportCountries(context.Background(), countries)
	require.NoError(t, err)
	assert.Equal(t, []string{"operations/1", "operations/2", "operations/3", "operations/4"}, ops)

	require.Len(t, m.exports, 4)
	assert.Equal(t, "LANDSAT_2020-01-01_2020-01-08", m.exports[0].Description)
	assert.Equal(t, "LANDSAT_2020-01-08_2020-01-15", m.exports[1].Description)
	assert.Equal(t, "gb_LANDSAT_2020-01-01_2020-01-08", m.exports[2].FileExportOptions.DriveDestination.FilenamePrefix)
	assert.Equal(t, "ee_data", m.exports[0].FileExportOptions.DriveDestination.Folder)
	assert.NotEqual(t, m.exports[0].RequestID, m.exports[1].RequestID)
}
