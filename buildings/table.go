package buildings

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"open-geo-engine/table"
)

const tagPrefix = "tag:"

var baseColumns = []string{"osm_type", "osm_id", "location", "longitude", "latitude", "h3_cell", "geometry_wkt"}

// ToTable flattens buildings into one row each. Tag columns follow the base
// columns, sorted by key.
func ToTable(buildings []Building) *table.Table {
	tagKeys := make(map[string]bool)
	for _, b := range buildings {
		for k := range b.Tags {
			tagKeys[k] = true
		}
	}
	var keys []string
	for k := range tagKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t := table.New(slices.Clone(baseColumns)...)
	for _, k := range keys {
		t.AddColumn(tagPrefix + k)
	}

	for _, b := range buildings {
		row := table.Row{
			"osm_type":     b.OSMType,
			"osm_id":       strconv.FormatInt(b.OSMID, 10),
			"location":     b.Location,
			"longitude":    strconv.FormatFloat(b.Centroid.Lon(), 'f', -1, 64),
			"latitude":     strconv.FormatFloat(b.Centroid.Lat(), 'f', -1, 64),
			"h3_cell":      b.H3Cell,
			"geometry_wkt": "",
		}
		if b.Geometry != nil {
			row["geometry_wkt"] = wkt.MarshalString(b.Geometry)
		}
		for k, v := range b.Tags {
			row[tagPrefix+k] = v
		}
		t.Append(row)
	}
	return t
}

// FromTable reads buildings written by ToTable. Only the centroid is
// required; geometry and tags are restored when present.
func FromTable(t *table.Table) ([]Building, error) {
	out := make([]Building, 0, t.Len())
	for i, row := range t.Rows {
		lon, err := strconv.ParseFloat(row["longitude"], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: longitude: %w", i, err)
		}
		lat, err := strconv.ParseFloat(row["latitude"], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: latitude: %w", i, err)
		}

		b := Building{
			OSMType:  row["osm_type"],
			Location: row["location"],
			Centroid: orb.Point{lon, lat},
			H3Cell:   row["h3_cell"],
		}
		if s := row["osm_id"]; s != "" {
			b.OSMID, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: osm_id: %w", i, err)
			}
		}
		if s := row["geometry_wkt"]; s != "" {
			b.Geometry, err = wkt.Unmarshal(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: geometry: %w", i, err)
			}
		}
		for _, c := range t.Columns {
			key, ok := strings.CutPrefix(c, tagPrefix)
			if !ok || key == "" || row[c] == "" {
				continue
			}
			if b.Tags == nil {
				b.Tags = make(map[string]string)
			}
			b.Tags[key] = row[c]
		}
		out = append(out, b)
	}
	return out, nil
}
