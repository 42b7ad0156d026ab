package earthengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"open-geo-engine/table"
)

const DatetimeLayout = "2006-01-02 15:04:05.000"

// Sample is one pixel value set of one image at one location.
type Sample struct {
	Longitude float64
	Latitude  float64
	Time      int64 // milliseconds since the epoch
	Datetime  time.Time
	Values    map[string]float64
}

// DecodeRegion parses the raw result of a getRegion computation.
func DecodeRegion(raw json.RawMessage) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var arr [][]any
	if err := dec.Decode(&arr); err != nil {
		return nil, fmt.Errorf("decode region: %w", err)
	}
	return arr, nil
}

// ArrayToSamples converts a getRegion table into samples. The first row is
// the header. Rows missing a coordinate, the time or any band are dropped;
// a band value that is not numeric is left out of Values.
func ArrayToSamples(arr [][]any, bands []string) ([]Sample, error) {
	if len(arr) == 0 {
		return nil, fmt.Errorf("empty region: no header row")
	}

	index := make(map[string]int)
	for i, h := range arr[0] {
		name, ok := h.(string)
		if !ok {
			return nil, fmt.Errorf("header column %d is not a string: %v", i, h)
		}
		index[name] = i
	}

	required := append([]string{"longitude", "latitude", "time"}, bands...)
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("region has no %s column", name)
		}
	}

	var out []Sample
	for _, row := range arr[1:] {
		if !hasValues(row, index, required) {
			continue
		}

		lon, err := toFloat(row[index["longitude"]])
		if err != nil {
			return nil, fmt.Errorf("longitude: %w", err)
		}
		lat, err := toFloat(row[index["latitude"]])
		if err != nil {
			return nil, fmt.Errorf("latitude: %w", err)
		}
		ms, err := toInt(row[index["time"]])
		if err != nil {
			return nil, fmt.Errorf("time: %w", err)
		}

		s := Sample{
			Longitude: lon,
			Latitude:  lat,
			Time:      ms,
			Datetime:  time.UnixMilli(ms).UTC(),
			Values:    make(map[string]float64, len(bands)),
		}
		for _, band := range bands {
			v, err := toFloat(row[index[band]])
			if err != nil {
				continue
			}
			s.Values[band] = v
		}
		out = append(out, s)
	}
	return out, nil
}

func hasValues(row []any, index map[string]int, names []string) bool {
	for _, name := range names {
		i := index[name]
		if i >= len(row) || row[i] == nil {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toInt(v any) (int64, error) {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		return int64(f), err
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

// SamplesTable flattens samples into the columns
// longitude, latitude, time, datetime, bands...
func SamplesTable(samples []Sample, bands []string) *table.Table {
	t := table.New(append([]string{"longitude", "latitude", "time", "datetime"}, bands...)...)
	for _, s := range samples {
		row := table.Row{
			"longitude": strconv.FormatFloat(s.Longitude, 'f', -1, 64),
			"latitude":  strconv.FormatFloat(s.Latitude, 'f', -1, 64),
			"time":      strconv.FormatInt(s.Time, 10),
			"datetime":  s.Datetime.Format(DatetimeLayout),
		}
		for _, band := range bands {
			if v, ok := s.Values[band]; ok {
				row[band] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		t.Append(row)
	}
	return t
}
