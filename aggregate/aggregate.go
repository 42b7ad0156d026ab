// Package aggregate averages satellite samples per day or per month at
// coordinates rounded to four decimals.
package aggregate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"open-geo-engine/table"
)

type Aggregation string

const (
	Date  Aggregation = "date"
	Month Aggregation = "month"
)

func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(s))) {
	case Date:
		return Date, nil
	case Month:
		return Month, nil
	default:
		return "", fmt.Errorf("unknown time aggregation %q (want date or month)", s)
	}
}

// KeyColumn is the name of the period column of aggregated tables.
func (a Aggregation) KeyColumn() string {
	if a == Month {
		return "month"
	}
	return "datetime"
}

func (a Aggregation) Period(t time.Time) string {
	if a == Month {
		return t.Format("2006-01")
	}
	return t.Format(time.DateOnly)
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05.000",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15",
	time.DateOnly,
}

func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", s)
}

func RoundCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func RoundCoordinateString(s string) (string, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return "", err
	}
	return RoundCoordinate(v), nil
}

var nonValueColumns = map[string]bool{
	"latitude":  true,
	"longitude": true,
	"time":      true,
	"datetime":  true,
	"month":     true,
}

// valueColumns returns the columns of t whose non-empty cells all parse as
// numbers, in table order.
func valueColumns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if nonValueColumns[c] {
			continue
		}
		numeric := true
		for _, row := range t.Rows {
			if s := row[c]; s != "" {
				if _, err := strconv.ParseFloat(s, 64); err != nil {
					numeric = false
					break
				}
			}
		}
		if numeric {
			out = append(out, c)
		}
	}
	return out
}

type groupKey struct {
	period    string
	latitude  string
	longitude string
}

type group struct {
	sums   []float64
	counts []int
}

// Aggregate groups t by (period, latitude, longitude) and averages every
// numeric column. Empty cells are skipped; a group with no values for a
// column gets an empty cell.
func Aggregate(t *table.Table, agg Aggregation) (*table.Table, error) {
	for _, c := range []string{"latitude", "longitude", "datetime"} {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("missing column %s", c)
		}
	}

	values := valueColumns(t)
	groups := make(map[groupKey]*group)
	for i, row := range t.Rows {
		lat, err := RoundCoordinateString(row["latitude"])
		if err != nil {
			return nil, fmt.Errorf("row %d: latitude: %w", i+1, err)
		}
		lon, err := RoundCoordinateString(row["longitude"])
		if err != nil {
			return nil, fmt.Errorf("row %d: longitude: %w", i+1, err)
		}
		dt, err := ParseDatetime(row["datetime"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		key := groupKey{agg.Period(dt), lat, lon}
		g, ok := groups[key]
		if !ok {
			g = &group{sums: make([]float64, len(values)), counts: make([]int, len(values))}
			groups[key] = g
		}
		for j, c := range values {
			v, ok, err := t.Float(row, c)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			if ok {
				g.sums[j] += v
				g.counts[j]++
			}
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)

	out := table.New(append([]string{agg.KeyColumn(), "latitude", "longitude"}, values...)...)
	for _, k := range keys {
		g := groups[k]
		row := table.Row{
			agg.KeyColumn(): k.period,
			"latitude":      k.latitude,
			"longitude":     k.longitude,
		}
		for j, c := range values {
			if g.counts[j] > 0 {
				row[c] = strconv.FormatFloat(g.sums[j]/float64(g.counts[j]), 'f', -1, 64)
			}
		}
		out.Append(row)
	}
	return out, nil
}

func compareKeys(a, b groupKey) int {
	if c := strings.Compare(a.period, b.period); c != 0 {
		return c
	}
	if c := compareNumeric(a.latitude, b.latitude); c != 0 {
		return c
	}
	return compareNumeric(a.longitude, b.longitude)
}

func compareNumeric(a, b string) int {
	x, _ := strconv.ParseFloat(a, 64)
	y, _ := strconv.ParseFloat(b, 64)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
