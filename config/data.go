package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/paulmach/orb"
)

// BBox is min lon, min lat, max lon, max lat.
type BBox [4]float64

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
}

const World = "WO"

var defaultBoundingBoxes = map[string]BBox{
	World: {-180, -90, 180, 90},
	"ES":  {-9.39288367353, 35.946850084, 3.03948408368, 43.7483377142},
	"GB":  {-7.57216793459, 49.959999905, 1.68153079591, 58.6350001085},
	"MN":  {87.7512642761, 41.5974095729, 119.772823928, 52.0473660345},
}

type Country struct {
	Code  string
	Name  string
	Bound orb.Bound
}

// Countries resolves the configured country codes. A code without a
// configured bounding box falls back to the whole world.
func (d DataConfig) Countries() ([]Country, error) {
	out := make([]Country, 0, len(d.CountryCodes))
	for _, code := range d.CountryCodes {
		code = strings.ToUpper(code)
		if code == World {
			out = append(out, Country{Code: World, Name: "World", Bound: d.CountryBoundingBoxes[World].Bound()})
			continue
		}

		cc := countries.ByName(code)
		if len(code) != 2 || cc == countries.Unknown || cc.Alpha2() != code {
			return nil, fmt.Errorf("unknown country code %q (want ISO 3166-1 alpha-2)", code)
		}

		bbox, ok := d.CountryBoundingBoxes[code]
		if !ok {
			slog.Warn("no bounding box for country, using world", "country", code)
			bbox = d.CountryBoundingBoxes[World]
		}
		out = append(out, Country{Code: code, Name: cc.String(), Bound: bbox.Bound()})
	}
	return out, nil
}

// DateRange returns the configured start and end dates in UTC.
func (d DataConfig) DateRange() (time.Time, time.Time, error) {
	start, err := date(d.Year, d.MonStart, d.DateStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	end, err := date(d.YearEnd, d.MonEnd, d.DateEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}

// date rejects days and months that time.Date would normalize into another
// date, such as February 30.
func date(year, month, day int) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}
