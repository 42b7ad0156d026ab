package earthengine

import "time"

type DateRange struct {
	Start time.Time
	End   time.Time
}

// WeeklyDates returns start and every seventh day after it up to and
// including end.
func WeeklyDates(start, end time.Time) []time.Time {
	days := int(end.AddDate(0, 0, 1).Sub(start).Hours() / 24)
	var out []time.Time
	for i := 0; i < days; i += 7 {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}

// Windows pairs consecutive dates. Fewer than two dates give no windows.
func Windows(dates []time.Time) []DateRange {
	var out []DateRange
	for i := 0; i+1 < len(dates); i++ {
		out = append(out, DateRange{Start: dates[i], End: dates[i+1]})
	}
	return out
}
