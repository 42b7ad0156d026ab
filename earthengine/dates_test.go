package earthengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWeeklyDatesYear(t *testing.T) {
	dates := WeeklyDates(day("2020-01-01"), day("2021-01-01"))
	assert.Len(t, dates, 53)
	assert.Equal(t, day("2020-01-01"), dates[0])
	assert.Equal(t, day("2020-01-08"), dates[1])
	assert.Equal(t, day("2020-12-30"), dates[52])

	windows := Windows(dates)
	assert.Len(t, windows, 52)
	assert.Equal(t, DateRange{Start: day("2020-12-23"), End: day("2020-12-30")}, windows[51])
}

func TestWeeklyDatesIncludesEnd(t *testing.T) {
	dates := WeeklyDates(day("2020-01-01"), day("2020-01-15"))
	assert.Equal(t, []time.Time{day("2020-01-01"), day("2020-01-08"), day("2020-01-15")}, dates)
}

func TestWindowsNeedTwoDates(t *testing.T) {
	assert.Empty(t, Windows(WeeklyDates(day("2020-01-01"), day("2020-01-03"))))
	assert.Empty(t, Windows(nil))
}
