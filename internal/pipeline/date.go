package pipeline

import (
	"math"
	"strings"
	"time"

	"report-dashboard/internal/models"
)

const msPerDay = 86_400_000

// serialEpoch is day zero of the 1900 serial date system, phantom
// 1900-02-29 included.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01",
}

// Normalize converts a cell to a calendar date. Numeric cells are serial
// dates; text is parsed with a fixed set of locale-independent layouts.
// Anything else yields the invalid sentinel.
func Normalize(raw models.RawValue) models.Date {
	if !raw.Present {
		return models.Date{}
	}
	if raw.IsNumber {
		return FromSerial(raw.Number)
	}
	return ParseDate(raw.Text)
}

// maxDateMillis bounds representable dates to +/-100,000,000 days from the
// Unix epoch, the range spreadsheet and browser dates share.
const maxDateMillis = 8.64e15

func FromSerial(serial float64) models.Date {
	ms := float64(serialEpoch.UnixMilli()) + serial*msPerDay
	if math.IsNaN(ms) || math.Abs(ms) > maxDateMillis {
		return models.Date{}
	}
	return models.NewDate(time.UnixMilli(int64(ms)).UTC())
}

func ParseDate(s string) models.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.NewDate(t)
		}
	}
	return models.Date{}
}
