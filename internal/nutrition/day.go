package nutrition

import (
	"fmt"
	"time"

	apperrors "nutritrack/internal/errors"
)

// DateLayout is the calendar-day format accepted in paths.
const DateLayout = "2006-01-02"

// ParseDay reads a calendar day as YYYY-MM-DD, or an RFC3339 timestamp whose
// date in loc is used. The result is midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if day, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return day, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		y, m, d := ts.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", apperrors.ErrInvalidInput)
}

// DayWindow returns [start of day, start of next day) for t's date in loc.
// AddDate keeps the window a calendar day across DST changes.
func DayWindow(t time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
