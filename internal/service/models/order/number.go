package order

import (
	"fmt"
	"time"
)

// DefaultNumberPrefix prefixes every human readable order number.
const DefaultNumberPrefix = "ORD-"

// FormatNumber renders prefix + YYMMDD + "-" + 4 digit daily sequence.
func FormatNumber(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s-%04d", prefix, day.Format("060102"), seq)
}

// Day truncates t to the start of its calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
