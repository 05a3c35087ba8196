// Package shift holds the business-day rules for work shifts.
package shift

import (
	"fmt"
	"time"
)

// DefaultBoundaryHour is the local hour before which a shift still
// belongs to the previous calendar day. Overnight shifts that end in the
// early morning are counted against the day they started.
const DefaultBoundaryHour = 7

// CurrentShiftDate returns the shift date (YYYY-MM-DD) for the given
// local wall-clock time. Before the boundary hour the date rolls back to
// yesterday.
func CurrentShiftDate(now time.Time, boundaryHour int) string {
	if boundaryHour <= 0 {
		boundaryHour = DefaultBoundaryHour
	}
	if now.Hour() < boundaryHour {
		now = now.AddDate(0, 0, -1)
	}
	return now.Format("2006-01-02")
}

// Duration renders the elapsed time between start and end (or now when
// end is nil) as "{H}h {M}m", truncating toward zero at the minute.
func Duration(start time.Time, end *time.Time, now time.Time) string {
	until := now
	if end != nil {
		until = *end
	}
	elapsed := until.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	hours := int(elapsed / time.Hour)
	minutes := int((elapsed % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
