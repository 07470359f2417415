package schedule

import "time"

// WeekHours holds the open/close windows as minutes from midnight, one pair
// for weekdays and one for weekends.
type WeekHours struct {
	WeekdayOpen  int
	WeekdayClose int
	WeekendOpen  int
	WeekendClose int
}

// For returns the open/close window applicable to the given date's weekday.
// A window with open >= close means the business is closed that day; callers
// treat it as zero capacity, not as an error.
func (h WeekHours) For(day time.Time) (open, close int) {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return h.WeekendOpen, h.WeekendClose
	default:
		return h.WeekdayOpen, h.WeekdayClose
	}
}
