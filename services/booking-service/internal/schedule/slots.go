package schedule

import (
	"iter"
	"time"
)

// Engine derives candidate appointment slots from the business working hours.
// All instants it produces are anchored in the business location.
type Engine struct {
	hours WeekHours
	step  time.Duration
	loc   *time.Location
}

func NewEngine(hours WeekHours, step time.Duration, loc *time.Location) *Engine {
	return &Engine{hours: hours, step: step, loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// DayStart returns local midnight of the calendar day containing t.
func (e *Engine) DayStart(t time.Time) time.Time {
	t = t.In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

// IsOpen reports whether the business has any working window on the given day.
func (e *Engine) IsOpen(day time.Time) bool {
	open, close := e.hours.For(day.In(e.loc))
	return open < close
}

// Slots enumerates every candidate slot of the given duration within the
// day's working window, stepping by the configured granularity. Candidate
// starts are grid-aligned regardless of duration; a slot ending exactly at
// closing time is still valid. The sequence is lazy, finite and restartable.
func (e *Engine) Slots(day time.Time, duration time.Duration) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if duration <= 0 || e.step <= 0 {
			return
		}
		day = day.In(e.loc)
		open, close := e.hours.For(day)
		if open >= close {
			return
		}
		openAt := time.Date(day.Year(), day.Month(), day.Day(), open/60, open%60, 0, 0, e.loc)
		closeAt := time.Date(day.Year(), day.Month(), day.Day(), close/60, close%60, 0, 0, e.loc)
		for t := openAt; !t.Add(duration).After(closeAt); t = t.Add(e.step) {
			if !yield(Interval{Start: t, End: t.Add(duration)}) {
				return
			}
		}
	}
}
