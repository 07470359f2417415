package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
)

// BookedLister is the read side of the appointment store the resolver needs:
// all appointments starting within [from, to), ascending by start.
type BookedLister interface {
	ListByDay(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

// Resolver combines generated candidate slots with stored bookings to produce
// the offerable subset for a day. Results are a point-in-time snapshot, not a
// reservation.
type Resolver struct {
	engine *Engine
	store  BookedLister
	now    func() time.Time
}

func NewResolver(engine *Engine, store BookedLister, now func() time.Time) *Resolver {
	if now == nil {
		now = func() time.Time { return time.Now().In(engine.loc) }
	}
	return &Resolver{engine: engine, store: store, now: now}
}

// Available returns, in chronological order, every candidate slot of the
// given duration that lies within the day's working window, does not start in
// the past, and does not overlap any stored appointment on that day.
func (r *Resolver) Available(ctx context.Context, day time.Time, duration time.Duration) ([]Interval, error) {
	dayStart := r.engine.DayStart(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := r.store.ListByDay(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list day bookings: %w", err)
	}
	busy := make([]Interval, 0, len(booked))
	for _, a := range booked {
		busy = append(busy, Interval{Start: a.StartTime, End: a.EndTime})
	}

	now := r.now()
	var free []Interval
	for slot := range r.engine.Slots(dayStart, duration) {
		if slot.Start.Before(now) {
			continue
		}
		if overlapsAny(slot, busy) {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}
