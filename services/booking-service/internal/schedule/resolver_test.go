package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
)

type staticLister struct {
	appts []model.Appointment
}

func (s *staticLister) ListByDay(_ context.Context, _, _ time.Time) ([]model.Appointment, error) {
	return s.appts, nil
}

func TestAvailable_ExcludesBookedAndKeepsRest(t *testing.T) {
	e := NewEngine(testHours, 30*time.Minute, time.UTC)
	// Wednesday, open 19:30-22:00.
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	booked := &staticLister{appts: []model.Appointment{{
		StartTime: time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 2, 20, 30, 0, 0, time.UTC),
	}}}
	now := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	r := NewResolver(e, booked, func() time.Time { return now })

	free, err := r.Available(context.Background(), day, 30*time.Minute)
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}
	want := []string{"19:30", "20:30", "21:00", "21:30"}
	if len(free) != len(want) {
		t.Fatalf("expected %d free slots, got %d", len(want), len(free))
	}
	for i, w := range want {
		if got := free[i].Start.Format("15:04"); got != w {
			t.Fatalf("free slot %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestAvailable_ExcludesPastStarts(t *testing.T) {
	e := NewEngine(testHours, 30*time.Minute, time.UTC)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 2, 20, 45, 0, 0, time.UTC)
	r := NewResolver(e, &staticLister{}, func() time.Time { return now })

	free, err := r.Available(context.Background(), day, 30*time.Minute)
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}
	// 19:30, 20:00, 20:30 are in the past at 20:45.
	want := []string{"21:00", "21:30"}
	if len(free) != len(want) {
		t.Fatalf("expected %d free slots, got %d", len(want), len(free))
	}
	for i, w := range want {
		if got := free[i].Start.Format("15:04"); got != w {
			t.Fatalf("free slot %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestAvailable_LongServiceBlockedByShortBooking(t *testing.T) {
	e := NewEngine(testHours, 30*time.Minute, time.UTC)
	// Saturday, open 10:00-17:00.
	day := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	booked := &staticLister{appts: []model.Appointment{{
		StartTime: time.Date(2026, 9, 5, 10, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 5, 10, 50, 0, 0, time.UTC),
	}}}
	now := time.Date(2026, 9, 5, 8, 0, 0, 0, time.UTC)
	r := NewResolver(e, booked, func() time.Time { return now })

	free, err := r.Available(context.Background(), day, 45*time.Minute)
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}
	// A 45-minute slot at 10:00 runs into the 10:30 booking; 10:30 overlaps it
	// outright. First free start is 11:00.
	if len(free) == 0 {
		t.Fatal("expected free slots")
	}
	if got := free[0].Start.Format("15:04"); got != "11:00" {
		t.Fatalf("expected first free start 11:00, got %s", got)
	}
}
