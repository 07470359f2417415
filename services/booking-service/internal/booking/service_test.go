package booking

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/outbox"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/schedule"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/settings"
)

// fakeStore keeps appointments in memory; transactions come from pgxmock so
// the lifecycle's begin/commit path is exercised for real.
type fakeStore struct {
	pool      pgxmock.PgxPoolIface
	appts     []model.Appointment
	nextID    int64
	insertErr error
}

func (f *fakeStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return f.pool.Begin(ctx)
}

func (f *fakeStore) Insert(_ context.Context, _ pgx.Tx, appt *model.Appointment) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	appt.ID = f.nextID
	appt.CreatedAt = time.Now().UTC()
	f.appts = append(f.appts, *appt)
	return f.nextID, nil
}

func (f *fakeStore) ListByDay(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID int64) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]model.Appointment, error) {
	return append([]model.Appointment(nil), f.appts...), nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) (bool, error) {
	for i, a := range f.appts {
		if a.ID == id {
			f.appts = append(f.appts[:i], f.appts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetOwner(_ context.Context, id int64) (int64, error) {
	for _, a := range f.appts {
		if a.ID == id {
			return a.OwnerID, nil
		}
	}
	return 0, pgx.ErrNoRows
}

type fakeEvents struct {
	events []outbox.Event
	err    error
}

func (f *fakeEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

var testNow = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC) // Wednesday noon

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeEvents, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool failed: %v", err)
	}
	t.Cleanup(pool.Close)

	cfg := &settings.Settings{
		Location:     time.UTC,
		WeekdayOpen:  19*60 + 30,
		WeekdayClose: 22 * 60,
		WeekendOpen:  10 * 60,
		WeekendClose: 17 * 60,
		SlotStep:     30 * time.Minute,
		DaysAhead:    14,
		Services: []model.Service{
			{Name: "Tuns", Duration: 30 * time.Minute, Price: 40},
			{Name: "Barbă", Duration: 20 * time.Minute, Price: 30},
		},
	}
	engine := schedule.NewEngine(schedule.WeekHours{
		WeekdayOpen:  cfg.WeekdayOpen,
		WeekdayClose: cfg.WeekdayClose,
		WeekendOpen:  cfg.WeekendOpen,
		WeekendClose: cfg.WeekendClose,
	}, cfg.SlotStep, cfg.Location)

	store := &fakeStore{pool: pool}
	events := &fakeEvents{}
	resolver := schedule.NewResolver(engine, store, func() time.Time { return testNow })
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	svc := NewService(cfg, engine, resolver, store, events, logger, func() time.Time { return testNow })
	return svc, store, events, pool
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestCreate_RoundTrip(t *testing.T) {
	svc, _, events, pool := newTestService(t)
	pool.ExpectBegin()
	pool.ExpectCommit()

	start := time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC)
	appt, err := svc.Create(context.Background(), CreateRequest{
		OwnerID:     42,
		ClientName:  "Ion Popescu",
		ClientPhone: "0722123456",
		Service:     "Tuns",
		Start:       start,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if appt.ID == 0 {
		t.Fatal("expected store-assigned id")
	}
	if appt.Price != 40 || appt.Service != "Tuns" {
		t.Fatalf("service snapshot wrong: %+v", appt)
	}
	if !appt.EndTime.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("end != start + duration: %s", appt.EndTime)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events.events))
	}
	if events.events[0].EventType != outbox.EventBookingCreated {
		t.Fatalf("unexpected event type %s", events.events[0].EventType)
	}

	listed, err := svc.ListByOwner(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(listed))
	}
	got := listed[0]
	if got.Service != appt.Service || got.Price != appt.Price ||
		!got.StartTime.Equal(appt.StartTime) || !got.EndTime.Equal(appt.EndTime) ||
		got.ClientName != appt.ClientName || got.ClientPhone != appt.ClientPhone {
		t.Fatalf("round trip mismatch: wrote %+v, read %+v", appt, got)
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	base := CreateRequest{
		OwnerID:     42,
		ClientName:  "Ion Popescu",
		ClientPhone: "0722123456",
		Service:     "Tuns",
		Start:       time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC),
	}

	unknown := base
	unknown.Service = "Masaj"
	if _, err := svc.Create(context.Background(), unknown); !IsValidation(err) {
		t.Fatalf("unknown service: expected validation error, got %v", err)
	}

	past := base
	past.Start = time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), past); !IsValidation(err) {
		t.Fatalf("past day: expected validation error, got %v", err)
	}

	beyond := base
	beyond.Start = testNow.AddDate(0, 0, 20)
	if _, err := svc.Create(context.Background(), beyond); !IsValidation(err) {
		t.Fatalf("beyond horizon: expected validation error, got %v", err)
	}

	noName := base
	noName.ClientName = "  "
	if _, err := svc.Create(context.Background(), noName); !IsValidation(err) {
		t.Fatalf("blank name: expected validation error, got %v", err)
	}
}

func TestCreate_OffGridStartRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	req := CreateRequest{
		OwnerID:     42,
		ClientName:  "Ion Popescu",
		ClientPhone: "0722123456",
		Service:     "Tuns",
		Start:       time.Date(2026, 9, 2, 20, 10, 0, 0, time.UTC),
	}
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("off-grid start: expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreate_TakenSlotRejected(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.appts = append(store.appts, model.Appointment{
		ID:        1,
		OwnerID:   7,
		StartTime: time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 2, 20, 30, 0, 0, time.UTC),
	})
	store.nextID = 1

	req := CreateRequest{
		OwnerID:     42,
		ClientName:  "Ion Popescu",
		ClientPhone: "0722123456",
		Service:     "Tuns",
		Start:       time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC),
	}
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("taken slot: expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreate_ConstraintConflictSurfacesAsSlotUnavailable(t *testing.T) {
	svc, store, _, pool := newTestService(t)
	pool.ExpectBegin()
	pool.ExpectRollback()
	// A concurrent booker wins between the availability snapshot and our
	// insert; the exclusion constraint reports 23P01.
	store.insertErr = &pgconn.PgError{Code: "23P01"}

	req := CreateRequest{
		OwnerID:     42,
		ClientName:  "Ion Popescu",
		ClientPhone: "0722123456",
		Service:     "Tuns",
		Start:       time.Date(2026, 9, 2, 20, 0, 0, 0, time.UTC),
	}
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("constraint conflict: expected ErrSlotUnavailable, got %v", err)
	}
}

func TestAvailableSlots_UnknownService(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	if _, err := svc.AvailableSlots(context.Background(), day, "Masaj"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOfferableDays_RespectsHorizon(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	days := svc.OfferableDays()
	if len(days) != 14 {
		t.Fatalf("expected 14 offerable days (open every day), got %d", len(days))
	}
	if !days[0].Equal(time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected first day today, got %s", days[0])
	}
	last := days[len(days)-1]
	if !last.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected last day today+13, got %s", last)
	}
}

func TestCancel_AuthorizationMatrix(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.appts = append(store.appts, model.Appointment{ID: 1, OwnerID: 7})
	store.nextID = 1

	outcome, err := svc.Cancel(context.Background(), 1, 42, false)
	if err != nil || outcome != Forbidden {
		t.Fatalf("stranger cancel: expected Forbidden, got %v (%v)", outcome, err)
	}

	outcome, err = svc.Cancel(context.Background(), 1, 42, true)
	if err != nil || outcome != Cancelled {
		t.Fatalf("admin cancel: expected Cancelled, got %v (%v)", outcome, err)
	}

	// Second cancellation of the same id: idempotent NotFound, not an error.
	outcome, err = svc.Cancel(context.Background(), 1, 42, true)
	if err != nil || outcome != NotFound {
		t.Fatalf("repeat cancel: expected NotFound, got %v (%v)", outcome, err)
	}
}

func TestCancel_OwnerAllowed(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.appts = append(store.appts, model.Appointment{ID: 3, OwnerID: 42})
	store.nextID = 3

	outcome, err := svc.Cancel(context.Background(), 3, 42, false)
	if err != nil || outcome != Cancelled {
		t.Fatalf("owner cancel: expected Cancelled, got %v (%v)", outcome, err)
	}
}

func TestCancel_MissingAppointment(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	outcome, err := svc.Cancel(context.Background(), 999, 42, false)
	if err != nil || outcome != NotFound {
		t.Fatalf("missing id: expected NotFound, got %v (%v)", outcome, err)
	}
}
