package intake

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/booking"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/outbox"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/schedule"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/settings"
)

type memStore struct {
	pool      pgxmock.PgxPoolIface
	appts     []model.Appointment
	nextID    int64
	insertErr error
}

func (m *memStore) Begin(ctx context.Context) (pgx.Tx, error) { return m.pool.Begin(ctx) }

func (m *memStore) Insert(_ context.Context, _ pgx.Tx, appt *model.Appointment) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextID++
	appt.ID = m.nextID
	appt.CreatedAt = time.Now().UTC()
	m.appts = append(m.appts, *appt)
	return m.nextID, nil
}

func (m *memStore) ListByDay(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.appts {
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID int64) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.appts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.Appointment, error) {
	return append([]model.Appointment(nil), m.appts...), nil
}

func (m *memStore) Delete(_ context.Context, id int64) (bool, error) {
	for i, a := range m.appts {
		if a.ID == id {
			m.appts = append(m.appts[:i], m.appts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetOwner(_ context.Context, id int64) (int64, error) {
	for _, a := range m.appts {
		if a.ID == id {
			return a.OwnerID, nil
		}
	}
	return 0, pgx.ErrNoRows
}

type memEvents struct{ events []outbox.Event }

func (m *memEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	m.events = append(m.events, evt)
	return nil
}

var flowNow = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC) // Wednesday noon

func newTestFlow(t *testing.T) (*Flow, *memStore, pgxmock.PgxPoolIface) {
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

	store := &memStore{pool: pool}
	events := &memEvents{}
	resolver := schedule.NewResolver(engine, store, func() time.Time { return flowNow })
	logger := slog.New(slog.DiscardHandler)
	svc := booking.NewService(cfg, engine, resolver, store, events, logger, func() time.Time { return flowNow })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sessions := NewRedisSessions(rdb, 30*time.Minute)

	return NewFlow(svc, sessions, cfg.Location), store, pool
}

func TestFlow_FullConversation(t *testing.T) {
	flow, store, pool := newTestFlow(t)
	ctx := context.Background()

	reply, err := flow.Start(ctx, 42)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if reply.State != StateService || len(reply.Options) != 2 {
		t.Fatalf("expected service prompt with 2 options, got %+v", reply)
	}

	reply, err = flow.Advance(ctx, 42, "Tuns")
	if err != nil {
		t.Fatalf("service step failed: %v", err)
	}
	if reply.State != StateName {
		t.Fatalf("expected name state, got %s", reply.State)
	}

	reply, err = flow.Advance(ctx, 42, "Ion Popescu")
	if err != nil {
		t.Fatalf("name step failed: %v", err)
	}
	if reply.State != StatePhone {
		t.Fatalf("expected phone state, got %s", reply.State)
	}

	reply, err = flow.Advance(ctx, 42, "0722123456")
	if err != nil {
		t.Fatalf("phone step failed: %v", err)
	}
	if reply.State != StateDate || len(reply.Options) == 0 {
		t.Fatalf("expected date prompt with options, got %+v", reply)
	}
	if reply.Options[0] != "2026-09-02" {
		t.Fatalf("expected today first, got %s", reply.Options[0])
	}

	reply, err = flow.Advance(ctx, 42, "2026-09-02")
	if err != nil {
		t.Fatalf("date step failed: %v", err)
	}
	if reply.State != StateTime || len(reply.Options) == 0 {
		t.Fatalf("expected time prompt with options, got %+v", reply)
	}
	if reply.Options[0] != "19:30" {
		t.Fatalf("expected first time 19:30, got %s", reply.Options[0])
	}

	pool.ExpectBegin()
	pool.ExpectCommit()
	reply, err = flow.Advance(ctx, 42, "20:00")
	if err != nil {
		t.Fatalf("time step failed: %v", err)
	}
	if !reply.Done || reply.Booked == nil {
		t.Fatalf("expected confirmed booking, got %+v", reply)
	}
	if reply.Booked.Service != "Tuns" || reply.Booked.Price != 40 {
		t.Fatalf("booked snapshot wrong: %+v", reply.Booked)
	}
	if len(store.appts) != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", len(store.appts))
	}

	// Session is gone; the next message starts a fresh conversation.
	reply, err = flow.Advance(ctx, 42, "anything")
	if err != nil {
		t.Fatalf("post-confirmation message failed: %v", err)
	}
	if reply.State != StateService {
		t.Fatalf("expected fresh conversation, got state %s", reply.State)
	}
}

func TestFlow_RePromptsOnInvalidInput(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	ctx := context.Background()

	if _, err := flow.Start(ctx, 42); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	reply, err := flow.Advance(ctx, 42, "Masaj")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if reply.State != StateService {
		t.Fatalf("unknown service should stay on service step, got %s", reply.State)
	}

	if _, err := flow.Advance(ctx, 42, "Tuns"); err != nil {
		t.Fatalf("service step failed: %v", err)
	}
	if _, err := flow.Advance(ctx, 42, "Ion"); err != nil {
		t.Fatalf("name step failed: %v", err)
	}

	reply, err = flow.Advance(ctx, 42, "123")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if reply.State != StatePhone {
		t.Fatalf("short phone should stay on phone step, got %s", reply.State)
	}

	if _, err := flow.Advance(ctx, 42, "0722123456"); err != nil {
		t.Fatalf("phone step failed: %v", err)
	}
	reply, err = flow.Advance(ctx, 42, "yesterday")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if reply.State != StateDate {
		t.Fatalf("bad date should stay on date step, got %s", reply.State)
	}
}

func TestFlow_SlotStolenStaysOnTimeStep(t *testing.T) {
	flow, store, pool := newTestFlow(t)
	ctx := context.Background()

	if _, err := flow.Start(ctx, 42); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, input := range []string{"Tuns", "Ion Popescu", "0722123456", "2026-09-02"} {
		if _, err := flow.Advance(ctx, 42, input); err != nil {
			t.Fatalf("step %q failed: %v", input, err)
		}
	}

	// Another booker wins the slot between offer and confirm.
	store.insertErr = &pgconn.PgError{Code: "23P01"}
	pool.ExpectBegin()
	pool.ExpectRollback()

	reply, err := flow.Advance(ctx, 42, "20:00")
	if err != nil {
		t.Fatalf("time step failed: %v", err)
	}
	if reply.Done {
		t.Fatal("stolen slot must not confirm")
	}
	if reply.State != StateTime {
		t.Fatalf("expected to stay on time step, got %s", reply.State)
	}
	if len(reply.Options) == 0 {
		t.Fatal("expected refreshed time options")
	}

	// The draft survives; a second attempt with a free slot succeeds.
	store.insertErr = nil
	pool.ExpectBegin()
	pool.ExpectCommit()
	reply, err = flow.Advance(ctx, 42, "21:00")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !reply.Done || reply.Booked == nil {
		t.Fatalf("expected confirmed booking on retry, got %+v", reply)
	}
}

func TestFlow_ResetDropsDraft(t *testing.T) {
	flow, _, _ := newTestFlow(t)
	ctx := context.Background()

	if _, err := flow.Start(ctx, 42); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := flow.Advance(ctx, 42, "Tuns"); err != nil {
		t.Fatalf("service step failed: %v", err)
	}
	if err := flow.Reset(ctx, 42); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	reply, err := flow.Advance(ctx, 42, "Ion")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if reply.State != StateService {
		t.Fatalf("expected fresh conversation after reset, got %s", reply.State)
	}
}
