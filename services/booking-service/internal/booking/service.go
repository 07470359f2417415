package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/outbox"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/schedule"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/settings"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/storage"
)

// Store is the appointment persistence the lifecycle depends on.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Insert(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (int64, error)
	ListByDay(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Appointment, error)
	ListAll(ctx context.Context) ([]model.Appointment, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetOwner(ctx context.Context, id int64) (int64, error)
}

// EventWriter records a domain event inside the booking transaction. The
// actual delivery to the operator channel happens asynchronously and can
// never roll a booking back.
type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Service orchestrates the booking lifecycle: availability, creation with the
// service/price snapshot, owner listings and authorized cancellation.
type Service struct {
	cfg      *settings.Settings
	engine   *schedule.Engine
	resolver *schedule.Resolver
	store    Store
	events   EventWriter
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(cfg *settings.Settings, engine *schedule.Engine, resolver *schedule.Resolver, store Store, events EventWriter, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().In(cfg.Location) }
	}
	return &Service{
		cfg:      cfg,
		engine:   engine,
		resolver: resolver,
		store:    store,
		events:   events,
		logger:   logger,
		now:      now,
	}
}

// Location is the business timezone all day and slot math happens in.
func (s *Service) Location() *time.Location {
	return s.engine.Location()
}

// Services returns the catalog in configuration order.
func (s *Service) Services() []model.Service {
	out := make([]model.Service, len(s.cfg.Services))
	copy(out, s.cfg.Services)
	return out
}

// OfferableDays lists the upcoming days, starting today, on which the
// business has a working window, bounded by the booking horizon.
func (s *Service) OfferableDays() []time.Time {
	today := s.engine.DayStart(s.now())
	var days []time.Time
	for i := 0; i < s.cfg.DaysAhead; i++ {
		d := today.AddDate(0, 0, i)
		if s.engine.IsOpen(d) {
			days = append(days, d)
		}
	}
	return days
}

// AvailableSlots returns the offerable start/end pairs for the service on the
// given day. Unknown services and days outside the booking horizon are
// validation errors; a closed day yields an empty result.
func (s *Service) AvailableSlots(ctx context.Context, day time.Time, serviceName string) ([]schedule.Interval, error) {
	svc, ok := s.cfg.ServiceByName(serviceName)
	if !ok {
		return nil, validationErrorf(fmt.Sprintf("unknown service %q", serviceName))
	}
	if err := s.checkHorizon(day); err != nil {
		return nil, err
	}
	return s.resolver.Available(ctx, day, svc.Duration)
}

// CreateRequest carries everything the intake flow has collected.
type CreateRequest struct {
	OwnerID     int64
	ClientName  string
	ClientPhone string
	Service     string
	Start       time.Time
}

// Create books an appointment. The chosen start must still be present in the
// availability snapshot, and the insert re-validates against the store's
// overlap constraint; either failure surfaces as ErrSlotUnavailable. The
// booking-created event is written in the same transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Appointment, error) {
	name := strings.TrimSpace(req.ClientName)
	phone := strings.TrimSpace(req.ClientPhone)
	if name == "" || phone == "" {
		return nil, validationErrorf("client name and phone are required")
	}
	svc, ok := s.cfg.ServiceByName(req.Service)
	if !ok {
		return nil, validationErrorf(fmt.Sprintf("unknown service %q", req.Service))
	}
	start := req.Start.In(s.cfg.Location)
	if err := s.checkHorizon(start); err != nil {
		return nil, err
	}

	free, err := s.resolver.Available(ctx, start, svc.Duration)
	if err != nil {
		return nil, err
	}
	offered := false
	for _, slot := range free {
		if slot.Start.Equal(start) {
			offered = true
			break
		}
	}
	if !offered {
		return nil, ErrSlotUnavailable
	}

	appt := &model.Appointment{
		OwnerID:     req.OwnerID,
		ClientName:  name,
		ClientPhone: phone,
		Service:     svc.Name,
		Price:       svc.Price,
		StartTime:   start,
		EndTime:     start.Add(svc.Duration),
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := s.store.Insert(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			// A concurrent booker won the slot between the availability
			// snapshot and our insert.
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"owner_id":       appt.OwnerID,
		"client_name":    appt.ClientName,
		"client_phone":   appt.ClientPhone,
		"service":        appt.Service,
		"price":          appt.Price,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("build booking event: %w", err)
	}
	if err := s.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   strconv.FormatInt(id, 10),
		EventType:     outbox.EventBookingCreated,
		Payload:       payload,
	}); err != nil {
		return nil, fmt.Errorf("write booking event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	s.logger.Info("booking created",
		"appointment_id", id,
		"service", appt.Service,
		"start", appt.StartTime.Format(time.RFC3339),
	)
	return appt, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]model.Appointment, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// ListAll returns every stored appointment; authorization is the caller's
// responsibility.
func (s *Service) ListAll(ctx context.Context) ([]model.Appointment, error) {
	return s.store.ListAll(ctx)
}

// Cancel deletes the appointment if the requester owns it or is an
// administrator. The outcome set is closed: Cancelled, NotFound or Forbidden.
func (s *Service) Cancel(ctx context.Context, id int64, requester int64, isAdmin bool) (CancelOutcome, error) {
	owner, err := s.store.GetOwner(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return NotFound, nil
		}
		return 0, fmt.Errorf("lookup appointment owner: %w", err)
	}
	if owner != requester && !isAdmin {
		return Forbidden, nil
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete appointment: %w", err)
	}
	if !deleted {
		// Already cancelled by a concurrent request; benign.
		return NotFound, nil
	}
	s.logger.Info("booking cancelled", "appointment_id", id, "requester", requester, "admin", isAdmin)
	return Cancelled, nil
}

func (s *Service) checkHorizon(day time.Time) error {
	today := s.engine.DayStart(s.now())
	target := s.engine.DayStart(day)
	if target.Before(today) {
		return validationErrorf("date is in the past")
	}
	if !target.Before(today.AddDate(0, 0, s.cfg.DaysAhead)) {
		return validationErrorf(fmt.Sprintf("date is beyond the %d-day booking horizon", s.cfg.DaysAhead))
	}
	return nil
}
