package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/booking"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
)

const dateLayout = "2006-01-02"
const timeLayout = "15:04"

// Reply tells the front end what to show next: a prompt, the legal options
// for the current step, and on completion the confirmed appointment.
type Reply struct {
	State   State
	Prompt  string
	Options []string
	Done    bool
	Booked  *model.Appointment
}

// Flow is the multi-step intake state machine. Each Advance call consumes one
// user input, validates it for the current state, and either moves the draft
// forward or re-prompts. The final step hands the draft to the booking
// lifecycle; a stolen slot sends the flow back to time selection.
type Flow struct {
	svc      *booking.Service
	sessions SessionStore
	loc      *time.Location
}

func NewFlow(svc *booking.Service, sessions SessionStore, loc *time.Location) *Flow {
	return &Flow{svc: svc, sessions: sessions, loc: loc}
}

// Start begins (or restarts) an intake conversation for the owner.
func (f *Flow) Start(ctx context.Context, ownerID int64) (Reply, error) {
	draft := newDraft()
	if err := f.sessions.Put(ctx, ownerID, draft); err != nil {
		return Reply{}, err
	}
	return f.promptFor(ctx, ownerID, draft)
}

// Reset abandons any in-progress draft.
func (f *Flow) Reset(ctx context.Context, ownerID int64) error {
	return f.sessions.Delete(ctx, ownerID)
}

// Advance feeds one input into the state machine.
func (f *Flow) Advance(ctx context.Context, ownerID int64, input string) (Reply, error) {
	draft, err := f.sessions.Get(ctx, ownerID)
	if err != nil {
		return Reply{}, err
	}
	if draft == nil {
		return f.Start(ctx, ownerID)
	}

	input = strings.TrimSpace(input)

	switch draft.State {
	case StateService:
		if _, ok := f.serviceByName(input); !ok {
			return f.rePrompt(ctx, ownerID, draft, "That service is not on the list, pick one of the options.")
		}
		draft.Service = input
		draft.State = StateName

	case StateName:
		if input == "" {
			return f.rePrompt(ctx, ownerID, draft, "Please write your full name.")
		}
		draft.Name = input
		draft.State = StatePhone

	case StatePhone:
		if len(input) < 5 {
			return f.rePrompt(ctx, ownerID, draft, "That phone number looks too short, try again.")
		}
		draft.Phone = input
		draft.State = StateDate

	case StateDate:
		day, err := time.ParseInLocation(dateLayout, input, f.loc)
		if err != nil || !f.dayOffered(day) {
			return f.rePrompt(ctx, ownerID, draft, "Pick one of the listed days.")
		}
		draft.Date = input
		draft.State = StateTime

	case StateTime:
		return f.confirm(ctx, ownerID, draft, input)

	default:
		// Unknown state from an older session; start over.
		return f.Start(ctx, ownerID)
	}

	if err := f.sessions.Put(ctx, ownerID, draft); err != nil {
		return Reply{}, err
	}
	return f.promptFor(ctx, ownerID, draft)
}

func (f *Flow) confirm(ctx context.Context, ownerID int64, draft *Draft, input string) (Reply, error) {
	day, err := time.ParseInLocation(dateLayout, draft.Date, f.loc)
	if err != nil {
		return f.Start(ctx, ownerID)
	}
	clock, err := time.Parse(timeLayout, input)
	if err != nil {
		return f.rePrompt(ctx, ownerID, draft, "Pick one of the listed times.")
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, f.loc)

	appt, err := f.svc.Create(ctx, booking.CreateRequest{
		OwnerID:     ownerID,
		ClientName:  draft.Name,
		ClientPhone: draft.Phone,
		Service:     draft.Service,
		Start:       start,
	})
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		// Someone took the slot while the user was deciding; stay on the
		// time step with a fresh list.
		reply, rErr := f.promptFor(ctx, ownerID, draft)
		if rErr != nil {
			return Reply{}, rErr
		}
		reply.Prompt = "That time was just taken, choose another one."
		return reply, nil
	case booking.IsValidation(err):
		return f.rePrompt(ctx, ownerID, draft, "Pick one of the listed times.")
	case err != nil:
		return Reply{}, err
	}

	if err := f.sessions.Delete(ctx, ownerID); err != nil {
		return Reply{}, err
	}
	return Reply{
		Done:   true,
		Booked: appt,
		Prompt: fmt.Sprintf("Booking confirmed: %s on %s at %s.",
			appt.Service,
			appt.StartTime.Format(dateLayout),
			appt.StartTime.Format(timeLayout)),
	}, nil
}

func (f *Flow) promptFor(ctx context.Context, ownerID int64, draft *Draft) (Reply, error) {
	reply := Reply{State: draft.State}
	switch draft.State {
	case StateService:
		reply.Prompt = "Choose a service:"
		for _, svc := range f.svc.Services() {
			reply.Options = append(reply.Options,
				fmt.Sprintf("%s (%d min, %d lei)", svc.Name, int(svc.Duration.Minutes()), svc.Price))
		}
	case StateName:
		reply.Prompt = "Write your full name:"
	case StatePhone:
		reply.Prompt = "Write your phone number:"
	case StateDate:
		reply.Prompt = "Choose a day:"
		for _, d := range f.svc.OfferableDays() {
			reply.Options = append(reply.Options, d.Format(dateLayout))
		}
	case StateTime:
		day, err := time.ParseInLocation(dateLayout, draft.Date, f.loc)
		if err != nil {
			return Reply{}, fmt.Errorf("corrupt draft date %q", draft.Date)
		}
		slots, err := f.svc.AvailableSlots(ctx, day, draft.Service)
		if err != nil {
			return Reply{}, err
		}
		for _, slot := range slots {
			reply.Options = append(reply.Options, slot.Start.Format(timeLayout))
		}
		if len(reply.Options) == 0 {
			// Fully booked (or closed) day; back to day selection.
			draft.State = StateDate
			draft.Date = ""
			if err := f.sessions.Put(ctx, ownerID, draft); err != nil {
				return Reply{}, err
			}
			reply, err := f.promptFor(ctx, ownerID, draft)
			if err != nil {
				return Reply{}, err
			}
			reply.Prompt = "No free times left on that day, choose another day."
			return reply, nil
		}
		reply.Prompt = fmt.Sprintf("Choose a time for %s:", draft.Date)
	}
	return reply, nil
}

func (f *Flow) rePrompt(ctx context.Context, ownerID int64, draft *Draft, message string) (Reply, error) {
	reply, err := f.promptFor(ctx, ownerID, draft)
	if err != nil {
		return Reply{}, err
	}
	reply.Prompt = message
	return reply, nil
}

func (f *Flow) serviceByName(name string) (model.Service, bool) {
	for _, svc := range f.svc.Services() {
		if svc.Name == name {
			return svc, true
		}
	}
	return model.Service{}, false
}

func (f *Flow) dayOffered(day time.Time) bool {
	for _, d := range f.svc.OfferableDays() {
		if d.Equal(day) {
			return true
		}
	}
	return false
}
