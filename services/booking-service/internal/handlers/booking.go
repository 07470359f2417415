package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/booking"
	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc       *booking.Service
	logger    *slog.Logger
	jwtSecret string
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger, jwtSecret string) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger, jwtSecret: jwtSecret}
}

type serviceItem struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           int    `json:"price"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createBookingRequest struct {
	OwnerID     int64  `json:"owner_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	Service     string `json:"service"`
	StartTime   string `json:"start_time"`
}

type cancelBookingRequest struct {
	AppointmentID int64 `json:"appointment_id"`
	RequesterID   int64 `json:"requester_id"`
}

type appointmentItem struct {
	AppointmentID int64  `json:"appointment_id"`
	OwnerID       int64  `json:"owner_id"`
	ClientName    string `json:"client_name"`
	ClientPhone   string `json:"client_phone"`
	Service       string `json:"service"`
	Price         int    `json:"price"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CreatedAt     string `json:"created_at"`
}

func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	catalog := h.svc.Services()
	items := make([]serviceItem, 0, len(catalog))
	for _, svc := range catalog {
		items = append(items, serviceItem{
			Name:            svc.Name,
			DurationMinutes: int(svc.Duration.Minutes()),
			Price:           svc.Price,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	serviceName := strings.TrimSpace(r.URL.Query().Get("service"))
	if dateStr == "" || serviceName == "" {
		http.Error(w, "date and service are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, h.svc.Location())
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), day, serviceName)
	if err != nil {
		h.writeServiceError(w, err, "failed to resolve slots")
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, slot := range slots {
		items = append(items, slotItem{
			StartTime: slot.Start.Format(time.RFC3339),
			EndTime:   slot.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// RouteBookings dispatches the shared bookings path: POST creates, GET lists
// the requester's appointments.
func (h *BookingHandler) RouteBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateRequest{
		OwnerID:     req.OwnerID,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		Service:     strings.TrimSpace(req.Service),
		Start:       start,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create appointment")
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("owner_id")), 10, 64)
	if err != nil || ownerID <= 0 {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}

	appts, err := h.svc.ListByOwner(r.Context(), ownerID)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItems(appts))
}

// Cancel removes an appointment on behalf of its owner. A valid admin bearer
// token lets the caller cancel anyone's appointment.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID <= 0 {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	isAdmin := h.isAdminRequest(r)
	if req.RequesterID <= 0 && !isAdmin {
		http.Error(w, "requester_id required", http.StatusBadRequest)
		return
	}

	outcome, err := h.svc.Cancel(r.Context(), req.AppointmentID, req.RequesterID, isAdmin)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	switch outcome {
	case booking.Cancelled:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case booking.NotFound:
		http.Error(w, "appointment not found", http.StatusNotFound)
	case booking.Forbidden:
		http.Error(w, "not allowed to cancel this appointment", http.StatusForbidden)
	default:
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
	}
}

func (h *BookingHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.isAdminRequest(r) {
		http.Error(w, "admin token required", http.StatusUnauthorized)
		return
	}

	appts, err := h.svc.ListAll(r.Context())
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItems(appts))
}

func (h *BookingHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case booking.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrSlotUnavailable):
		http.Error(w, "time slot already booked", http.StatusConflict)
	default:
		h.logger.Error(fallback, "err", err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func toAppointmentItem(appt *model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID: appt.ID,
		OwnerID:       appt.OwnerID,
		ClientName:    appt.ClientName,
		ClientPhone:   appt.ClientPhone,
		Service:       appt.Service,
		Price:         appt.Price,
		StartTime:     appt.StartTime.Format(time.RFC3339),
		EndTime:       appt.EndTime.Format(time.RFC3339),
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAppointmentItems(appts []model.Appointment) []appointmentItem {
	items := make([]appointmentItem, 0, len(appts))
	for i := range appts {
		items = append(items, toAppointmentItem(&appts[i]))
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
