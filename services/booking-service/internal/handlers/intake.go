package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Gabi10k2/gabibrx/services/booking-service/internal/intake"
)

// IntakeHandler drives the conversational booking flow over HTTP. The chat
// transport in front of it only needs to relay free-text messages and render
// the returned prompt and options.
type IntakeHandler struct {
	flow   *intake.Flow
	logger *slog.Logger
}

func NewIntakeHandler(flow *intake.Flow, logger *slog.Logger) *IntakeHandler {
	return &IntakeHandler{flow: flow, logger: logger}
}

type intakeMessageRequest struct {
	OwnerID int64  `json:"owner_id"`
	Message string `json:"message"`
}

type intakeReply struct {
	State   string           `json:"state,omitempty"`
	Prompt  string           `json:"prompt"`
	Options []string         `json:"options,omitempty"`
	Done    bool             `json:"done"`
	Booked  *appointmentItem `json:"booked,omitempty"`
}

func (h *IntakeHandler) Message(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req intakeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.OwnerID <= 0 {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}

	var (
		reply intake.Reply
		err   error
	)
	if strings.TrimSpace(req.Message) == "" {
		reply, err = h.flow.Start(r.Context(), req.OwnerID)
	} else {
		reply, err = h.flow.Advance(r.Context(), req.OwnerID, req.Message)
	}
	if err != nil {
		h.logger.Error("intake step failed", "owner_id", req.OwnerID, "err", err)
		http.Error(w, "intake step failed", http.StatusInternalServerError)
		return
	}

	resp := intakeReply{
		State:   string(reply.State),
		Prompt:  reply.Prompt,
		Options: reply.Options,
		Done:    reply.Done,
	}
	if reply.Booked != nil {
		item := toAppointmentItem(reply.Booked)
		resp.Booked = &item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *IntakeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req intakeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.OwnerID <= 0 {
		http.Error(w, "owner_id required", http.StatusBadRequest)
		return
	}

	if err := h.flow.Reset(r.Context(), req.OwnerID); err != nil {
		http.Error(w, "failed to reset conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
