package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/backend"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/console"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/domain"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/queue"
)

// Softphone is the orchestrator surface the control API drives.
type Softphone interface {
	SelectAgent(ctx context.Context, agentID string) error
	Call(number string) error
	Hangup() error
	ToggleMute() string
	SendVoicemail(ctx context.Context, to, voicemail string) error
	SelectNumber(ctx context.Context, number string) string
	SaveNote(ctx context.Context, number, text string) error
	DisposeLead(ctx context.Context, number string)
	RecordVerdict(verdict string)
	QueueSnapshot() []queue.RankedEntry
	CallLog() []domain.CallLogEntry
	Satisfaction() []domain.SatisfactionEntry
	Session() domain.CallSession
	AgentInfo() domain.AgentInfo
	NoteBuffer() string
	DeviceReady() bool
}

type Handlers struct {
	softphone Softphone
	logger    zerolog.Logger
}

func NewHandlers(softphone Softphone, logger zerolog.Logger) *Handlers {
	return &Handlers{
		softphone: softphone,
		logger:    logger,
	}
}

func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/agent", h.handleSelectAgent)
		r.Post("/call", h.handleCall)
		r.Post("/hangup", h.handleHangup)
		r.Post("/mute", h.handleMute)
		r.Post("/voicemail", h.handleVoicemail)
		r.Post("/select", h.handleSelect)
		r.Post("/note", h.handleNote)
		r.Post("/verdict", h.handleVerdict)
		r.Post("/dispose", h.handleDispose)
		r.Get("/queue", h.handleQueue)
		r.Get("/status", h.handleStatus)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/health", h.handleHealth)
	})

	return r
}

type selectAgentRequest struct {
	AgentID string `json:"agent_id"`
}

type callRequest struct {
	To string `json:"to"`
}

type voicemailRequest struct {
	To        string `json:"to"`
	Voicemail string `json:"voicemail"`
}

type selectRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type noteRequest struct {
	PhoneNumber string `json:"phone_number"`
	Note        string `json:"note"`
}

type verdictRequest struct {
	Verdict string `json:"verdict"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handlers) handleSelectAgent(w http.ResponseWriter, r *http.Request) {
	var req selectAgentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.AgentID == "" {
		h.sendError(w, "agent_id is required", http.StatusBadRequest)
		return
	}

	if err := h.softphone.SelectAgent(r.Context(), req.AgentID); err != nil {
		h.sendFailure(w, err)
		return
	}

	h.sendJSON(w, actionResponse{Success: true, Message: "Agent selected"}, http.StatusOK)
}

func (h *Handlers) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.softphone.Call(req.To); err != nil {
		h.sendFailure(w, err)
		return
	}

	h.sendJSON(w, actionResponse{Success: true, Message: "Call requested"}, http.StatusOK)
}

func (h *Handlers) handleHangup(w http.ResponseWriter, r *http.Request) {
	if err := h.softphone.Hangup(); err != nil {
		h.sendFailure(w, err)
		return
	}
	h.sendJSON(w, actionResponse{Success: true, Message: "Call disconnected"}, http.StatusOK)
}

func (h *Handlers) handleMute(w http.ResponseWriter, r *http.Request) {
	label := h.softphone.ToggleMute()
	h.sendJSON(w, struct {
		Success bool   `json:"success"`
		Label   string `json:"label"`
	}{Success: true, Label: label}, http.StatusOK)
}

func (h *Handlers) handleVoicemail(w http.ResponseWriter, r *http.Request) {
	var req voicemailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.softphone.SendVoicemail(r.Context(), req.To, req.Voicemail); err != nil {
		h.sendFailure(w, err)
		return
	}

	h.sendJSON(w, actionResponse{Success: true, Message: "Voicemail sent"}, http.StatusOK)
}

func (h *Handlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		h.sendError(w, "phone_number is required", http.StatusBadRequest)
		return
	}

	note := h.softphone.SelectNumber(r.Context(), req.PhoneNumber)
	h.sendJSON(w, struct {
		Success bool   `json:"success"`
		Note    string `json:"note"`
	}{Success: true, Note: note}, http.StatusOK)
}

func (h *Handlers) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.softphone.SaveNote(r.Context(), req.PhoneNumber, req.Note); err != nil {
		h.sendFailure(w, err)
		return
	}

	h.sendJSON(w, actionResponse{Success: true, Message: "Note saved"}, http.StatusOK)
}

func (h *Handlers) handleVerdict(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Verdict == "" {
		h.sendError(w, "verdict is required", http.StatusBadRequest)
		return
	}

	h.softphone.RecordVerdict(req.Verdict)
	h.sendJSON(w, actionResponse{Success: true, Message: "Verdict recorded"}, http.StatusOK)
}

func (h *Handlers) handleDispose(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PhoneNumber == "" {
		h.sendError(w, "phone_number is required", http.StatusBadRequest)
		return
	}

	h.softphone.DisposeLead(r.Context(), req.PhoneNumber)
	h.sendJSON(w, actionResponse{Success: true, Message: "Lead disposed"}, http.StatusOK)
}

func (h *Handlers) handleQueue(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, struct {
		Success bool                `json:"success"`
		Queue   []queue.RankedEntry `json:"queue"`
	}{Success: true, Queue: h.softphone.QueueSnapshot()}, http.StatusOK)
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, struct {
		Success     bool                       `json:"success"`
		DeviceReady bool                       `json:"device_ready"`
		Agent       domain.AgentInfo           `json:"agent"`
		Session     domain.CallSession         `json:"session"`
		NoteBuffer  string                     `json:"note_buffer"`
		CallLog     []domain.CallLogEntry      `json:"call_log"`
		Verdicts    []domain.SatisfactionEntry `json:"satisfaction"`
	}{
		Success:     true,
		DeviceReady: h.softphone.DeviceReady(),
		Agent:       h.softphone.AgentInfo(),
		Session:     h.softphone.Session(),
		NoteBuffer:  h.softphone.NoteBuffer(),
		CallLog:     h.softphone.CallLog(),
		Verdicts:    h.softphone.Satisfaction(),
	}, http.StatusOK)
}

func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("Call Queue\n")
	b.WriteString(console.RenderQueue(h.softphone.QueueSnapshot()))
	b.WriteString("\n\nCall Log\n")
	b.WriteString(console.RenderCallLog(h.softphone.CallLog()))
	b.WriteString("\n\nSatisfaction\n")
	b.WriteString(console.RenderSatisfaction(h.softphone.Satisfaction()))
	b.WriteString("\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(b.String())); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write dashboard")
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}, http.StatusOK)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		h.sendError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// sendFailure maps domain and backend errors onto HTTP statuses.
func (h *Handlers) sendFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var apiErr *backend.APIError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrCallInProgress), errors.Is(err, domain.ErrNoActiveConnection):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnknownLead):
		status = http.StatusNotFound
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}

	h.sendError(w, err.Error(), status)
}

func (h *Handlers) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, errorResponse{Success: false, Error: message}, statusCode)
}
