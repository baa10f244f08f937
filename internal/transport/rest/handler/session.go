package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vocalsilence/internal/logging"
	"vocalsilence/internal/model"
	"vocalsilence/internal/service"
	"vocalsilence/internal/transport/rest/middleware"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SessionAdmin is the staff-facing session surface
type SessionAdmin interface {
	GetSession(ctx context.Context, participantID string) (*model.Session, error)
	Reset(ctx context.Context, participantID string) error
	CloseCrisis(ctx context.Context, participantID string, notify bool) (string, error)
	ListCrises(ctx context.Context, participantID string) (*service.CrisisSummary, error)
	ListInteractions(ctx context.Context, participantID string, limit int64) ([]*model.InteractionLog, error)
	ListSessions(ctx context.Context, state model.State, limit int64) ([]*model.Session, error)
}

// SessionHandler handles staff session endpoints
type SessionHandler struct {
	admin  SessionAdmin
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(admin SessionAdmin, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		admin:  admin,
		logger: logger.With(zap.String("component", "staff_api")),
	}
}

// CloseCrisisRequest is the optional body of the crisis close endpoint
type CloseCrisisRequest struct {
	Notify bool `json:"notify"`
}

// Get handles GET /v1/sessions/{participant}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]

	s, err := h.admin.GetSession(r.Context(), participant)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Reset handles DELETE /v1/sessions/{participant}
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]

	if err := h.admin.Reset(r.Context(), participant); err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info("session reset",
		logging.Participant(participant),
		zap.String("staff", middleware.GetStaffID(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// CloseCrisis handles POST /v1/sessions/{participant}/crisis/close
func (h *SessionHandler) CloseCrisis(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]

	var req CloseCrisisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resume, err := h.admin.CloseCrisis(r.Context(), participant, req.Notify)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info("crisis closed by staff",
		logging.Participant(participant),
		zap.String("staff", middleware.GetStaffID(r.Context())),
		zap.Bool("notify", req.Notify))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resumeMessage": resume,
		"notified":      req.Notify,
	})
}

// Crises handles GET /v1/participants/{participant}/crises
func (h *SessionHandler) Crises(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]

	summary, err := h.admin.ListCrises(r.Context(), participant)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// List handles GET /v1/sessions?state=emergency
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	state := model.State(r.URL.Query().Get("state"))
	if state == "" {
		state = model.StateEmergency
	}
	if !state.Valid() {
		writeError(w, http.StatusBadRequest, "unknown state")
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	sessions, err := h.admin.ListSessions(r.Context(), state, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Interactions handles GET /v1/participants/{participant}/interactions
func (h *SessionHandler) Interactions(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.admin.ListInteractions(r.Context(), participant, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoActiveCrisis):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("staff request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
