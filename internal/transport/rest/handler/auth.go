package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vocalsilence/internal/model"
	"vocalsilence/internal/service"
)

// Login bodies are two short strings.
const maxLoginBody = 4 << 10

// StaffAuthenticator issues staff tokens.
type StaffAuthenticator interface {
	Login(username, password string) (*model.LoginResponse, error)
}

// AuthHandler serves the staff login endpoint
type AuthHandler struct {
	auth   StaffAuthenticator
	logger *zap.Logger
}

func NewAuthHandler(auth StaffAuthenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger.With(zap.String("component", "staff_auth"))}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	resp, err := h.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		h.logger.Warn("staff login rejected", zap.String("username", req.Username), zap.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		h.logger.Error("staff token not issued", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("staff token issued", zap.String("staff_id", resp.StaffID), zap.String("username", req.Username))
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
