package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nordveil/sitechat/internal/model"
	"github.com/nordveil/sitechat/internal/service"
)

// AuthHandler handles POST /v1/admin/login.
type AuthHandler struct {
	authSvc      *service.AuthService
	passwordHash string
}

// NewAuthHandler creates an AuthHandler. passwordHash is the bcrypt hash
// of the admin password from configuration; empty disables admin login.
func NewAuthHandler(authSvc *service.AuthService, passwordHash string) *AuthHandler {
	return &AuthHandler{
		authSvc:      authSvc,
		passwordHash: passwordHash,
	}
}

// Login checks the admin password and issues a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		writeError(w, http.StatusServiceUnavailable, "auth_disabled", "admin auth is not configured")
		return
	}

	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "password is required")
		return
	}

	if err := h.authSvc.CheckPassword(h.passwordHash, req.Password); err != nil {
		slog.Info("admin login rejected")
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid password")
		return
	}

	token, err := h.authSvc.SignToken("admin")
	if err != nil {
		slog.Error("failed to sign token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{
		Token:     token,
		ExpiresIn: h.authSvc.ExpiryHours(),
	})
}
