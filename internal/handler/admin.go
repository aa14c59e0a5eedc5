package handler

import (
	"net/http"

	"github.com/nordveil/sitechat/internal/service"
)

// AdminHandler serves the diagnostics endpoints under /v1/admin.
type AdminHandler struct {
	stats *service.Stats
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(stats *service.Stats) *AdminHandler {
	return &AdminHandler{stats: stats}
}

// Stats returns the cumulative pipeline counters since process start.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}
