package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/middleware"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health, the landing page and the login page.
type SystemHandler struct {
	store   Pinger
	backend string
	logger  log.FieldLogger
}

// NewSystemHandler creates a SystemHandler. backend names the storage
// provider in health responses.
func NewSystemHandler(store Pinger, backend string, logger log.FieldLogger) *SystemHandler {
	return &SystemHandler{store: store, backend: backend, logger: logger}
}

// Health pings the storage backend.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{"status": "ok", "storage": h.backend}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		resp["status"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Index greets a signed-in browser session.
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":  "fleetmasterpro",
		"username": claims.Username,
		"role":     claims.Role,
	})
}

// Login tells a browser without a session how to sign in.
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sign in with POST /api/auth/login",
	})
}

// NotFound answers unknown API paths with JSON and sends unknown pages to
// the login page.
func (h *SystemHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httpError(w, http.StatusNotFound, "Not found")
		return
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}
