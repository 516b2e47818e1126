package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// AlertHandler serves alert reporting and the alert lifecycle.
type AlertHandler struct {
	alerts *fleet.AlertManager
	logger log.FieldLogger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts *fleet.AlertManager, logger log.FieldLogger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// List returns alerts, most urgent first. Filters: carId, status, priority, type.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AlertFilter{
		CarID:    q.Get("carId"),
		Status:   models.AlertStatus(q.Get("status")),
		Priority: models.AlertPriority(q.Get("priority")),
		Type:     models.AlertType(q.Get("type")),
	}
	alerts, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Create reports a new problem or recommendation.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.AlertInput
	if !decodeJSON(w, r, &input) {
		return
	}
	alert, err := h.alerts.Create(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// Get returns one alert.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// Archive closes an alert and takes it out of any plan.
func (h *AlertHandler) Archive(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.Archive(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// Restore reopens an archived alert.
func (h *AlertHandler) Restore(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.Restore(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// AddToPlan links the alert to a draft plan. An empty body or planId uses
// the car's current draft.
func (h *AlertHandler) AddToPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"planId"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	plan, err := h.alerts.AddToPlan(r.Context(), pathVar(r, "id"), req.PlanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// RemoveFromPlan unlinks the alert from whichever plan holds it.
func (h *AlertHandler) RemoveFromPlan(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.RemoveFromPlan(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
