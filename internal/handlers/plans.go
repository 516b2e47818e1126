package handlers

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// PlanHandler serves maintenance plans, the plan editor sessions and the
// in-maintenance list.
type PlanHandler struct {
	plans      *fleet.PlanBuilder
	cars       *fleet.CarService
	sessions   *fleet.EditorSessions
	reconciler *fleet.Reconciler
	logger     log.FieldLogger
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(plans *fleet.PlanBuilder, cars *fleet.CarService, sessions *fleet.EditorSessions, reconciler *fleet.Reconciler, logger log.FieldLogger) *PlanHandler {
	return &PlanHandler{
		plans:      plans,
		cars:       cars,
		sessions:   sessions,
		reconciler: reconciler,
		logger:     logger,
	}
}

// List returns plans, newest first, optionally for one car (?carId=).
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListPlans(r.Context(), r.URL.Query().Get("carId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// Get returns one plan.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.LoadPlan(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// SaveDraft stores the plan as its car's draft.
func (h *PlanHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var plan models.MaintenancePlan
	if !decodeJSON(w, r, &plan) {
		return
	}
	saved, err := h.plans.SaveDraft(r.Context(), plan)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Send schedules the plan and puts its car into maintenance.
func (h *PlanHandler) Send(w http.ResponseWriter, r *http.Request) {
	var plan models.MaintenancePlan
	if !decodeJSON(w, r, &plan) {
		return
	}
	entry, err := h.plans.SendToMaintenance(r.Context(), plan)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.sessions.Close(entry.CarID) {
		h.logger.WithField("car_id", entry.CarID).Debug("Editor session closed after send")
	}
	writeJSON(w, http.StatusCreated, entry)
}

// OpenEditor starts (or resumes) the autosaving editor session for a car.
func (h *PlanHandler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	carID := pathVar(r, "carId")
	if _, err := h.cars.Get(r.Context(), carID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	plan, err := h.sessions.Open(r.Context(), carID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// TouchEditor replaces the session's working plan and restarts its
// autosave timer.
func (h *PlanHandler) TouchEditor(w http.ResponseWriter, r *http.Request) {
	var plan models.MaintenancePlan
	if !decodeJSON(w, r, &plan) {
		return
	}
	if err := h.sessions.Touch(pathVar(r, "carId"), plan); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Draft updated"})
}

// SaveEditor persists the session's working plan immediately. An empty
// plan is not saved and yields 204.
func (h *PlanHandler) SaveEditor(w http.ResponseWriter, r *http.Request) {
	saved, err := h.sessions.Save(r.Context(), pathVar(r, "carId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if saved == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// CloseEditor ends the session without saving.
func (h *PlanHandler) CloseEditor(w http.ResponseWriter, r *http.Request) {
	carID := pathVar(r, "carId")
	if !h.sessions.Close(carID) {
		writeError(w, h.logger, fmt.Errorf("editor session for car %s: %w", carID, fleet.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMaintenance returns the cars currently in maintenance.
func (h *PlanHandler) ListMaintenance(w http.ResponseWriter, r *http.Request) {
	entries, err := h.plans.ListEntries(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Complete finishes the car's maintenance and records the service.
func (h *PlanHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var in fleet.CompletionInput
	if r.ContentLength != 0 && !decodeJSON(w, r, &in) {
		return
	}
	record, err := h.plans.CompleteMaintenance(r.Context(), pathVar(r, "carId"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Reconcile repairs drift between alerts, plans and their links.
func (h *PlanHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
