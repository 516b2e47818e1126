package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// RegulationsResponse is a car's effective maintenance schedule.
type RegulationsResponse struct {
	CarID       string              `json:"carId,omitempty"`
	Custom      bool                `json:"custom"`
	Regulations []models.Regulation `json:"regulations"`
}

// RegulationHandler serves the default catalog and per-car overrides.
type RegulationHandler struct {
	regulations *fleet.RegulationService
	logger      log.FieldLogger
}

// NewRegulationHandler creates a RegulationHandler.
func NewRegulationHandler(regulations *fleet.RegulationService, logger log.FieldLogger) *RegulationHandler {
	return &RegulationHandler{regulations: regulations, logger: logger}
}

// Defaults returns the built-in catalog.
func (h *RegulationHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RegulationsResponse{Regulations: h.regulations.Defaults()})
}

// ForCar returns the car's override, or the defaults when it has none.
func (h *RegulationHandler) ForCar(w http.ResponseWriter, r *http.Request) {
	carID := pathVar(r, "id")
	regs, custom, err := h.regulations.ForCar(r.Context(), carID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RegulationsResponse{CarID: carID, Custom: custom, Regulations: regs})
}

// SetForCar replaces the car's override with {"regulations": [...]}.
func (h *RegulationHandler) SetForCar(w http.ResponseWriter, r *http.Request) {
	var req RegulationsResponse
	if !decodeJSON(w, r, &req) {
		return
	}
	carID := pathVar(r, "id")
	if err := h.regulations.SetForCar(r.Context(), carID, req.Regulations); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RegulationsResponse{CarID: carID, Custom: true, Regulations: req.Regulations})
}

// ResetForCar drops the override so the defaults apply again.
func (h *RegulationHandler) ResetForCar(w http.ResponseWriter, r *http.Request) {
	if err := h.regulations.ResetForCar(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
