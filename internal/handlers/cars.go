package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// CarResponse is a car with its derived status.
type CarResponse struct {
	models.Car
	Status         models.CarStatus `json:"status"`
	ActiveAlerts   int              `json:"activeAlerts"`
	CriticalAlerts int              `json:"criticalAlerts"`
}

// CarHandler serves the car resources.
type CarHandler struct {
	cars   *fleet.CarService
	status *fleet.StatusCalculator
	plans  *fleet.PlanBuilder
	logger log.FieldLogger
}

// NewCarHandler creates a CarHandler.
func NewCarHandler(cars *fleet.CarService, status *fleet.StatusCalculator, plans *fleet.PlanBuilder, logger log.FieldLogger) *CarHandler {
	return &CarHandler{cars: cars, status: status, plans: plans, logger: logger}
}

func carResponse(car models.Car, report fleet.StatusReport) CarResponse {
	return CarResponse{
		Car:            car,
		Status:         report.Status,
		ActiveAlerts:   report.ActiveAlerts,
		CriticalAlerts: report.CriticalAlerts,
	}
}

// List returns every car with its status.
func (h *CarHandler) List(w http.ResponseWriter, r *http.Request) {
	cars, err := h.cars.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	reports, err := h.status.FleetStatus(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	byCar := make(map[string]fleet.StatusReport, len(reports))
	for _, rep := range reports {
		byCar[rep.CarID] = rep
	}

	out := make([]CarResponse, 0, len(cars))
	for _, c := range cars {
		rep, ok := byCar[c.ID]
		if !ok {
			rep = fleet.StatusReport{CarID: c.ID, Status: models.CarStatusInactive}
		}
		out = append(out, carResponse(c, rep))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create adds a car.
func (h *CarHandler) Create(w http.ResponseWriter, r *http.Request) {
	var car models.Car
	if !decodeJSON(w, r, &car) {
		return
	}
	created, err := h.cars.Create(r.Context(), car)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, carResponse(*created, h.status.CarStatus(r.Context(), created.ID)))
}

// Get returns one car with its status.
func (h *CarHandler) Get(w http.ResponseWriter, r *http.Request) {
	car, err := h.cars.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, carResponse(*car, h.status.CarStatus(r.Context(), car.ID)))
}

// UpdateMileage records a new odometer reading.
func (h *CarHandler) UpdateMileage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mileage *int `json:"mileage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mileage == nil {
		writeError(w, h.logger, models.NewValidationError("mileage", "mileage is required"))
		return
	}
	car, err := h.cars.UpdateMileage(r.Context(), pathVar(r, "id"), *req.Mileage)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, car)
}

// Status returns the derived status of one car.
func (h *CarHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if _, err := h.cars.Get(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.status.CarStatus(r.Context(), id))
}

// DueItems returns the plan editor seed: due operations, repair candidates
// and the current draft.
func (h *CarHandler) DueItems(w http.ResponseWriter, r *http.Request) {
	seed, err := h.plans.BuildDueItems(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, seed)
}
