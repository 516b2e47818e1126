package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/fleet"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// RecordHandler serves the service history.
type RecordHandler struct {
	records *fleet.ServiceRecordService
	logger  log.FieldLogger
}

// NewRecordHandler creates a RecordHandler.
func NewRecordHandler(records *fleet.ServiceRecordService, logger log.FieldLogger) *RecordHandler {
	return &RecordHandler{records: records, logger: logger}
}

// List returns service records newest first, optionally for one car (?carId=).
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.List(r.Context(), r.URL.Query().Get("carId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Create adds a service record.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var record models.ServiceRecord
	if !decodeJSON(w, r, &record) {
		return
	}
	saved, err := h.records.Add(r.Context(), record)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
