package fleet

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// StatusReport is a car's derived status with the alert counts shown next to it.
type StatusReport struct {
	CarID          string           `json:"carId"`
	Status         models.CarStatus `json:"status"`
	ActiveAlerts   int              `json:"activeAlerts"`
	CriticalAlerts int              `json:"criticalAlerts"`
}

// DeriveStatus applies the status rules, first match wins: in maintenance,
// any active critical alert, any other active alert, otherwise active.
func DeriveStatus(carID string, entries []models.MaintenanceEntry, alerts []models.Alert) StatusReport {
	report := StatusReport{CarID: carID}
	for i := range alerts {
		a := &alerts[i]
		if a.CarID != carID || !a.IsActive() {
			continue
		}
		report.ActiveAlerts++
		if a.Priority == models.AlertPriorityCritical {
			report.CriticalAlerts++
		}
	}

	inMaintenance := false
	for _, e := range entries {
		if e.CarID == carID {
			inMaintenance = true
			break
		}
	}

	switch {
	case inMaintenance:
		report.Status = models.CarStatusMaintenance
	case report.CriticalAlerts > 0:
		report.Status = models.CarStatusProblem
	case report.ActiveAlerts > 0:
		report.Status = models.CarStatusScheduled
	default:
		report.Status = models.CarStatusActive
	}
	return report
}

// StatusCalculator derives car status from stored alerts and maintenance entries.
type StatusCalculator struct {
	store  db.Store
	logger log.FieldLogger
}

// NewStatusCalculator creates a StatusCalculator.
func NewStatusCalculator(store db.Store, logger log.FieldLogger) *StatusCalculator {
	return &StatusCalculator{store: store, logger: logger}
}

// CarStatus never fails: read errors are logged and reported as inactive
// with zero counts.
func (c *StatusCalculator) CarStatus(ctx context.Context, carID string) StatusReport {
	entries, alerts, err := c.load(ctx)
	if err != nil {
		c.logger.WithError(err).WithField("car_id", carID).Warn("Failed to derive car status")
		return StatusReport{CarID: carID, Status: models.CarStatusInactive}
	}
	return DeriveStatus(carID, entries, alerts)
}

// FleetStatus reports every car. Only failing to list cars is an error.
func (c *StatusCalculator) FleetStatus(ctx context.Context) ([]StatusReport, error) {
	cars, err := c.store.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}

	reports := make([]StatusReport, 0, len(cars))
	entries, alerts, err := c.load(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to derive fleet status")
		for _, car := range cars {
			reports = append(reports, StatusReport{CarID: car.ID, Status: models.CarStatusInactive})
		}
		return reports, nil
	}
	for _, car := range cars {
		reports = append(reports, DeriveStatus(car.ID, entries, alerts))
	}
	return reports, nil
}

func (c *StatusCalculator) load(ctx context.Context) ([]models.MaintenanceEntry, []models.Alert, error) {
	entries, err := c.store.ListEntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list maintenance entries: %w", err)
	}
	alerts, err := c.store.ListAlerts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return entries, alerts, nil
}
