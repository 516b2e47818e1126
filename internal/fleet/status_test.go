package fleet

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

func TestDeriveStatus(t *testing.T) {
	active := func(p models.AlertPriority) models.Alert {
		return models.Alert{CarID: "car-1", Priority: p, Status: models.AlertStatusActive}
	}
	archivedCritical := models.Alert{CarID: "car-1", Priority: models.AlertPriorityCritical, Status: models.AlertStatusArchived}
	otherCar := models.Alert{CarID: "car-2", Priority: models.AlertPriorityCritical, Status: models.AlertStatusActive}
	entry := []models.MaintenanceEntry{{CarID: "car-1"}}

	tests := []struct {
		name     string
		entries  []models.MaintenanceEntry
		alerts   []models.Alert
		want     models.CarStatus
		active   int
		critical int
	}{
		{"no alerts", nil, nil, models.CarStatusActive, 0, 0},
		{"only archived and other cars", nil, []models.Alert{archivedCritical, otherCar}, models.CarStatusActive, 0, 0},
		{"non critical alert", nil, []models.Alert{active(models.AlertPriorityCanWait)}, models.CarStatusScheduled, 1, 0},
		{"critical alert", nil, []models.Alert{active(models.AlertPriorityUnclear), active(models.AlertPriorityCritical)}, models.CarStatusProblem, 2, 1},
		{"maintenance wins over critical", entry, []models.Alert{active(models.AlertPriorityCritical)}, models.CarStatusMaintenance, 1, 1},
		{"maintenance without alerts", entry, nil, models.CarStatusMaintenance, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := DeriveStatus("car-1", tt.entries, tt.alerts)
			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, tt.active, report.ActiveAlerts)
			assert.Equal(t, tt.critical, report.CriticalAlerts)
		})
	}
}

func TestStatusCalculator_FromStore(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 1000)
	other := f.addCar(t, 2000)

	assert.Equal(t, models.CarStatusActive, f.status.CarStatus(f.ctx, car.ID).Status)

	f.addAlert(t, car.ID, models.AlertPriorityCritical)
	report := f.status.CarStatus(f.ctx, car.ID)
	assert.Equal(t, models.CarStatusProblem, report.Status)
	assert.Equal(t, 1, report.CriticalAlerts)

	reports, err := f.status.FleetStatus(f.ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	byCar := map[string]models.CarStatus{}
	for _, r := range reports {
		byCar[r.CarID] = r.Status
	}
	assert.Equal(t, models.CarStatusProblem, byCar[car.ID])
	assert.Equal(t, models.CarStatusActive, byCar[other.ID])
}

func TestStatusCalculator_ReadErrorIsInactive(t *testing.T) {
	f := newFixture(t)
	logger, hook := test.NewNullLogger()
	calc := NewStatusCalculator(f.store, logger)
	require.NoError(t, f.store.Close(f.ctx))

	report := calc.CarStatus(f.ctx, "car-1")
	assert.Equal(t, StatusReport{CarID: "car-1", Status: models.CarStatusInactive}, report)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	_, err := calc.FleetStatus(f.ctx)
	assert.Error(t, err)
}
