package fleet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleetmasterpro/internal/events"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

func TestPlanBuilder_SaveDraftRoundTrip(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	alert := f.addAlert(t, car.ID, models.AlertPriorityUnclear)
	planned := date(2024, 8, 10)

	saved, err := f.plans.SaveDraft(f.ctx, models.MaintenancePlan{
		CarID:          car.ID,
		PlannedDate:    &planned,
		PlannedMileage: 86000,
		PeriodicOperations: []models.PeriodicOperation{
			{Operation: "Engine oil and filter change", Priority: models.DuePriorityHigh, EstimatedCost: 120.5},
		},
		RepairOperations: []models.RepairOperation{
			{AlertID: alert.ID, Description: "Fix brakes", Priority: alert.Priority, EstimatedCost: 300},
		},
		ServiceProvider: "Downtown Garage",
		Notes:           "Before the trip",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, models.PlanStatusDraft, saved.Status)
	assert.Equal(t, 420.5, saved.TotalEstimatedCost)
	assert.Equal(t, "Toyota Camry", saved.CarName)

	loaded, err := f.plans.LoadPlan(f.ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, *saved, *loaded)

	draft, err := f.plans.CurrentDraft(f.ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, draft.ID)

	// Saving the repair operation linked the alert.
	assert.True(t, f.alert(t, alert.ID).InPlan)
	assert.Contains(t, f.events.types(), events.AlertLinked)

	// Dropping it on the next save unlinks it.
	saved.RepairOperations = nil
	_, err = f.plans.SaveDraft(f.ctx, *saved)
	require.NoError(t, err)
	assert.False(t, f.alert(t, alert.ID).InPlan)
	loaded, err = f.plans.LoadPlan(f.ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.5, loaded.TotalEstimatedCost)
	assert.Equal(t, saved.CreatedAt, loaded.CreatedAt)
}

func TestPlanBuilder_SaveDraftValidation(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)

	_, err := f.plans.SaveDraft(f.ctx, models.MaintenancePlan{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.plans.SaveDraft(f.ctx, models.MaintenancePlan{
		CarID:              car.ID,
		PeriodicOperations: []models.PeriodicOperation{{Operation: "Oil", EstimatedCost: -1}},
	})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "periodicOperations[0].estimatedCost", verr.Field)

	_, err = f.plans.SaveDraft(f.ctx, models.MaintenancePlan{
		CarID:            car.ID,
		RepairOperations: []models.RepairOperation{{AlertID: "ghost"}},
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "repairOperations[0].alertId", verr.Field)

	_, err = f.plans.SaveDraft(f.ctx, models.MaintenancePlan{CarID: "ghost", Notes: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	plans, err := f.store.ListPlans(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanBuilder_SaveDraftDropsArchivedRepairs(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	alert := f.addAlert(t, car.ID, models.AlertPriorityUnclear)
	plan, err := f.alerts.AddToPlan(f.ctx, alert.ID, "")
	require.NoError(t, err)

	// The editor still holds the repair when the alert gets archived.
	stale := *plan
	_, err = f.alerts.Archive(f.ctx, alert.ID)
	require.NoError(t, err)

	saved, err := f.plans.SaveDraft(f.ctx, stale)
	require.NoError(t, err)
	assert.Empty(t, saved.RepairOperations)
	assert.False(t, f.alert(t, alert.ID).InPlan)
}

func TestPlanBuilder_SendToMaintenanceRejectsEmptyPlan(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	planned := date(2024, 8, 5)

	_, err := f.plans.SendToMaintenance(f.ctx, models.MaintenancePlan{CarID: car.ID, PlannedDate: &planned})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "operations", verr.Field)

	_, err = f.plans.SendToMaintenance(f.ctx, models.MaintenancePlan{
		CarID:              car.ID,
		PeriodicOperations: []models.PeriodicOperation{{Operation: "Oil"}},
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "plannedDate", verr.Field)

	entries, err := f.store.ListEntries(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, models.CarStatusActive, f.status.CarStatus(f.ctx, car.ID).Status)
}

func TestPlanBuilder_SendToMaintenance(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	alert := f.addAlert(t, car.ID, models.AlertPriorityCritical)
	draft, err := f.alerts.AddToPlan(f.ctx, alert.ID, "")
	require.NoError(t, err)

	planned, done := date(2024, 8, 5), date(2024, 8, 7)
	draft.PlannedDate = &planned
	draft.PlannedCompletionDate = &done
	draft.PeriodicOperations = []models.PeriodicOperation{{Operation: "Engine oil and filter change", EstimatedCost: 100}}
	draft.RepairOperations[0].EstimatedCost = 250

	entry, err := f.plans.SendToMaintenance(f.ctx, *draft)
	require.NoError(t, err)
	assert.Equal(t, car.ID, entry.CarID)
	assert.Equal(t, draft.ID, entry.PlanID)
	assert.Equal(t, planned, entry.StartDate)
	assert.Equal(t, models.PlanStatusScheduled, entry.Plan.Status)
	assert.Equal(t, 350.0, entry.Plan.TotalEstimatedCost)

	assert.Equal(t, models.PlanStatusScheduled, f.plan(t, draft.ID).Status)
	assert.Equal(t, models.CarStatusMaintenance, f.status.CarStatus(f.ctx, car.ID).Status)
	_, err = f.plans.CurrentDraft(f.ctx, car.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, f.alert(t, alert.ID).InPlan)
	assert.Contains(t, f.events.types(), events.PlanScheduled)

	// A car can only be in maintenance once.
	_, err = f.plans.SendToMaintenance(f.ctx, models.MaintenancePlan{
		CarID:              car.ID,
		PlannedDate:        &planned,
		PeriodicOperations: []models.PeriodicOperation{{Operation: "Oil"}},
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Scheduled plans are no longer editable as drafts.
	_, err = f.plans.SaveDraft(f.ctx, *draft)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPlanBuilder_CompleteMaintenance(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	alert := f.addAlert(t, car.ID, models.AlertPriorityCritical)
	draft, err := f.alerts.AddToPlan(f.ctx, alert.ID, "")
	require.NoError(t, err)
	planned := date(2024, 7, 30)
	draft.PlannedDate = &planned
	draft.ServiceProvider = "Downtown Garage"
	draft.PeriodicOperations = []models.PeriodicOperation{{Operation: "Tire rotation", EstimatedCost: 40}}
	_, err = f.plans.SendToMaintenance(f.ctx, *draft)
	require.NoError(t, err)

	_, err = f.plans.CompleteMaintenance(f.ctx, car.ID, CompletionInput{Mileage: 100})
	assert.ErrorIs(t, err, ErrValidation)

	finished := date(2024, 8, 1)
	record, err := f.plans.CompleteMaintenance(f.ctx, car.ID, CompletionInput{Mileage: 85100, Date: &finished, Notes: "all good"})
	require.NoError(t, err)
	assert.Equal(t, car.ID, record.CarID)
	assert.Equal(t, draft.ID, record.PlanID)
	assert.Equal(t, 85100, record.Mileage)
	assert.Equal(t, 40.0, record.Cost)
	assert.Equal(t, "Downtown Garage", record.ServiceProvider)
	assert.Equal(t, []string{"Tire rotation", "Repair (brakes): Squeaking brakes"}, record.Operations)

	updated, err := f.cars.Get(f.ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, 85100, updated.Mileage)
	require.NotNil(t, updated.LastService)
	assert.Equal(t, finished, *updated.LastService)
	require.NotNil(t, updated.LastServiceMileage)
	assert.Equal(t, 85100, *updated.LastServiceMileage)

	assert.Equal(t, models.PlanStatusCompleted, f.plan(t, draft.ID).Status)
	repaired := f.alert(t, alert.ID)
	assert.Equal(t, models.AlertStatusArchived, repaired.Status)
	assert.False(t, repaired.InPlan)
	assert.Equal(t, models.CarStatusActive, f.status.CarStatus(f.ctx, car.ID).Status)

	// The due engine now anchors on the new record.
	seed, err := f.plans.BuildDueItems(f.ctx, car.ID)
	require.NoError(t, err)
	for _, item := range seed.DueItems {
		if item.Operation == "Tire rotation" {
			require.NotNil(t, item.LastServiceMileage)
			assert.Equal(t, 10000, item.MileageUntil)
		}
	}

	_, err = f.plans.CompleteMaintenance(f.ctx, car.ID, CompletionInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlanBuilder_BuildDueItems(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	critical := f.addAlert(t, car.ID, models.AlertPriorityCritical)
	canWait := f.addAlert(t, car.ID, models.AlertPriorityCanWait)
	_, err := f.alerts.AddToPlan(f.ctx, canWait.ID, "")
	require.NoError(t, err)

	seed, err := f.plans.BuildDueItems(f.ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, "Toyota Camry", seed.CarName)
	assert.False(t, seed.CustomRegulations)
	assert.Len(t, seed.DueItems, len(DefaultRegulations()))
	require.Len(t, seed.RepairCandidates, 2)
	assert.Equal(t, critical.ID, seed.RepairCandidates[0].AlertID)
	assert.False(t, seed.RepairCandidates[0].Selected)
	assert.Equal(t, canWait.ID, seed.RepairCandidates[1].AlertID)
	assert.True(t, seed.RepairCandidates[1].Selected)
	require.NotNil(t, seed.Draft)

	regs := []models.Regulation{{Operation: "Tire rotation", MileageInterval: 10000, PeriodMonths: 6}}
	require.NoError(t, f.regs.SetForCar(f.ctx, car.ID, regs))
	seed, err = f.plans.BuildDueItems(f.ctx, car.ID)
	require.NoError(t, err)
	assert.True(t, seed.CustomRegulations)
	require.Len(t, seed.DueItems, 1)
	assert.Equal(t, 5000, seed.DueItems[0].MileageUntil)

	_, err = f.plans.BuildDueItems(f.ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlanBuilder_ListPlans(t *testing.T) {
	f := newFixture(t)
	car := f.addCar(t, 85000)
	other := f.addCar(t, 1000)

	_, err := f.plans.SaveDraft(f.ctx, models.MaintenancePlan{CarID: car.ID, Notes: "a"})
	require.NoError(t, err)
	_, err = f.plans.SaveDraft(f.ctx, models.MaintenancePlan{CarID: other.ID, Notes: "b"})
	require.NoError(t, err)

	plans, err := f.plans.ListPlans(f.ctx, car.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "a", plans[0].Notes)

	plans, err = f.plans.ListPlans(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func TestTotalCost(t *testing.T) {
	plan := &models.MaintenancePlan{
		PeriodicOperations: []models.PeriodicOperation{{EstimatedCost: 10}, {EstimatedCost: 5.5}},
		RepairOperations:   []models.RepairOperation{{EstimatedCost: 100}},
	}
	assert.Equal(t, 115.5, TotalCost(plan))
	assert.Zero(t, TotalCost(&models.MaintenancePlan{}))
}
