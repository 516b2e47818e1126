package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/events"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// RepairCandidate is an active alert offered to the plan editor.
type RepairCandidate struct {
	AlertID     string               `json:"alertId"`
	Type        models.AlertType     `json:"type"`
	Priority    models.AlertPriority `json:"priority"`
	Description string               `json:"description"`
	Location    string               `json:"location"`
	Mileage     int                  `json:"mileage"`
	ReportedAt  time.Time            `json:"reportedAt"`
	InPlan      bool                 `json:"inPlan"`
	Selected    bool                 `json:"selected"`
}

// PlanSeed pre-populates the plan editor for one car.
type PlanSeed struct {
	CarID             string                  `json:"carId"`
	CarName           string                  `json:"carName"`
	Mileage           int                     `json:"mileage"`
	CustomRegulations bool                    `json:"customRegulations"`
	DueItems          []DueItem               `json:"dueItems"`
	RepairCandidates  []RepairCandidate       `json:"repairCandidates"`
	Draft             *models.MaintenancePlan `json:"draft,omitempty"`
}

// CompletionInput describes how a maintenance visit ended. Zero values fall
// back to the plan: current time, planned mileage, estimated cost.
type CompletionInput struct {
	Date    *time.Time `json:"date,omitempty"`
	Mileage int        `json:"mileage"`
	Cost    *float64   `json:"cost,omitempty"`
	Notes   string     `json:"notes"`
}

// PlanBuilder assembles, saves and schedules maintenance plans.
type PlanBuilder struct {
	store       db.Store
	regulations *RegulationService
	events      events.Publisher
	logger      log.FieldLogger
	now         func() time.Time
}

// NewPlanBuilder creates a PlanBuilder.
func NewPlanBuilder(store db.Store, regulations *RegulationService, publisher events.Publisher, logger log.FieldLogger) *PlanBuilder {
	return &PlanBuilder{
		store:       store,
		regulations: regulations,
		events:      publisher,
		logger:      logger,
		now:         utcNow,
	}
}

// TotalCost sums the estimated cost of every selected operation.
func TotalCost(plan *models.MaintenancePlan) float64 {
	return plan.TotalCost()
}

// BuildDueItems combines the due engine output with the car's active alerts.
func (b *PlanBuilder) BuildDueItems(ctx context.Context, carID string) (*PlanSeed, error) {
	car, err := b.store.GetCar(ctx, carID)
	if err != nil {
		return nil, wrapNotFound(err, "car", carID)
	}
	regs, custom, err := b.regulations.ForCar(ctx, carID)
	if err != nil {
		return nil, err
	}
	records, err := b.store.ListServiceRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list service records: %w", err)
	}
	alerts, err := b.store.ListAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	seed := &PlanSeed{
		CarID:             car.ID,
		CarName:           car.DisplayName(),
		Mileage:           car.Mileage,
		CustomRegulations: custom,
		DueItems:          DueItems(*car, regs, records, b.now()),
		RepairCandidates:  []RepairCandidate{},
	}

	active := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.CarID == carID && a.IsActive() {
			active = append(active, a)
		}
	}
	SortAlerts(active)
	for _, a := range active {
		seed.RepairCandidates = append(seed.RepairCandidates, RepairCandidate{
			AlertID:     a.ID,
			Type:        a.Type,
			Priority:    a.Priority,
			Description: a.Description,
			Location:    a.Location,
			Mileage:     a.Mileage,
			ReportedAt:  a.ReportedAt,
			InPlan:      a.InPlan,
			Selected:    a.InPlan,
		})
	}

	draft, err := b.CurrentDraft(ctx, carID)
	switch {
	case err == nil:
		seed.Draft = draft
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return seed, nil
}

// SaveDraft validates and upserts the plan as the car's draft. Repair
// operations are reconciled with the alert links in the same transaction.
func (b *PlanBuilder) SaveDraft(ctx context.Context, plan models.MaintenancePlan) (*models.MaintenancePlan, error) {
	if plan.CarID == "" {
		return nil, models.NewValidationError("carId", "carId is required")
	}
	if err := models.Validate(plan); err != nil {
		return nil, err
	}

	var linked, unlinked []string
	err := b.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		if err := b.prepare(ctx, tx, &plan); err != nil {
			return err
		}
		plan.Status = models.PlanStatusDraft

		var err error
		if linked, unlinked, err = syncLinks(ctx, tx, &plan, plan.UpdatedAt); err != nil {
			return err
		}
		if err := tx.SavePlan(ctx, plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
		if err := tx.SetDraftID(ctx, plan.CarID, plan.ID); err != nil {
			return fmt.Errorf("failed to save draft pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(log.Fields{
		"plan_id":    plan.ID,
		"car_id":     plan.CarID,
		"operations": plan.OperationCount(),
	}).Debug("Draft saved")
	b.publishLinkChanges(plan, linked, unlinked)
	b.events.Publish(events.Event{Type: events.PlanDraftSaved, CarID: plan.CarID, EntityID: plan.ID, Payload: plan})
	return &plan, nil
}

// prepare fills in ids, names, timestamps and the total, and rejects edits
// to plans that already left the draft state.
func (b *PlanBuilder) prepare(ctx context.Context, tx db.Store, plan *models.MaintenancePlan) error {
	car, err := tx.GetCar(ctx, plan.CarID)
	if err != nil {
		return wrapNotFound(err, "car", plan.CarID)
	}

	now := b.now()
	plan.CreatedAt = now
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	} else {
		existing, err := tx.GetPlan(ctx, plan.ID)
		switch {
		case err == nil:
			if existing.CarID != plan.CarID {
				return models.NewValidationError("carId", "plan belongs to another car")
			}
			if existing.Status != models.PlanStatusDraft {
				return fmt.Errorf("plan %s is %s: %w", plan.ID, existing.Status, ErrConflict)
			}
			plan.CreatedAt = existing.CreatedAt
		case !errors.Is(err, db.ErrNotFound):
			return fmt.Errorf("failed to load plan: %w", err)
		}
	}
	if plan.CarName == "" {
		plan.CarName = car.DisplayName()
	}
	plan.TotalEstimatedCost = plan.TotalCost()
	plan.UpdatedAt = now
	return nil
}

// LoadPlan returns a plan by id.
func (b *PlanBuilder) LoadPlan(ctx context.Context, id string) (*models.MaintenancePlan, error) {
	plan, err := b.store.GetPlan(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "plan", id)
	}
	return plan, nil
}

// ListPlans returns plans, most recently updated first. An empty carID lists
// every car's plans.
func (b *PlanBuilder) ListPlans(ctx context.Context, carID string) ([]models.MaintenancePlan, error) {
	all, err := b.store.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	plans := make([]models.MaintenancePlan, 0, len(all))
	for _, p := range all {
		if carID == "" || p.CarID == carID {
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].UpdatedAt.After(plans[j].UpdatedAt)
	})
	return plans, nil
}

// CurrentDraft returns the plan the car's draft pointer names.
func (b *PlanBuilder) CurrentDraft(ctx context.Context, carID string) (*models.MaintenancePlan, error) {
	id, err := b.store.GetDraftID(ctx, carID)
	if err != nil {
		return nil, wrapNotFound(err, "draft for car", carID)
	}
	plan, err := b.store.GetPlan(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "plan", id)
	}
	if plan.Status != models.PlanStatusDraft {
		return nil, notFound("draft for car", carID)
	}
	return plan, nil
}

// ListEntries returns the cars currently in maintenance.
func (b *PlanBuilder) ListEntries(ctx context.Context) ([]models.MaintenanceEntry, error) {
	entries, err := b.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance entries: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartDate.Before(entries[j].StartDate)
	})
	return entries, nil
}

// SendToMaintenance schedules the plan and puts the car in maintenance. It
// needs at least one operation and a planned start date; the plan is stored
// as scheduled, the entry is created and the draft pointer cleared in one
// transaction.
func (b *PlanBuilder) SendToMaintenance(ctx context.Context, plan models.MaintenancePlan) (*models.MaintenanceEntry, error) {
	if plan.CarID == "" {
		return nil, models.NewValidationError("carId", "carId is required")
	}
	if plan.OperationCount() == 0 {
		return nil, models.NewValidationError("operations", "at least one operation must be selected")
	}
	if plan.PlannedDate == nil || plan.PlannedDate.IsZero() {
		return nil, models.NewValidationError("plannedDate", "plannedDate is required")
	}
	if plan.PlannedCompletionDate != nil && plan.PlannedCompletionDate.Before(*plan.PlannedDate) {
		return nil, models.NewValidationError("plannedCompletionDate", "plannedCompletionDate must not be before plannedDate")
	}
	if err := models.Validate(plan); err != nil {
		return nil, err
	}

	var (
		entry            models.MaintenanceEntry
		linked, unlinked []string
	)
	err := b.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		if _, err := tx.GetEntry(ctx, plan.CarID); err == nil {
			return fmt.Errorf("car %s is already in maintenance: %w", plan.CarID, ErrConflict)
		} else if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to load maintenance entry: %w", err)
		}
		if err := b.prepare(ctx, tx, &plan); err != nil {
			return err
		}
		plan.Status = models.PlanStatusScheduled

		var err error
		if linked, unlinked, err = syncLinks(ctx, tx, &plan, plan.UpdatedAt); err != nil {
			return err
		}
		if plan.OperationCount() == 0 {
			return models.NewValidationError("operations", "at least one operation must be selected")
		}
		if err := tx.SavePlan(ctx, plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}

		entry = models.MaintenanceEntry{
			ID:              uuid.NewString(),
			CarID:           plan.CarID,
			PlanID:          plan.ID,
			Plan:            plan,
			StartDate:       *plan.PlannedDate,
			ExpectedEndDate: plan.PlannedCompletionDate,
			CreatedAt:       plan.UpdatedAt,
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to create maintenance entry: %w", err)
		}

		draftID, err := tx.GetDraftID(ctx, plan.CarID)
		if err == nil && draftID == plan.ID {
			return tx.ClearDraftID(ctx, plan.CarID)
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to load draft pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(log.Fields{
		"plan_id":    plan.ID,
		"car_id":     plan.CarID,
		"start_date": entry.StartDate.Format("2006-01-02"),
		"total_cost": plan.TotalEstimatedCost,
	}).Info("Car sent to maintenance")
	b.publishLinkChanges(plan, linked, unlinked)
	b.events.Publish(events.Event{Type: events.PlanScheduled, CarID: plan.CarID, EntityID: plan.ID, Payload: entry})
	return &entry, nil
}

// CompleteMaintenance ends the car's maintenance visit: the entry is removed,
// a service record is written, the car's service fields are updated, the
// plan is marked completed and the alerts it repaired are archived.
func (b *PlanBuilder) CompleteMaintenance(ctx context.Context, carID string, in CompletionInput) (*models.ServiceRecord, error) {
	if in.Mileage < 0 {
		return nil, models.NewValidationError("mileage", "mileage must be at least 0")
	}
	if in.Cost != nil && *in.Cost < 0 {
		return nil, models.NewValidationError("cost", "cost must be 0 or more")
	}

	var (
		record   models.ServiceRecord
		archived []models.Alert
	)
	err := b.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		entry, err := tx.GetEntry(ctx, carID)
		if err != nil {
			return wrapNotFound(err, "maintenance entry for car", carID)
		}
		car, err := tx.GetCar(ctx, carID)
		if err != nil {
			return wrapNotFound(err, "car", carID)
		}
		plan, err := tx.GetPlan(ctx, entry.PlanID)
		if errors.Is(err, db.ErrNotFound) {
			snapshot := entry.Plan
			plan = &snapshot
		} else if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}

		now := b.now()
		mileage := in.Mileage
		if mileage == 0 {
			mileage = max(car.Mileage, plan.PlannedMileage)
		}
		if mileage < car.Mileage {
			return models.NewValidationError("mileage",
				fmt.Sprintf("mileage must not be lower than the current reading of %d km", car.Mileage))
		}
		date := now
		if in.Date != nil && !in.Date.IsZero() {
			date = in.Date.UTC()
		}
		cost := plan.TotalCost()
		if in.Cost != nil {
			cost = *in.Cost
		}

		record = models.ServiceRecord{
			ID:              uuid.NewString(),
			CarID:           carID,
			Date:            date,
			Mileage:         mileage,
			Operations:      planOperationNames(plan),
			Cost:            cost,
			ServiceProvider: plan.ServiceProvider,
			Notes:           in.Notes,
			PlanID:          plan.ID,
			CreatedAt:       now,
		}
		if err := tx.DeleteEntry(ctx, carID); err != nil {
			return fmt.Errorf("failed to delete maintenance entry: %w", err)
		}
		if err := tx.SaveServiceRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to save service record: %w", err)
		}

		car.Mileage = mileage
		car.LastService = &date
		car.LastServiceMileage = &mileage
		car.NextService = nil
		car.UpdatedAt = now
		if err := tx.SaveCar(ctx, *car); err != nil {
			return fmt.Errorf("failed to save car: %w", err)
		}

		plan.Status = models.PlanStatusCompleted
		plan.UpdatedAt = now
		if err := tx.SavePlan(ctx, *plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}

		archived, err = archiveRepaired(ctx, tx, plan, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(log.Fields{
		"car_id":   carID,
		"plan_id":  record.PlanID,
		"mileage":  record.Mileage,
		"archived": len(archived),
	}).Info("Maintenance completed")
	for _, a := range archived {
		b.events.Publish(events.Event{Type: events.AlertArchived, CarID: a.CarID, EntityID: a.ID, Payload: a})
	}
	b.events.Publish(events.Event{Type: events.MaintenanceCompleted, CarID: carID, EntityID: record.PlanID, Payload: record})
	return &record, nil
}

// archiveRepaired archives the alerts linked to a completed plan and drops
// their links.
func archiveRepaired(ctx context.Context, tx db.Store, plan *models.MaintenancePlan, now time.Time) ([]models.Alert, error) {
	links, err := tx.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	var archived []models.Alert
	for _, link := range links {
		if link.PlanID != plan.ID {
			continue
		}
		if err := tx.DeleteLink(ctx, link.AlertID); err != nil {
			return nil, fmt.Errorf("failed to delete link: %w", err)
		}
		alert, err := tx.GetAlert(ctx, link.AlertID)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load alert: %w", err)
		}
		alert.Status = models.AlertStatusArchived
		alert.InPlan = false
		alert.UpdatedAt = now
		if err := tx.SaveAlert(ctx, *alert); err != nil {
			return nil, fmt.Errorf("failed to save alert: %w", err)
		}
		archived = append(archived, *alert)
	}
	return archived, nil
}

func planOperationNames(plan *models.MaintenancePlan) []string {
	names := make([]string, 0, plan.OperationCount())
	for _, op := range plan.PeriodicOperations {
		names = append(names, op.Operation)
	}
	for _, op := range plan.RepairOperations {
		names = append(names, op.Description)
	}
	return names
}

func (b *PlanBuilder) publishLinkChanges(plan models.MaintenancePlan, linked, unlinked []string) {
	for _, id := range linked {
		b.events.Publish(events.Event{Type: events.AlertLinked, CarID: plan.CarID, EntityID: id, Payload: map[string]string{"planId": plan.ID}})
	}
	for _, id := range unlinked {
		b.events.Publish(events.Event{Type: events.AlertUnlinked, CarID: plan.CarID, EntityID: id, Payload: map[string]string{"planId": plan.ID}})
	}
}
