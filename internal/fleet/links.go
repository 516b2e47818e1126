package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// The helpers below run inside Store.Tx and keep the three views of alert
// to plan membership in step: the link row, the plan's repair operations and
// alert.InPlan.

// repairFor synthesizes the repair operation an alert contributes to a plan.
func repairFor(alert *models.Alert) models.RepairOperation {
	return models.RepairOperation{
		AlertID:     alert.ID,
		Description: fmt.Sprintf("Repair (%s): %s", alert.Location, alert.Description),
		Priority:    alert.Priority,
		Notes:       fmt.Sprintf("Reported at %d km on %s", alert.Mileage, alert.ReportedAt.Format("2006-01-02")),
	}
}

// linkAlert adds the alert to plan and persists all three records.
// The alert must not be linked elsewhere.
func linkAlert(ctx context.Context, tx db.Store, plan *models.MaintenancePlan, alert *models.Alert, now time.Time) error {
	if !plan.HasRepair(alert.ID) {
		plan.RepairOperations = append(plan.RepairOperations, repairFor(alert))
	}
	plan.TotalEstimatedCost = plan.TotalCost()
	plan.UpdatedAt = now
	if err := tx.SavePlan(ctx, *plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	if err := tx.SaveLink(ctx, models.PlanAlertLink{AlertID: alert.ID, PlanID: plan.ID, LinkedAt: now}); err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}
	alert.InPlan = true
	alert.UpdatedAt = now
	if err := tx.SaveAlert(ctx, *alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// unlinkAlert removes the alert from whichever draft holds it and clears
// alert.InPlan in memory. The caller saves the alert. It returns the id of
// the plan it was removed from, or "" when it was not linked. An alert in a
// scheduled plan stays put and ErrConflict is returned.
func unlinkAlert(ctx context.Context, tx db.Store, alert *models.Alert, now time.Time) (string, error) {
	planID := ""
	link, err := tx.GetLink(ctx, alert.ID)
	switch {
	case err == nil:
		if err := ensureDraft(ctx, tx, link.PlanID, alert.ID); err != nil {
			return "", err
		}
		planID = link.PlanID
		if err := tx.DeleteLink(ctx, alert.ID); err != nil {
			return "", fmt.Errorf("failed to delete link: %w", err)
		}
	case errors.Is(err, db.ErrNotFound):
	default:
		return "", fmt.Errorf("failed to load link: %w", err)
	}

	plans, err := tx.ListPlans(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list plans: %w", err)
	}
	for i := range plans {
		plan := &plans[i]
		// Only drafts are editable; sent and completed plans keep their repairs.
		if plan.Status != models.PlanStatusDraft || !plan.RemoveRepair(alert.ID) {
			continue
		}
		if planID == "" {
			planID = plan.ID
		}
		plan.TotalEstimatedCost = plan.TotalCost()
		plan.UpdatedAt = now
		if err := tx.SavePlan(ctx, *plan); err != nil {
			return "", fmt.Errorf("failed to save plan: %w", err)
		}
	}

	alert.InPlan = false
	alert.UpdatedAt = now
	return planID, nil
}

// draftFor returns the car's current draft, creating an empty one when the
// car has none.
func draftFor(ctx context.Context, tx db.Store, carID string, now time.Time) (*models.MaintenancePlan, error) {
	id, err := tx.GetDraftID(ctx, carID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to load draft pointer: %w", err)
	}
	if err == nil {
		plan, err := tx.GetPlan(ctx, id)
		if err == nil && plan.Status == models.PlanStatusDraft {
			return plan, nil
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to load draft: %w", err)
		}
	}

	car, err := tx.GetCar(ctx, carID)
	if err != nil {
		return nil, wrapNotFound(err, "car", carID)
	}
	plan := &models.MaintenancePlan{
		ID:             uuid.NewString(),
		CarID:          car.ID,
		CarName:        car.DisplayName(),
		PlannedMileage: car.Mileage,
		Status:         models.PlanStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.SavePlan(ctx, *plan); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	if err := tx.SetDraftID(ctx, carID, plan.ID); err != nil {
		return nil, fmt.Errorf("failed to save draft pointer: %w", err)
	}
	return plan, nil
}

// syncLinks makes the link table match plan.RepairOperations after the plan
// was edited as a whole. Every referenced alert must belong to
// the plan's car; repairs of archived alerts and duplicates are dropped.
// The caller saves the plan itself.
func syncLinks(ctx context.Context, tx db.Store, plan *models.MaintenancePlan, now time.Time) (linked, unlinked []string, err error) {
	wanted := make(map[string]bool, len(plan.RepairOperations))
	kept := make([]models.RepairOperation, 0, len(plan.RepairOperations))
	for i, op := range plan.RepairOperations {
		field := fmt.Sprintf("repairOperations[%d].alertId", i)
		alert, err := tx.GetAlert(ctx, op.AlertID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, models.NewValidationError(field, fmt.Sprintf("%s refers to an unknown alert", field))
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load alert: %w", err)
		}
		if alert.CarID != plan.CarID {
			return nil, nil, models.NewValidationError(field, fmt.Sprintf("%s belongs to another car", field))
		}
		// Archived while the editor was open: the repair is dropped.
		if !alert.IsActive() || wanted[alert.ID] {
			continue
		}
		wanted[alert.ID] = true
		kept = append(kept, op)

		link, err := tx.GetLink(ctx, alert.ID)
		if err == nil && link.PlanID == plan.ID && alert.InPlan {
			continue
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to load link: %w", err)
		}
		if err == nil && link.PlanID != plan.ID {
			if err := detachFromPlan(ctx, tx, link.PlanID, alert.ID, now); err != nil {
				return nil, nil, err
			}
		}
		if err := tx.SaveLink(ctx, models.PlanAlertLink{AlertID: alert.ID, PlanID: plan.ID, LinkedAt: now}); err != nil {
			return nil, nil, fmt.Errorf("failed to save link: %w", err)
		}
		alert.InPlan = true
		alert.UpdatedAt = now
		if err := tx.SaveAlert(ctx, *alert); err != nil {
			return nil, nil, fmt.Errorf("failed to save alert: %w", err)
		}
		linked = append(linked, alert.ID)
	}
	if len(kept) != len(plan.RepairOperations) {
		plan.RepairOperations = kept
		plan.TotalEstimatedCost = plan.TotalCost()
	}

	links, err := tx.ListLinks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list links: %w", err)
	}
	for _, link := range links {
		if link.PlanID != plan.ID || wanted[link.AlertID] {
			continue
		}
		if err := tx.DeleteLink(ctx, link.AlertID); err != nil {
			return nil, nil, fmt.Errorf("failed to delete link: %w", err)
		}
		alert, err := tx.GetAlert(ctx, link.AlertID)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load alert: %w", err)
		}
		alert.InPlan = false
		alert.UpdatedAt = now
		if err := tx.SaveAlert(ctx, *alert); err != nil {
			return nil, nil, fmt.Errorf("failed to save alert: %w", err)
		}
		unlinked = append(unlinked, alert.ID)
	}
	return linked, unlinked, nil
}

// detachFromPlan drops the alert's repair operation from another draft.
func detachFromPlan(ctx context.Context, tx db.Store, planID, alertID string, now time.Time) error {
	other, err := tx.GetPlan(ctx, planID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if other.Status != models.PlanStatusDraft {
		return fmt.Errorf("alert %s is in %s plan %s: %w", alertID, other.Status, other.ID, ErrConflict)
	}
	if !other.RemoveRepair(alertID) {
		return nil
	}
	other.TotalEstimatedCost = other.TotalCost()
	other.UpdatedAt = now
	if err := tx.SavePlan(ctx, *other); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// ensureDraft fails with ErrConflict when planID names a plan that has
// already been sent. A missing plan counts as a draft.
func ensureDraft(ctx context.Context, tx db.Store, planID, alertID string) error {
	plan, err := tx.GetPlan(ctx, planID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if plan.Status != models.PlanStatusDraft {
		return fmt.Errorf("alert %s is in %s plan %s: %w", alertID, plan.Status, plan.ID, ErrConflict)
	}
	return nil
}
