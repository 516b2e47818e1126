package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/events"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// AlertManager handles reported problems and their membership in plans.
type AlertManager struct {
	store  db.Store
	events events.Publisher
	logger log.FieldLogger
	now    func() time.Time
}

// NewAlertManager creates an AlertManager.
func NewAlertManager(store db.Store, publisher events.Publisher, logger log.FieldLogger) *AlertManager {
	return &AlertManager{store: store, events: publisher, logger: logger, now: utcNow}
}

// Create validates the report and stores it as an active alert outside any plan.
func (m *AlertManager) Create(ctx context.Context, input models.AlertInput) (*models.Alert, error) {
	if err := models.Validate(input); err != nil {
		return nil, err
	}
	if _, err := m.store.GetCar(ctx, input.CarID); err != nil {
		return nil, wrapNotFound(err, "car", input.CarID)
	}

	now := m.now()
	reportedAt := now
	if input.ReportedAt != nil && !input.ReportedAt.IsZero() {
		reportedAt = input.ReportedAt.UTC()
	}
	alert := models.Alert{
		ID:          uuid.NewString(),
		CarID:       input.CarID,
		Type:        input.Type,
		Priority:    input.Priority,
		Description: input.Description,
		Location:    input.Location,
		Mileage:     input.Mileage,
		Status:      models.AlertStatusActive,
		InPlan:      false,
		ReportedAt:  reportedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}

	m.logger.WithFields(log.Fields{
		"alert_id": alert.ID,
		"car_id":   alert.CarID,
		"priority": alert.Priority,
	}).Info("Alert created")
	m.events.Publish(events.Event{Type: events.AlertCreated, CarID: alert.CarID, EntityID: alert.ID, Payload: alert})
	return &alert, nil
}

// Get returns an alert by id.
func (m *AlertManager) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := m.store.GetAlert(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "alert", id)
	}
	return alert, nil
}

// List returns the alerts passing filter, most urgent first and newest
// first within a priority.
func (m *AlertManager) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	all, err := m.store.ListAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	alerts := make([]models.Alert, 0, len(all))
	for i := range all {
		if filter.Matches(&all[i]) {
			alerts = append(alerts, all[i])
		}
	}
	SortAlerts(alerts)
	return alerts, nil
}

// SortAlerts orders alerts critical, unclear, can-wait, then by report date
// descending.
func SortAlerts(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Priority.Rank(), alerts[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].ReportedAt.After(alerts[j].ReportedAt)
	})
}

// Archive moves the alert to the archive, first taking it out of its plan.
func (m *AlertManager) Archive(ctx context.Context, id string) (*models.Alert, error) {
	return m.setStatus(ctx, id, models.AlertStatusArchived, events.AlertArchived)
}

// Restore brings an archived alert back. A restored alert is never in a plan.
func (m *AlertManager) Restore(ctx context.Context, id string) (*models.Alert, error) {
	return m.setStatus(ctx, id, models.AlertStatusActive, events.AlertRestored)
}

func (m *AlertManager) setStatus(ctx context.Context, id string, status models.AlertStatus, eventType events.Type) (*models.Alert, error) {
	var (
		alert  *models.Alert
		planID string
	)
	err := m.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		var err error
		alert, err = tx.GetAlert(ctx, id)
		if err != nil {
			return wrapNotFound(err, "alert", id)
		}
		now := m.now()
		planID, err = unlinkAlert(ctx, tx, alert, now)
		if err != nil {
			return err
		}
		alert.Status = status
		alert.UpdatedAt = now
		return tx.SaveAlert(ctx, *alert)
	})
	if err != nil {
		return nil, err
	}

	entry := m.logger.WithFields(log.Fields{"alert_id": id, "status": status})
	if planID != "" {
		entry = entry.WithField("plan_id", planID)
		m.events.Publish(events.Event{Type: events.AlertUnlinked, CarID: alert.CarID, EntityID: id, Payload: map[string]string{"planId": planID}})
	}
	entry.Info("Alert status changed")
	m.events.Publish(events.Event{Type: eventType, CarID: alert.CarID, EntityID: id, Payload: alert})
	return alert, nil
}

// AddToPlan puts an active alert into a draft plan as a repair operation.
// An empty planID means the car's current draft, created when missing.
// Re-adding an alert to the plan that already holds it is a no-op; adding it
// to another plan moves it.
func (m *AlertManager) AddToPlan(ctx context.Context, alertID, planID string) (*models.MaintenancePlan, error) {
	var (
		plan  *models.MaintenancePlan
		alert *models.Alert
		moved string
	)
	err := m.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		var err error
		alert, err = tx.GetAlert(ctx, alertID)
		if err != nil {
			return wrapNotFound(err, "alert", alertID)
		}
		if !alert.IsActive() {
			return models.NewValidationError("alertId", "archived alerts cannot be added to a plan")
		}

		now := m.now()
		if planID == "" {
			plan, err = draftFor(ctx, tx, alert.CarID, now)
		} else {
			plan, err = tx.GetPlan(ctx, planID)
			err = wrapNotFound(err, "plan", planID)
		}
		if err != nil {
			return err
		}
		if plan.CarID != alert.CarID {
			return models.NewValidationError("planId", "plan belongs to another car")
		}
		if plan.Status != models.PlanStatusDraft {
			return fmt.Errorf("plan %s is %s: %w", plan.ID, plan.Status, ErrConflict)
		}

		if link, err := tx.GetLink(ctx, alert.ID); err == nil {
			if link.PlanID == plan.ID && plan.HasRepair(alert.ID) && alert.InPlan {
				return nil
			}
			if link.PlanID != plan.ID {
				moved = link.PlanID
			}
		}
		if _, err := unlinkAlert(ctx, tx, alert, now); err != nil {
			return err
		}
		// unlinkAlert may have rewritten this plan.
		if plan, err = tx.GetPlan(ctx, plan.ID); err != nil {
			return fmt.Errorf("failed to reload plan: %w", err)
		}
		return linkAlert(ctx, tx, plan, alert, now)
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(log.Fields{"alert_id": alertID, "plan_id": plan.ID}).Info("Alert added to plan")
	if moved != "" {
		m.events.Publish(events.Event{Type: events.AlertUnlinked, CarID: alert.CarID, EntityID: alertID, Payload: map[string]string{"planId": moved}})
	}
	m.events.Publish(events.Event{Type: events.AlertLinked, CarID: alert.CarID, EntityID: alertID, Payload: map[string]string{"planId": plan.ID}})
	return plan, nil
}

// RemoveFromPlan takes the alert out of whichever plan holds it.
func (m *AlertManager) RemoveFromPlan(ctx context.Context, alertID string) (*models.Alert, error) {
	var (
		alert  *models.Alert
		planID string
	)
	err := m.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		var err error
		alert, err = tx.GetAlert(ctx, alertID)
		if err != nil {
			return wrapNotFound(err, "alert", alertID)
		}
		wasInPlan := alert.InPlan
		planID, err = unlinkAlert(ctx, tx, alert, m.now())
		if err != nil {
			return err
		}
		if planID == "" && !wasInPlan {
			return nil
		}
		return tx.SaveAlert(ctx, *alert)
	})
	if err != nil {
		return nil, err
	}

	if planID != "" {
		m.logger.WithFields(log.Fields{"alert_id": alertID, "plan_id": planID}).Info("Alert removed from plan")
		m.events.Publish(events.Event{Type: events.AlertUnlinked, CarID: alert.CarID, EntityID: alertID, Payload: map[string]string{"planId": planID}})
	}
	return alert, nil
}
