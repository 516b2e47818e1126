package fleet

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// ReconcileReport counts the repairs Reconcile made.
type ReconcileReport struct {
	LinksRemoved   int `json:"linksRemoved"`
	RepairsAdded   int `json:"repairsAdded"`
	RepairsRemoved int `json:"repairsRemoved"`
	AlertsFixed    int `json:"alertsFixed"`
}

// Changed reports whether anything was repaired.
func (r ReconcileReport) Changed() bool {
	return r != ReconcileReport{}
}

// Reconciler repairs drift between the link table, plan repair operations
// and alert.InPlan, treating the link table as the truth.
type Reconciler struct {
	store  db.Store
	logger log.FieldLogger
	now    func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(store db.Store, logger log.FieldLogger) *Reconciler {
	return &Reconciler{store: store, logger: logger, now: utcNow}
}

// Reconcile runs in one transaction. Links to missing or archived alerts,
// to missing or completed plans, or across cars are dropped; remaining links
// get their repair operation and InPlan flag back; unlinked repair
// operations in open plans are removed.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	err := r.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		report = ReconcileReport{}
		now := r.now()

		alerts, err := tx.ListAlerts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}
		plans, err := tx.ListPlans(ctx)
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}
		links, err := tx.ListLinks(ctx)
		if err != nil {
			return fmt.Errorf("failed to list links: %w", err)
		}

		alertByID := make(map[string]*models.Alert, len(alerts))
		for i := range alerts {
			alertByID[alerts[i].ID] = &alerts[i]
		}
		planByID := make(map[string]*models.MaintenancePlan, len(plans))
		for i := range plans {
			planByID[plans[i].ID] = &plans[i]
		}

		linkedTo := make(map[string]string, len(links))
		dirtyPlans := make(map[string]bool)
		for _, link := range links {
			alert, plan := alertByID[link.AlertID], planByID[link.PlanID]
			if alert == nil || plan == nil || !alert.IsActive() ||
				plan.Status == models.PlanStatusCompleted || plan.CarID != alert.CarID {
				if err := tx.DeleteLink(ctx, link.AlertID); err != nil {
					return fmt.Errorf("failed to delete link: %w", err)
				}
				report.LinksRemoved++
				continue
			}
			linkedTo[alert.ID] = plan.ID
			if !plan.HasRepair(alert.ID) {
				plan.RepairOperations = append(plan.RepairOperations, repairFor(alert))
				dirtyPlans[plan.ID] = true
				report.RepairsAdded++
			}
		}

		for i := range plans {
			plan := &plans[i]
			if plan.Status == models.PlanStatusCompleted {
				continue
			}
			kept := make([]models.RepairOperation, 0, len(plan.RepairOperations))
			for _, op := range plan.RepairOperations {
				if linkedTo[op.AlertID] == plan.ID {
					kept = append(kept, op)
					continue
				}
				report.RepairsRemoved++
				dirtyPlans[plan.ID] = true
			}
			if !dirtyPlans[plan.ID] {
				continue
			}
			plan.RepairOperations = kept
			plan.TotalEstimatedCost = plan.TotalCost()
			plan.UpdatedAt = now
			if err := tx.SavePlan(ctx, *plan); err != nil {
				return fmt.Errorf("failed to save plan: %w", err)
			}
		}

		for i := range alerts {
			alert := &alerts[i]
			_, linked := linkedTo[alert.ID]
			if alert.InPlan == linked {
				continue
			}
			alert.InPlan = linked
			alert.UpdatedAt = now
			if err := tx.SaveAlert(ctx, *alert); err != nil {
				return fmt.Errorf("failed to save alert: %w", err)
			}
			report.AlertsFixed++
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}

	if report.Changed() {
		r.logger.WithFields(log.Fields{
			"links_removed":   report.LinksRemoved,
			"repairs_added":   report.RepairsAdded,
			"repairs_removed": report.RepairsRemoved,
			"alerts_fixed":    report.AlertsFixed,
		}).Warn("Reconciled alert and plan links")
	}
	return report, nil
}
