package models

import (
	"time"
)

// DuePriority is the urgency the due engine assigns to a periodic operation.
type DuePriority string

const (
	DuePriorityHigh   DuePriority = "high"
	DuePriorityMedium DuePriority = "medium"
	DuePriorityLow    DuePriority = "low"
)

// PlanStatus is the lifecycle state of a maintenance plan.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusScheduled PlanStatus = "scheduled"
	PlanStatusCompleted PlanStatus = "completed"
)

// PeriodicOperation is a regulation-driven item selected into a plan.
type PeriodicOperation struct {
	Operation     string      `json:"operation" bson:"operation" validate:"required"`
	Priority      DuePriority `json:"priority" bson:"priority" validate:"omitempty,oneof=high medium low"`
	EstimatedCost float64     `json:"estimatedCost" bson:"estimated_cost" validate:"gte=0"`
	Notes         string      `json:"notes" bson:"notes"`
}

// RepairOperation is an alert-driven item selected into a plan.
type RepairOperation struct {
	AlertID       string        `json:"alertId" bson:"alert_id" validate:"required"`
	Description   string        `json:"description" bson:"description"`
	Priority      AlertPriority `json:"priority" bson:"priority" validate:"omitempty,oneof=critical unclear can-wait"`
	EstimatedCost float64       `json:"estimatedCost" bson:"estimated_cost" validate:"gte=0"`
	Notes         string        `json:"notes" bson:"notes"`
}

// MaintenancePlan bundles periodic and repair operations for one service visit.
type MaintenancePlan struct {
	ID                    string              `json:"id" bson:"_id"`
	CarID                 string              `json:"carId" bson:"car_id"`
	CarName               string              `json:"carName" bson:"car_name"`
	PlannedDate           *time.Time          `json:"plannedDate,omitempty" bson:"planned_date,omitempty"`
	PlannedCompletionDate *time.Time          `json:"plannedCompletionDate,omitempty" bson:"planned_completion_date,omitempty"`
	PlannedMileage        int                 `json:"plannedMileage" bson:"planned_mileage" validate:"min=0"`
	PeriodicOperations    []PeriodicOperation `json:"periodicOperations" bson:"periodic_operations" validate:"dive"`
	RepairOperations      []RepairOperation   `json:"repairOperations" bson:"repair_operations" validate:"dive"`
	TotalEstimatedCost    float64             `json:"totalEstimatedCost" bson:"total_estimated_cost"`
	ServiceProvider       string              `json:"serviceProvider" bson:"service_provider"`
	Notes                 string              `json:"notes" bson:"notes"`
	Status                PlanStatus          `json:"status" bson:"status"`
	CreatedAt             time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt             time.Time           `json:"updatedAt" bson:"updated_at"`
}

// OperationCount returns the number of selected operations.
func (p *MaintenancePlan) OperationCount() int {
	return len(p.PeriodicOperations) + len(p.RepairOperations)
}

// IsEmpty reports whether the plan carries nothing worth persisting.
func (p *MaintenancePlan) IsEmpty() bool {
	return p.OperationCount() == 0 && p.Notes == "" && p.ServiceProvider == "" && p.PlannedDate == nil
}

// HasRepair reports whether the plan references the alert.
func (p *MaintenancePlan) HasRepair(alertID string) bool {
	for _, op := range p.RepairOperations {
		if op.AlertID == alertID {
			return true
		}
	}
	return false
}

// RemoveRepair drops every repair operation referencing the alert and
// reports whether anything was removed.
func (p *MaintenancePlan) RemoveRepair(alertID string) bool {
	kept := make([]RepairOperation, 0, len(p.RepairOperations))
	removed := false
	for _, op := range p.RepairOperations {
		if op.AlertID == alertID {
			removed = true
			continue
		}
		kept = append(kept, op)
	}
	p.RepairOperations = kept
	return removed
}

// TotalCost sums estimated cost over all selected operations.
func (p *MaintenancePlan) TotalCost() float64 {
	var total float64
	for _, op := range p.PeriodicOperations {
		total += op.EstimatedCost
	}
	for _, op := range p.RepairOperations {
		total += op.EstimatedCost
	}
	return total
}

// MaintenanceEntry marks a car as currently being serviced.
type MaintenanceEntry struct {
	ID              string          `json:"id" bson:"_id"`
	CarID           string          `json:"carId" bson:"car_id"`
	PlanID          string          `json:"planId" bson:"plan_id"`
	Plan            MaintenancePlan `json:"plan" bson:"plan"`
	StartDate       time.Time       `json:"startDate" bson:"start_date"`
	ExpectedEndDate *time.Time      `json:"expectedEndDate,omitempty" bson:"expected_end_date,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"created_at"`
}

// PlanAlertLink records that an alert is covered by a plan's repair operations.
type PlanAlertLink struct {
	AlertID  string    `json:"alertId" bson:"_id"`
	PlanID   string    `json:"planId" bson:"plan_id"`
	LinkedAt time.Time `json:"linkedAt" bson:"linked_at"`
}
