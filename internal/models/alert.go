package models

import (
	"time"
)

// AlertType distinguishes problems from recommendations.
type AlertType string

const (
	AlertTypeProblem        AlertType = "problem"
	AlertTypeRecommendation AlertType = "recommendation"
)

// AlertPriority is the urgency a user assigns to a report.
type AlertPriority string

const (
	AlertPriorityCritical AlertPriority = "critical"
	AlertPriorityUnclear  AlertPriority = "unclear"
	AlertPriorityCanWait  AlertPriority = "can-wait"
)

// Rank orders priorities for sorting, lower is more urgent.
func (p AlertPriority) Rank() int {
	switch p {
	case AlertPriorityCritical:
		return 0
	case AlertPriorityUnclear:
		return 1
	case AlertPriorityCanWait:
		return 2
	default:
		return 3
	}
}

// AlertStatus is the archive state of an alert.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusArchived AlertStatus = "archived"
)

// Alert represents a user-reported problem or recommendation for a car.
type Alert struct {
	ID          string        `json:"id" bson:"_id"`
	CarID       string        `json:"carId" bson:"car_id"`
	Type        AlertType     `json:"type" bson:"type"`
	Priority    AlertPriority `json:"priority" bson:"priority"`
	Description string        `json:"description" bson:"description"`
	Location    string        `json:"location" bson:"location"` // subsystem, e.g. "brakes"
	Mileage     int           `json:"mileage" bson:"mileage"`   // odometer at report time
	Status      AlertStatus   `json:"status" bson:"status"`
	InPlan      bool          `json:"inPlan" bson:"in_plan"`
	ReportedAt  time.Time     `json:"reportedAt" bson:"reported_at"`
	CreatedAt   time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updated_at"`
}

// IsActive reports whether the alert is open (not archived).
func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// AlertInput is the payload accepted when a user reports a problem.
// Field order matters: validation reports the first failing field.
type AlertInput struct {
	CarID       string        `json:"carId" validate:"required"`
	Description string        `json:"description" validate:"required,max=2000"`
	Location    string        `json:"location" validate:"required,max=200"`
	Mileage     int           `json:"mileage" validate:"gt=0"`
	Type        AlertType     `json:"type" validate:"oneof=problem recommendation"`
	Priority    AlertPriority `json:"priority" validate:"oneof=critical unclear can-wait"`
	ReportedAt  *time.Time    `json:"reportedAt,omitempty"`
}

// AlertFilter narrows ListAlerts results; empty fields match everything.
type AlertFilter struct {
	CarID    string
	Status   AlertStatus
	Priority AlertPriority
	Type     AlertType
}

// Matches reports whether the alert passes the filter.
func (f AlertFilter) Matches(a *Alert) bool {
	if f.CarID != "" && a.CarID != f.CarID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Priority != "" && a.Priority != f.Priority {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}
