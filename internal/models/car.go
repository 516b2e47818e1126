package models

import (
	"time"
)

// Car represents a tracked vehicle.
type Car struct {
	ID                 string     `json:"id" bson:"_id"`
	Brand              string     `json:"brand" bson:"brand" validate:"required,max=100"`
	Model              string     `json:"model" bson:"model" validate:"required,max=100"`
	Year               int        `json:"year" bson:"year" validate:"omitempty,min=1900,max=2100"`
	VIN                string     `json:"vin" bson:"vin" validate:"omitempty,max=17"`
	PlateNumber        string     `json:"plateNumber" bson:"plate_number" validate:"max=20"`
	Mileage            int        `json:"mileage" bson:"mileage" validate:"min=0"` // in kilometers
	Nickname           string     `json:"nickname" bson:"nickname" validate:"max=100"`
	LastService        *time.Time `json:"lastService,omitempty" bson:"last_service,omitempty"`
	LastServiceMileage *int       `json:"lastServiceMileage,omitempty" bson:"last_service_mileage,omitempty"`
	NextService        *time.Time `json:"nextService,omitempty" bson:"next_service,omitempty"`
	CreatedAt          time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt" bson:"updated_at"`
}

// DisplayName returns the nickname when set, otherwise "Brand Model".
func (c *Car) DisplayName() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.Brand + " " + c.Model
}

// ServiceAnchor returns the date elapsed time is measured from: the last
// service, then the creation date, then the Unix epoch.
func (c *Car) ServiceAnchor() time.Time {
	if c.LastService != nil && !c.LastService.IsZero() {
		return *c.LastService
	}
	if !c.CreatedAt.IsZero() {
		return c.CreatedAt
	}
	return time.Unix(0, 0).UTC()
}

// CarStatus is the derived operational status of a car.
type CarStatus string

const (
	CarStatusActive      CarStatus = "active"      // no open alerts
	CarStatusScheduled   CarStatus = "scheduled"   // needs attention, still operable
	CarStatusProblem     CarStatus = "problem"     // at least one critical alert
	CarStatusMaintenance CarStatus = "maintenance" // currently in service
	CarStatusInactive    CarStatus = "inactive"    // status could not be determined
)
