package models

import (
	"time"
)

// ServiceRecord is a completed service visit.
type ServiceRecord struct {
	ID              string    `json:"id" bson:"_id"`
	CarID           string    `json:"carId" bson:"car_id" validate:"required"`
	Date            time.Time `json:"date" bson:"date"`
	Mileage         int       `json:"mileage" bson:"mileage" validate:"min=0"`
	Operations      []string  `json:"operations" bson:"operations" validate:"min=1,dive,required"`
	Cost            float64   `json:"cost" bson:"cost" validate:"gte=0"`
	ServiceProvider string    `json:"serviceProvider" bson:"service_provider"`
	Notes           string    `json:"notes" bson:"notes"`
	PlanID          string    `json:"planId,omitempty" bson:"plan_id,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
}

// Covers reports whether the record includes the operation.
func (r *ServiceRecord) Covers(operation string) bool {
	for _, op := range r.Operations {
		if op == operation {
			return true
		}
	}
	return false
}

// ServiceShop is a garage the user can send cars to.
type ServiceShop struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name" validate:"required,max=200"`
	Contacts  string    `json:"contacts" bson:"contacts" validate:"max=500"`
	Rating    int       `json:"rating" bson:"rating" validate:"min=1,max=5"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}
