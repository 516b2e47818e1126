package models

// Regulation is a catalog entry saying how often an operation recurs.
type Regulation struct {
	Operation       string `json:"operation" bson:"operation" yaml:"operation" validate:"required,max=200"`
	MileageInterval int    `json:"mileageInterval" bson:"mileage_interval" yaml:"mileage" validate:"gt=0"` // km
	PeriodMonths    int    `json:"periodMonths" bson:"period_months" yaml:"period" validate:"gt=0"`
	Notes           string `json:"notes,omitempty" bson:"notes,omitempty" yaml:"notes,omitempty"`
}

// RegulationSet is a per-car override of the default catalog.
type RegulationSet struct {
	CarID       string       `json:"carId" bson:"_id"`
	Regulations []Regulation `json:"regulations" bson:"regulations"`
}
