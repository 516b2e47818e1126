package fleet

import (
	"time"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

// monthLength is the fixed month used for elapsed-time arithmetic.
const monthLength = 30 * 24 * time.Hour

// Priority thresholds.
const (
	highMileage   = 2000
	highMonths    = 1
	mediumMileage = 5000
	mediumMonths  = 3
)

// DueItem is a regulation evaluated against one car. The scheduling fields
// are computed; EstimatedCost and PlanNotes are edited before saving a plan.
type DueItem struct {
	Operation          string             `json:"operation"`
	MileageInterval    int                `json:"mileageInterval"`
	PeriodMonths       int                `json:"periodMonths"`
	MileageSince       int                `json:"mileageSinceLastService"`
	MileageUntil       int                `json:"mileageUntilNext"`
	MonthsSince        int                `json:"monthsSinceService"`
	MonthsUntil        int                `json:"monthsUntilNext"`
	LastServiceDate    time.Time          `json:"lastServiceDate"`
	LastServiceMileage *int               `json:"lastServiceMileage,omitempty"`
	Priority           models.DuePriority `json:"priority"`
	Selected           bool               `json:"selected"`
	EstimatedCost      float64            `json:"estimatedCost"`
	PlanNotes          string             `json:"planNotes"`
	RegulationNotes    string             `json:"regulationNotes,omitempty"`
}

// ToOperation converts the item into a plan operation.
func (d DueItem) ToOperation() models.PeriodicOperation {
	return models.PeriodicOperation{
		Operation:     d.Operation,
		Priority:      d.Priority,
		EstimatedCost: d.EstimatedCost,
		Notes:         d.PlanNotes,
	}
}

// DueItems evaluates every regulation for the car, in catalog order.
//
// When records holds a service of the same operation for this car, the latest
// one anchors both axes and the item can go overdue (negative "until" values).
// Otherwise the odometer is assumed to have been serviced on multiples of the
// interval, and time is measured from the car's last service, its creation
// date or the Unix epoch, in that order.
func DueItems(car models.Car, regs []models.Regulation, records []models.ServiceRecord, now time.Time) []DueItem {
	items := make([]DueItem, 0, len(regs))
	for _, reg := range regs {
		if reg.MileageInterval <= 0 || reg.PeriodMonths <= 0 {
			continue
		}
		items = append(items, ComputeDue(car, reg, latestRecord(car.ID, reg.Operation, records), now))
	}
	return items
}

// ComputeDue evaluates one regulation. last may be nil. The regulation's
// intervals must be positive.
func ComputeDue(car models.Car, reg models.Regulation, last *models.ServiceRecord, now time.Time) DueItem {
	item := DueItem{
		Operation:       reg.Operation,
		MileageInterval: reg.MileageInterval,
		PeriodMonths:    reg.PeriodMonths,
		RegulationNotes: reg.Notes,
	}

	if last != nil {
		mileage := last.Mileage
		item.LastServiceDate = last.Date
		item.LastServiceMileage = &mileage
		item.MileageSince = max(car.Mileage-last.Mileage, 0)
		item.MileageUntil = reg.MileageInterval - item.MileageSince
		item.MonthsSince = monthsBetween(last.Date, now)
		item.MonthsUntil = reg.PeriodMonths - item.MonthsSince
	} else {
		item.LastServiceDate = car.ServiceAnchor()
		item.MileageSince = car.Mileage % reg.MileageInterval
		item.MileageUntil = reg.MileageInterval - item.MileageSince
		item.MonthsSince = monthsBetween(item.LastServiceDate, now)
		item.MonthsUntil = reg.PeriodMonths - item.MonthsSince%reg.PeriodMonths
	}

	item.Priority = duePriority(item.MileageUntil, item.MonthsUntil)
	item.Selected = item.Priority == models.DuePriorityHigh
	return item
}

func duePriority(mileageUntil, monthsUntil int) models.DuePriority {
	switch {
	case mileageUntil <= highMileage || monthsUntil <= highMonths:
		return models.DuePriorityHigh
	case mileageUntil <= mediumMileage || monthsUntil <= mediumMonths:
		return models.DuePriorityMedium
	default:
		return models.DuePriorityLow
	}
}

// monthsBetween counts whole 30-day months from since to now, never negative.
func monthsBetween(since, now time.Time) int {
	if !now.After(since) {
		return 0
	}
	return int(now.Sub(since) / monthLength)
}

func latestRecord(carID, operation string, records []models.ServiceRecord) *models.ServiceRecord {
	var latest *models.ServiceRecord
	for i := range records {
		r := &records[i]
		if r.CarID != carID || !r.Covers(operation) {
			continue
		}
		if latest == nil || r.Date.After(latest.Date) ||
			(r.Date.Equal(latest.Date) && r.Mileage > latest.Mileage) {
			latest = r
		}
	}
	return latest
}
