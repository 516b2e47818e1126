package db

// Local storage keys. Each holds a JSON array unless noted.
const (
	KeyCars           = "cars"
	KeyServiceRecords = "serviceRecords"
	KeyAlerts         = "userAlerts"
	KeyInMaintenance  = "in-maintenance"
	KeyPlans          = "maintenance-plans"
	KeyShops          = "service-shops"
	KeyLinks          = "plan-alert-links"
	KeyUsers          = "users"
)

// RegulationKey holds a car's regulation override.
func RegulationKey(carID string) string {
	return "reglament_" + carID
}

// DraftKey holds the id of a car's draft plan (scalar string).
func DraftKey(carID string) string {
	return "maintenance_plan_draft_" + carID
}
