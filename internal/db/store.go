package db

import (
	"context"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

// CarCollection defines the interface for car data operations.
type CarCollection interface {
	ListCars(ctx context.Context) ([]models.Car, error)
	GetCar(ctx context.Context, id string) (*models.Car, error)
	SaveCar(ctx context.Context, car models.Car) error
}

// AlertCollection defines the interface for alert data operations.
type AlertCollection interface {
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	SaveAlert(ctx context.Context, alert models.Alert) error
}

// PlanCollection defines the interface for maintenance plan operations.
// A car has at most one draft pointer, naming the plan its editor resumes.
type PlanCollection interface {
	ListPlans(ctx context.Context) ([]models.MaintenancePlan, error)
	GetPlan(ctx context.Context, id string) (*models.MaintenancePlan, error)
	SavePlan(ctx context.Context, plan models.MaintenancePlan) error
	GetDraftID(ctx context.Context, carID string) (string, error)
	SetDraftID(ctx context.Context, carID, planID string) error
	ClearDraftID(ctx context.Context, carID string) error
}

// MaintenanceCollection defines the interface for in-maintenance entries.
type MaintenanceCollection interface {
	ListEntries(ctx context.Context) ([]models.MaintenanceEntry, error)
	GetEntry(ctx context.Context, carID string) (*models.MaintenanceEntry, error)
	InsertEntry(ctx context.Context, entry models.MaintenanceEntry) error
	DeleteEntry(ctx context.Context, carID string) error
}

// LinkCollection defines the interface for the alert <-> plan relation.
type LinkCollection interface {
	ListLinks(ctx context.Context) ([]models.PlanAlertLink, error)
	GetLink(ctx context.Context, alertID string) (*models.PlanAlertLink, error)
	SaveLink(ctx context.Context, link models.PlanAlertLink) error
	DeleteLink(ctx context.Context, alertID string) error
}

// RegulationCollection defines the interface for per-car regulation overrides.
type RegulationCollection interface {
	GetRegulations(ctx context.Context, carID string) ([]models.Regulation, error)
	SaveRegulations(ctx context.Context, carID string, regs []models.Regulation) error
	DeleteRegulations(ctx context.Context, carID string) error
}

// ServiceRecordCollection defines the interface for service history.
type ServiceRecordCollection interface {
	ListServiceRecords(ctx context.Context) ([]models.ServiceRecord, error)
	SaveServiceRecord(ctx context.Context, record models.ServiceRecord) error
}

// ShopCollection defines the interface for service shop operations.
type ShopCollection interface {
	ListShops(ctx context.Context) ([]models.ServiceShop, error)
	GetShop(ctx context.Context, id string) (*models.ServiceShop, error)
	SaveShop(ctx context.Context, shop models.ServiceShop) error
	DeleteShop(ctx context.Context, id string) error
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// Store is the storage provider chosen once at startup: LocalStore for demo
// mode, MongoStore for the remote backend.
type Store interface {
	CarCollection
	AlertCollection
	PlanCollection
	MaintenanceCollection
	LinkCollection
	RegulationCollection
	ServiceRecordCollection
	ShopCollection
	UserCollection

	// Tx runs fn atomically. Every call fn makes must go through the Store
	// and context it receives.
	Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
