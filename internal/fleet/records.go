package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// ServiceRecordService keeps the service history.
type ServiceRecordService struct {
	store  db.Store
	logger log.FieldLogger
	now    func() time.Time
}

// NewServiceRecordService creates a ServiceRecordService.
func NewServiceRecordService(store db.Store, logger log.FieldLogger) *ServiceRecordService {
	return &ServiceRecordService{store: store, logger: logger, now: utcNow}
}

// Add stores a record and moves the car's last service forward when the
// record is newer than what the car knows.
func (s *ServiceRecordService) Add(ctx context.Context, record models.ServiceRecord) (*models.ServiceRecord, error) {
	if err := models.Validate(record); err != nil {
		return nil, err
	}
	if record.Date.IsZero() {
		return nil, models.NewValidationError("date", "date is required")
	}

	err := s.store.Tx(ctx, func(ctx context.Context, tx db.Store) error {
		car, err := tx.GetCar(ctx, record.CarID)
		if err != nil {
			return wrapNotFound(err, "car", record.CarID)
		}

		now := s.now()
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.Date = record.Date.UTC()
		record.CreatedAt = now
		if err := tx.SaveServiceRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to save service record: %w", err)
		}

		if car.LastService != nil && !record.Date.After(*car.LastService) {
			return nil
		}
		date, mileage := record.Date, record.Mileage
		car.LastService = &date
		car.LastServiceMileage = &mileage
		car.Mileage = max(car.Mileage, mileage)
		car.UpdatedAt = now
		return tx.SaveCar(ctx, *car)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(log.Fields{"record_id": record.ID, "car_id": record.CarID}).Info("Service record added")
	return &record, nil
}

// List returns records newest first. An empty carID lists every car.
func (s *ServiceRecordService) List(ctx context.Context, carID string) ([]models.ServiceRecord, error) {
	all, err := s.store.ListServiceRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list service records: %w", err)
	}
	records := make([]models.ServiceRecord, 0, len(all))
	for _, r := range all {
		if carID == "" || r.CarID == carID {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
	return records, nil
}
