package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// CarService manages the car list.
type CarService struct {
	store  db.Store
	logger log.FieldLogger
	now    func() time.Time
}

// NewCarService creates a CarService.
func NewCarService(store db.Store, logger log.FieldLogger) *CarService {
	return &CarService{store: store, logger: logger, now: utcNow}
}

// Create validates and stores a new car.
func (s *CarService) Create(ctx context.Context, car models.Car) (*models.Car, error) {
	if err := models.Validate(car); err != nil {
		return nil, err
	}
	if car.ID == "" {
		car.ID = uuid.NewString()
	} else if _, err := s.store.GetCar(ctx, car.ID); err == nil {
		return nil, fmt.Errorf("car %s: %w", car.ID, ErrConflict)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	car.CreatedAt = now
	car.UpdatedAt = now
	if err := s.store.SaveCar(ctx, car); err != nil {
		return nil, fmt.Errorf("failed to save car: %w", err)
	}

	s.logger.WithFields(log.Fields{"car_id": car.ID, "name": car.DisplayName()}).Info("Car created")
	return &car, nil
}

// Get returns a car by id.
func (s *CarService) Get(ctx context.Context, id string) (*models.Car, error) {
	car, err := s.store.GetCar(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "car", id)
	}
	return car, nil
}

// List returns every car ordered by display name.
func (s *CarService) List(ctx context.Context) ([]models.Car, error) {
	cars, err := s.store.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	sort.SliceStable(cars, func(i, j int) bool {
		return strings.ToLower(cars[i].DisplayName()) < strings.ToLower(cars[j].DisplayName())
	})
	return cars, nil
}

// UpdateMileage records a new odometer reading. Odometers only go up.
func (s *CarService) UpdateMileage(ctx context.Context, id string, mileage int) (*models.Car, error) {
	if mileage < 0 {
		return nil, models.NewValidationError("mileage", "mileage must be at least 0")
	}
	car, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mileage < car.Mileage {
		return nil, models.NewValidationError("mileage",
			fmt.Sprintf("mileage must not be lower than the current reading of %d km", car.Mileage))
	}

	car.Mileage = mileage
	car.UpdatedAt = s.now()
	if err := s.store.SaveCar(ctx, *car); err != nil {
		return nil, fmt.Errorf("failed to save car: %w", err)
	}
	return car, nil
}
