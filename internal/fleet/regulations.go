package fleet

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

//go:embed regulations.yaml
var defaultCatalog []byte

type catalogFile struct {
	Regulations []models.Regulation `yaml:"regulations"`
}

// DefaultRegulations returns the built-in catalog.
func DefaultRegulations() []models.Regulation {
	regs, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("fleet: built-in regulation catalog is invalid: %v", err))
	}
	return regs
}

// ParseCatalog decodes and validates a YAML regulation catalog.
func ParseCatalog(data []byte) ([]models.Regulation, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode regulation catalog: %w", err)
	}
	if err := ValidateRegulations(file.Regulations); err != nil {
		return nil, err
	}
	return file.Regulations, nil
}

// LoadCatalogFile reads a catalog from disk.
func LoadCatalogFile(path string) ([]models.Regulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ValidateRegulations rejects empty lists, non-positive intervals and
// duplicate operations. Both intervals must be positive since the due engine
// divides by them.
func ValidateRegulations(regs []models.Regulation) error {
	if len(regs) == 0 {
		return models.NewValidationError("regulations", "regulations must contain at least 1 item(s)")
	}
	seen := make(map[string]bool, len(regs))
	for i, reg := range regs {
		prefix := fmt.Sprintf("regulations[%d]", i)
		if err := models.Validate(reg); err != nil {
			var verr *models.ValidationError
			if errors.As(err, &verr) {
				return models.NewValidationError(prefix+"."+verr.Field, prefix+"."+verr.Message)
			}
			return err
		}
		key := strings.ToLower(strings.TrimSpace(reg.Operation))
		if seen[key] {
			return models.NewValidationError(prefix+".operation", fmt.Sprintf("%s.operation %q is listed twice", prefix, reg.Operation))
		}
		seen[key] = true
	}
	return nil
}

// RegulationService resolves the regulation list that applies to each car.
type RegulationService struct {
	store    db.Store
	defaults []models.Regulation
	logger   log.FieldLogger
}

// NewRegulationService creates a service falling back to defaults for cars
// without an override.
func NewRegulationService(store db.Store, defaults []models.Regulation, logger log.FieldLogger) *RegulationService {
	return &RegulationService{store: store, defaults: defaults, logger: logger}
}

// Defaults returns a copy of the default catalog.
func (s *RegulationService) Defaults() []models.Regulation {
	return append([]models.Regulation(nil), s.defaults...)
}

// ForCar returns the car's override, or the defaults when it has none.
// custom reports which one was returned.
func (s *RegulationService) ForCar(ctx context.Context, carID string) (regs []models.Regulation, custom bool, err error) {
	return s.forCar(ctx, s.store, carID)
}

func (s *RegulationService) forCar(ctx context.Context, store db.Store, carID string) ([]models.Regulation, bool, error) {
	regs, err := store.GetRegulations(ctx, carID)
	if errors.Is(err, db.ErrNotFound) {
		return s.Defaults(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load regulations for car %s: %w", carID, err)
	}
	return regs, true, nil
}

// SetForCar stores a validated override for an existing car.
func (s *RegulationService) SetForCar(ctx context.Context, carID string, regs []models.Regulation) error {
	if err := ValidateRegulations(regs); err != nil {
		return err
	}
	if _, err := s.store.GetCar(ctx, carID); err != nil {
		return wrapNotFound(err, "car", carID)
	}
	if err := s.store.SaveRegulations(ctx, carID, regs); err != nil {
		return fmt.Errorf("failed to save regulations: %w", err)
	}
	s.logger.WithFields(log.Fields{"car_id": carID, "count": len(regs)}).Info("Regulation override saved")
	return nil
}

// ResetForCar drops the override so the defaults apply again.
func (s *RegulationService) ResetForCar(ctx context.Context, carID string) error {
	if err := s.store.DeleteRegulations(ctx, carID); err != nil {
		return fmt.Errorf("failed to reset regulations: %w", err)
	}
	return nil
}
