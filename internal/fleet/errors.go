package fleet

import (
	"errors"
	"fmt"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

var (
	// ErrNotFound is returned when a car, alert, plan or shop does not exist.
	ErrNotFound = db.ErrNotFound

	// ErrConflict is returned when an action clashes with current state,
	// e.g. sending a car that is already in maintenance.
	ErrConflict = db.ErrConflict

	// ErrValidation is matched by every *models.ValidationError.
	ErrValidation = models.ErrValidation
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// wrapNotFound annotates a storage ErrNotFound with the missing entity.
func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound(kind, id)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
