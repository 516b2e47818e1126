package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

// bucketLocal holds every key of the local store.
var bucketLocal = []byte("localStorage")

var _ Store = (*LocalStore)(nil)

// maxResets bounds how many corrupt keys a single read will repair.
const maxResets = 8

// LocalStore keeps each collection as a JSON array under a named key inside a
// single BoltDB bucket, the layout the browser demo mode used.
type LocalStore struct {
	db      *bbolt.DB
	tx      *bbolt.Tx
	logger  log.FieldLogger
	onReset func(key string)
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithLogger sets the logger used for storage warnings.
func WithLogger(logger log.FieldLogger) LocalOption {
	return func(s *LocalStore) {
		s.logger = logger
	}
}

// WithResetHook registers a callback run when a corrupt key is reset.
// The hook runs inside a write transaction and must not use the store.
func WithResetHook(fn func(key string)) LocalOption {
	return func(s *LocalStore) {
		s.onReset = fn
	}
}

// corruptKeyError reports undecodable JSON found during a read-only transaction.
type corruptKeyError struct {
	key string
	err error
}

func (e *corruptKeyError) Error() string {
	return fmt.Sprintf("corrupt data under %q: %v", e.key, e.err)
}

// userRecord keeps the password hash, which models.User hides from JSON.
type userRecord struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

// NewLocalStore opens (or creates) the BoltDB file at path.
func NewLocalStore(path string, opts ...LocalOption) (*LocalStore, error) {
	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &LocalStore{db: bdb, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLocal); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database file. Closing a transaction view is a no-op.
func (s *LocalStore) Close(ctx context.Context) error {
	if s.tx != nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ping reports whether the store is open.
func (s *LocalStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrStorageClosed
	}
	return nil
}

// Tx runs fn inside one BoltDB write transaction.
func (s *LocalStore) Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	if s.db == nil {
		return ErrStorageClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(ctx, &LocalStore{db: s.db, tx: tx, logger: s.logger, onReset: s.onReset})
	})
}

func (s *LocalStore) view(fn func(tx *bbolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	if s.db == nil {
		return ErrStorageClosed
	}
	for attempt := 0; ; attempt++ {
		err := s.db.View(fn)
		var cerr *corruptKeyError
		if !errors.As(err, &cerr) || attempt >= maxResets {
			return err
		}
		// Repair the key in a write transaction, then read again.
		rerr := s.db.Update(func(tx *bbolt.Tx) error {
			return s.reset(tx, cerr.key, cerr.err)
		})
		if rerr != nil {
			return rerr
		}
	}
}

func (s *LocalStore) update(fn func(tx *bbolt.Tx) error) error {
	if s.tx != nil {
		if !s.tx.Writable() {
			return fmt.Errorf("local store: write inside read-only transaction")
		}
		return fn(s.tx)
	}
	if s.db == nil {
		return ErrStorageClosed
	}
	return s.db.Update(fn)
}

func (s *LocalStore) reset(tx *bbolt.Tx, key string, cause error) error {
	b := tx.Bucket(bucketLocal)
	if b == nil {
		return fmt.Errorf("bucket %s not found", bucketLocal)
	}
	if err := b.Put([]byte(key), []byte("[]")); err != nil {
		return fmt.Errorf("failed to reset %q: %w", key, err)
	}
	s.logger.WithError(cause).WithField("key", key).Warn("Corrupt local storage key reset to empty list")
	if s.onReset != nil {
		s.onReset(key)
	}
	return nil
}

// loadList decodes the JSON array under key. A missing key yields nil.
func loadList[T any](s *LocalStore, tx *bbolt.Tx, key string) ([]T, error) {
	b := tx.Bucket(bucketLocal)
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", bucketLocal)
	}
	data := b.Get([]byte(key))
	if data == nil {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		if !tx.Writable() {
			return nil, &corruptKeyError{key: key, err: err}
		}
		if rerr := s.reset(tx, key, err); rerr != nil {
			return nil, rerr
		}
		return []T{}, nil
	}
	return items, nil
}

func storeList[T any](tx *bbolt.Tx, key string, items []T) error {
	b := tx.Bucket(bucketLocal)
	if b == nil {
		return fmt.Errorf("bucket %s not found", bucketLocal)
	}
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}

func listAll[T any](s *LocalStore, key string) ([]T, error) {
	var items []T
	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		items, err = loadList[T](s, tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func findOne[T any](s *LocalStore, key string, match func(*T) bool) (*T, error) {
	items, err := listAll[T](s, key)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if match(&items[i]) {
			return &items[i], nil
		}
	}
	return nil, ErrNotFound
}

// saveOne replaces the first item matching same, or appends item.
func saveOne[T any](s *LocalStore, key string, item T, same func(*T) bool) error {
	return s.update(func(tx *bbolt.Tx) error {
		items, err := loadList[T](s, tx, key)
		if err != nil {
			return err
		}
		for i := range items {
			if same(&items[i]) {
				items[i] = item
				return storeList(tx, key, items)
			}
		}
		return storeList(tx, key, append(items, item))
	})
}

// removeWhere drops matching items and returns ErrNotFound if none matched.
func removeWhere[T any](s *LocalStore, key string, match func(*T) bool) error {
	return s.update(func(tx *bbolt.Tx) error {
		items, err := loadList[T](s, tx, key)
		if err != nil {
			return err
		}
		kept := make([]T, 0, len(items))
		for i := range items {
			if !match(&items[i]) {
				kept = append(kept, items[i])
			}
		}
		if len(kept) == len(items) {
			return ErrNotFound
		}
		return storeList(tx, key, kept)
	})
}

// ListCars returns every car.
func (s *LocalStore) ListCars(ctx context.Context) ([]models.Car, error) {
	return listAll[models.Car](s, KeyCars)
}

// GetCar finds a car by id.
func (s *LocalStore) GetCar(ctx context.Context, id string) (*models.Car, error) {
	return findOne(s, KeyCars, func(c *models.Car) bool { return c.ID == id })
}

// SaveCar upserts a car by id.
func (s *LocalStore) SaveCar(ctx context.Context, car models.Car) error {
	return saveOne(s, KeyCars, car, func(c *models.Car) bool { return c.ID == car.ID })
}

// ListAlerts returns every alert.
func (s *LocalStore) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	return listAll[models.Alert](s, KeyAlerts)
}

// GetAlert finds an alert by id.
func (s *LocalStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return findOne(s, KeyAlerts, func(a *models.Alert) bool { return a.ID == id })
}

// SaveAlert upserts an alert by id.
func (s *LocalStore) SaveAlert(ctx context.Context, alert models.Alert) error {
	return saveOne(s, KeyAlerts, alert, func(a *models.Alert) bool { return a.ID == alert.ID })
}

// ListPlans returns every maintenance plan.
func (s *LocalStore) ListPlans(ctx context.Context) ([]models.MaintenancePlan, error) {
	return listAll[models.MaintenancePlan](s, KeyPlans)
}

// GetPlan finds a plan by id.
func (s *LocalStore) GetPlan(ctx context.Context, id string) (*models.MaintenancePlan, error) {
	return findOne(s, KeyPlans, func(p *models.MaintenancePlan) bool { return p.ID == id })
}

// SavePlan upserts a plan by id.
func (s *LocalStore) SavePlan(ctx context.Context, plan models.MaintenancePlan) error {
	return saveOne(s, KeyPlans, plan, func(p *models.MaintenancePlan) bool { return p.ID == plan.ID })
}

// GetDraftID returns the id of the car's draft plan.
func (s *LocalStore) GetDraftID(ctx context.Context, carID string) (string, error) {
	var id string
	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketLocal)
		}
		data := b.Get([]byte(DraftKey(carID)))
		if len(data) == 0 {
			return ErrNotFound
		}
		id = string(data)
		return nil
	})
	return id, err
}

// SetDraftID points the car's draft key at a plan.
func (s *LocalStore) SetDraftID(ctx context.Context, carID, planID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketLocal)
		}
		return b.Put([]byte(DraftKey(carID)), []byte(planID))
	})
}

// ClearDraftID removes the car's draft pointer.
func (s *LocalStore) ClearDraftID(ctx context.Context, carID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketLocal)
		}
		return b.Delete([]byte(DraftKey(carID)))
	})
}

// ListEntries returns every in-maintenance entry.
func (s *LocalStore) ListEntries(ctx context.Context) ([]models.MaintenanceEntry, error) {
	return listAll[models.MaintenanceEntry](s, KeyInMaintenance)
}

// GetEntry finds the in-maintenance entry for a car.
func (s *LocalStore) GetEntry(ctx context.Context, carID string) (*models.MaintenanceEntry, error) {
	return findOne(s, KeyInMaintenance, func(e *models.MaintenanceEntry) bool { return e.CarID == carID })
}

// InsertEntry adds an entry; a car can only be in maintenance once.
func (s *LocalStore) InsertEntry(ctx context.Context, entry models.MaintenanceEntry) error {
	return s.update(func(tx *bbolt.Tx) error {
		entries, err := loadList[models.MaintenanceEntry](s, tx, KeyInMaintenance)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.CarID == entry.CarID {
				return ErrConflict
			}
		}
		return storeList(tx, KeyInMaintenance, append(entries, entry))
	})
}

// DeleteEntry removes the car's in-maintenance entry.
func (s *LocalStore) DeleteEntry(ctx context.Context, carID string) error {
	return removeWhere(s, KeyInMaintenance, func(e *models.MaintenanceEntry) bool { return e.CarID == carID })
}

// ListLinks returns every alert <-> plan link.
func (s *LocalStore) ListLinks(ctx context.Context) ([]models.PlanAlertLink, error) {
	return listAll[models.PlanAlertLink](s, KeyLinks)
}

// GetLink finds the link for an alert.
func (s *LocalStore) GetLink(ctx context.Context, alertID string) (*models.PlanAlertLink, error) {
	return findOne(s, KeyLinks, func(l *models.PlanAlertLink) bool { return l.AlertID == alertID })
}

// SaveLink upserts the link for an alert.
func (s *LocalStore) SaveLink(ctx context.Context, link models.PlanAlertLink) error {
	return saveOne(s, KeyLinks, link, func(l *models.PlanAlertLink) bool { return l.AlertID == link.AlertID })
}

// DeleteLink removes the link for an alert.
func (s *LocalStore) DeleteLink(ctx context.Context, alertID string) error {
	return removeWhere(s, KeyLinks, func(l *models.PlanAlertLink) bool { return l.AlertID == alertID })
}

// GetRegulations returns the car's override, or ErrNotFound when it has none.
func (s *LocalStore) GetRegulations(ctx context.Context, carID string) ([]models.Regulation, error) {
	var regs []models.Regulation
	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketLocal)
		}
		if b.Get([]byte(RegulationKey(carID))) == nil {
			return ErrNotFound
		}
		var err error
		regs, err = loadList[models.Regulation](s, tx, RegulationKey(carID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// SaveRegulations replaces the car's override.
func (s *LocalStore) SaveRegulations(ctx context.Context, carID string, regs []models.Regulation) error {
	return s.update(func(tx *bbolt.Tx) error {
		return storeList(tx, RegulationKey(carID), regs)
	})
}

// DeleteRegulations drops the car's override.
func (s *LocalStore) DeleteRegulations(ctx context.Context, carID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLocal)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketLocal)
		}
		return b.Delete([]byte(RegulationKey(carID)))
	})
}

// ListServiceRecords returns the whole service history.
func (s *LocalStore) ListServiceRecords(ctx context.Context) ([]models.ServiceRecord, error) {
	return listAll[models.ServiceRecord](s, KeyServiceRecords)
}

// SaveServiceRecord upserts a service record by id.
func (s *LocalStore) SaveServiceRecord(ctx context.Context, record models.ServiceRecord) error {
	return saveOne(s, KeyServiceRecords, record, func(r *models.ServiceRecord) bool { return r.ID == record.ID })
}

// ListShops returns every service shop.
func (s *LocalStore) ListShops(ctx context.Context) ([]models.ServiceShop, error) {
	return listAll[models.ServiceShop](s, KeyShops)
}

// GetShop finds a shop by id.
func (s *LocalStore) GetShop(ctx context.Context, id string) (*models.ServiceShop, error) {
	return findOne(s, KeyShops, func(sh *models.ServiceShop) bool { return sh.ID == id })
}

// SaveShop upserts a shop by id.
func (s *LocalStore) SaveShop(ctx context.Context, shop models.ServiceShop) error {
	return saveOne(s, KeyShops, shop, func(sh *models.ServiceShop) bool { return sh.ID == shop.ID })
}

// DeleteShop removes a shop.
func (s *LocalStore) DeleteShop(ctx context.Context, id string) error {
	return removeWhere(s, KeyShops, func(sh *models.ServiceShop) bool { return sh.ID == id })
}

// InsertUser inserts a new user
func (s *LocalStore) InsertUser(ctx context.Context, user models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	user.IsActive = true

	rec := userRecord{User: user, PasswordHash: user.PasswordHash}
	return saveOne(s, KeyUsers, rec, func(r *userRecord) bool { return r.ID == user.ID })
}

func (s *LocalStore) findUser(match func(*userRecord) bool) (*models.User, error) {
	rec, err := findOne(s, KeyUsers, match)
	if err != nil {
		return nil, err
	}
	user := rec.User
	user.PasswordHash = rec.PasswordHash
	return &user, nil
}

// FindUserByID finds a user by their ID
func (s *LocalStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(func(r *userRecord) bool { return r.ID == id })
}

// FindUserByUsername finds a user by their username
func (s *LocalStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(r *userRecord) bool { return r.Username == username })
}

// FindUserByEmail finds a user by their email
func (s *LocalStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(r *userRecord) bool { return r.Email == email })
}

// UpdateUser replaces a stored user
func (s *LocalStore) UpdateUser(ctx context.Context, id string, user models.User) error {
	user.ID = id
	user.UpdatedAt = time.Now()
	return s.update(func(tx *bbolt.Tx) error {
		recs, err := loadList[userRecord](s, tx, KeyUsers)
		if err != nil {
			return err
		}
		for i := range recs {
			if recs[i].ID == id {
				recs[i] = userRecord{User: user, PasswordHash: user.PasswordHash}
				return storeList(tx, KeyUsers, recs)
			}
		}
		return ErrNotFound
	})
}

// UpdateLastLogin updates the last login time for a user
func (s *LocalStore) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	return s.update(func(tx *bbolt.Tx) error {
		recs, err := loadList[userRecord](s, tx, KeyUsers)
		if err != nil {
			return err
		}
		for i := range recs {
			if recs[i].ID == id {
				recs[i].LastLogin = &now
				recs[i].UpdatedAt = now
				return storeList(tx, KeyUsers, recs)
			}
		}
		return ErrNotFound
	})
}
