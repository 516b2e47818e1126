package fleet

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// ShopService manages the service shop directory. Plans refer to shops by name.
type ShopService struct {
	store  db.Store
	logger log.FieldLogger
	now    func() time.Time
}

// NewShopService creates a ShopService.
func NewShopService(store db.Store, logger log.FieldLogger) *ShopService {
	return &ShopService{store: store, logger: logger, now: utcNow}
}

// Create validates and stores a new shop.
func (s *ShopService) Create(ctx context.Context, shop models.ServiceShop) (*models.ServiceShop, error) {
	shop.Name = strings.TrimSpace(shop.Name)
	if err := models.Validate(shop); err != nil {
		return nil, err
	}
	shop.ID = uuid.NewString()
	shop.CreatedAt = s.now()
	if err := s.store.SaveShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("failed to save shop: %w", err)
	}
	s.logger.WithFields(log.Fields{"shop_id": shop.ID, "name": shop.Name}).Info("Service shop created")
	return &shop, nil
}

// List returns shops by rating, best first, then by name.
func (s *ShopService) List(ctx context.Context) ([]models.ServiceShop, error) {
	shops, err := s.store.ListShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	sort.SliceStable(shops, func(i, j int) bool {
		if shops[i].Rating != shops[j].Rating {
			return shops[i].Rating > shops[j].Rating
		}
		return strings.ToLower(shops[i].Name) < strings.ToLower(shops[j].Name)
	})
	return shops, nil
}

// Update replaces a shop's details.
func (s *ShopService) Update(ctx context.Context, id string, shop models.ServiceShop) (*models.ServiceShop, error) {
	shop.Name = strings.TrimSpace(shop.Name)
	if err := models.Validate(shop); err != nil {
		return nil, err
	}
	existing, err := s.store.GetShop(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "shop", id)
	}
	shop.ID = id
	shop.CreatedAt = existing.CreatedAt
	if err := s.store.SaveShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("failed to save shop: %w", err)
	}
	return &shop, nil
}

// Delete removes a shop. Plans keep the name they were saved with.
func (s *ShopService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteShop(ctx, id); err != nil {
		return wrapNotFound(err, "shop", id)
	}
	return nil
}
