package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
	"github.com/alvinkoh256/FoodBridge/repository"
)

// CatalogService resolves item names to canonical catalog entries, creating
// entries lazily. There is no update or delete path: an item's standard
// weight is fixed the first time it is seen.
type CatalogService struct {
	repo    repository.CatalogRepository
	metrics *awspkg.MetricsClient
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(repo repository.CatalogRepository, metrics *awspkg.MetricsClient) *CatalogService {
	return &CatalogService{repo: repo, metrics: metrics}
}

// Resolve looks up an item by name, case-insensitively. Unknown names return
// repository.ErrNotFound.
func (s *CatalogService) Resolve(ctx context.Context, name string) (*models.CatalogItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError("item name is required")
	}
	return s.repo.GetByName(ctx, name)
}

// ResolveOrCreate looks the name up and, when absent, creates a catalog
// entry with the supplied weight. A nil weight for an unknown name is a
// validation failure. Two concurrent creates of the same name settle on the
// first writer's row.
func (s *CatalogService) ResolveOrCreate(ctx context.Context, name string, fallbackWeightKg *float64) (*models.CatalogItem, error) {
	item, err := s.Resolve(ctx, name)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if fallbackWeightKg == nil {
		return nil, ValidationError(fmt.Sprintf("item %q is not in the catalog and no weight was supplied", name))
	}
	if *fallbackWeightKg <= 0 {
		return nil, ValidationError(fmt.Sprintf("item %q needs a positive weight, got %v", name, *fallbackWeightKg))
	}

	newItem := &models.CatalogItem{
		ItemID:           uuid.New().String(),
		ItemName:         strings.TrimSpace(name),
		StandardWeightKg: *fallbackWeightKg,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, newItem); err != nil {
		if errors.Is(err, repository.ErrItemExists) {
			return s.repo.GetByName(ctx, name)
		}
		return nil, fmt.Errorf("failed to create catalog item: %w", err)
	}

	logger.Log.Info("catalog item created",
		zap.String("item_id", newItem.ItemID),
		zap.String("item_name", newItem.ItemName),
		zap.Float64("standard_weight_kg", newItem.StandardWeightKg),
	)
	s.recordCount(awspkg.MetricCatalogItemsCreated)

	return newItem, nil
}

// ListItems returns every catalog entry ordered by name, for UI dropdowns.
func (s *CatalogService) ListItems(ctx context.Context) ([]models.CatalogItemData, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}

	out := make([]models.CatalogItemData, 0, len(items))
	for _, item := range items {
		out = append(out, models.CatalogItemData{
			ItemID:   item.ItemID,
			ItemName: item.ItemName,
		})
	}
	return out, nil
}

func (s *CatalogService) recordCount(metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "hub-service"})
	}()
}
