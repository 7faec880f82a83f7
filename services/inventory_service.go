package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
	"github.com/alvinkoh256/FoodBridge/repository"
)

// DefaultReadyThresholdKg is the collection-readiness threshold applied when
// config supplies nothing else.
const DefaultReadyThresholdKg = 50.0

// InventoryService owns the drop-off path: it maintains hub inventory lines
// and keeps each hub's total weight and readiness flag consistent with them.
type InventoryService struct {
	hubRepo          repository.HubRepository
	invRepo          repository.InventoryRepository
	catalog          *CatalogService
	metrics          *awspkg.MetricsClient
	readyThresholdKg float64
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(hubRepo repository.HubRepository, invRepo repository.InventoryRepository, catalog *CatalogService, metrics *awspkg.MetricsClient, readyThresholdKg float64) *InventoryService {
	if readyThresholdKg <= 0 {
		readyThresholdKg = DefaultReadyThresholdKg
	}
	return &InventoryService{
		hubRepo:          hubRepo,
		invRepo:          invRepo,
		catalog:          catalog,
		metrics:          metrics,
		readyThresholdKg: readyThresholdKg,
	}
}

// weightAndReadiness derives a hub's totals from its inventory lines.
func weightAndReadiness(lines []models.InventoryLine, thresholdKg float64) (float64, bool) {
	var total float64
	for _, line := range lines {
		total += float64(line.Quantity) * line.ItemWeightKg
	}
	return total, total >= thresholdKg
}

// Recompute re-reads a hub's ledger and returns its total weight and
// readiness. Pure with respect to the hub record; persisting is the
// caller's step.
func (s *InventoryService) Recompute(ctx context.Context, hubID string) (float64, bool, error) {
	lines, err := s.invRepo.ListLines(ctx, hubID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to list inventory for hub %s: %w", hubID, err)
	}
	total, ready := weightAndReadiness(lines, s.readyThresholdKg)
	return total, ready, nil
}

// RecordDropOff applies a volunteer drop-off: the hub is created on first
// sight, existing items are resolved by name (unknown names are skipped, a
// documented leniency), new items are added to the catalog with their
// supplied weight, and the hub's weight and readiness are recomputed.
func (s *InventoryService) RecordDropOff(ctx context.Context, req *models.UpdateInventoryRequest) (*models.HubData, error) {
	hub, err := s.hubRepo.Ensure(ctx, req.HubID, req.HubName, req.HubAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure hub %s: %w", req.HubID, err)
	}

	for _, dropped := range req.Items {
		item, err := s.catalog.Resolve(ctx, dropped.ItemName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logger.Log.Warn("skipping unknown catalog item in drop-off",
					zap.String("hub_id", hub.HubID),
					zap.String("item_name", dropped.ItemName),
				)
				continue
			}
			return nil, err
		}
		if err := s.invRepo.AddQuantity(ctx, hub.HubID, item, dropped.Quantity); err != nil {
			return nil, err
		}
	}

	for _, dropped := range req.NewItems {
		weight := dropped.ItemWeightKg
		item, err := s.catalog.ResolveOrCreate(ctx, dropped.ItemName, &weight)
		if err != nil {
			return nil, err
		}
		if err := s.invRepo.AddQuantity(ctx, hub.HubID, item, dropped.Quantity); err != nil {
			return nil, err
		}
	}

	total, ready, err := s.Recompute(ctx, hub.HubID)
	if err != nil {
		return nil, err
	}
	if err := s.hubRepo.ApplyWeightUpdate(ctx, hub.HubID, total, ready); err != nil {
		return nil, fmt.Errorf("failed to persist weight for hub %s: %w", hub.HubID, err)
	}

	logger.Log.Info("drop-off recorded",
		zap.String("hub_id", hub.HubID),
		zap.Int("existing_items", len(req.Items)),
		zap.Int("new_items", len(req.NewItems)),
		zap.Float64("total_weight_kg", total),
		zap.Bool("ready_to_collect", ready),
	)
	s.recordCount(awspkg.MetricHubDropOffs)

	hub.TotalWeightKg = total
	hub.ReadyToCollect = ready
	return s.hubData(ctx, hub)
}

// GetHubData returns a hub with its full inventory.
func (s *InventoryService) GetHubData(ctx context.Context, hubID string) (*models.HubData, error) {
	hub, err := s.hubRepo.Get(ctx, hubID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError(fmt.Sprintf("hub %s does not exist", hubID))
		}
		return nil, err
	}
	return s.hubData(ctx, hub)
}

// ListHubsData returns every hub with its inventory.
func (s *InventoryService) ListHubsData(ctx context.Context) ([]models.HubData, error) {
	hubs, err := s.hubRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.hubsData(ctx, hubs)
}

// ListReadyHubs returns unreserved hubs at or above the readiness threshold.
func (s *InventoryService) ListReadyHubs(ctx context.Context) ([]models.HubData, error) {
	hubs, err := s.hubRepo.ListReady(ctx)
	if err != nil {
		return nil, err
	}
	return s.hubsData(ctx, hubs)
}

// ListAvailableHubs returns every unreserved hub.
func (s *InventoryService) ListAvailableHubs(ctx context.Context) ([]models.HubData, error) {
	hubs, err := s.hubRepo.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	return s.hubsData(ctx, hubs)
}

func (s *InventoryService) hubsData(ctx context.Context, hubs []models.Hub) ([]models.HubData, error) {
	out := make([]models.HubData, 0, len(hubs))
	for i := range hubs {
		data, err := s.hubData(ctx, &hubs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *data)
	}
	return out, nil
}

func (s *InventoryService) hubData(ctx context.Context, hub *models.Hub) (*models.HubData, error) {
	lines, err := s.invRepo.ListLines(ctx, hub.HubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory for hub %s: %w", hub.HubID, err)
	}

	items := make([]models.InventoryItemData, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.InventoryItemData{
			ItemName:     line.ItemName,
			ItemWeightKg: line.ItemWeightKg,
			Quantity:     line.Quantity,
		})
	}

	return &models.HubData{
		HubID:          hub.HubID,
		HubName:        hub.HubName,
		HubAddress:     hub.HubAddress,
		Reserved:       hub.Reserved,
		ReadyToCollect: hub.ReadyToCollect,
		TotalWeightKg:  hub.TotalWeightKg,
		Items:          items,
	}, nil
}

func (s *InventoryService) recordCount(metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "hub-service"})
	}()
}
