package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
	"github.com/alvinkoh256/FoodBridge/repository"
)

// ReservationService mediates the reservation lifecycle for hubs:
// reserve -> snapshot -> collect, or reserve -> unreserve. The backing store
// has no multi-statement transactions, so the reserve path is a manual saga:
// the hub's reserved flag is flipped with an atomic conditional write and the
// follow-up record writes are compensated by hand when they fail.
type ReservationService struct {
	hubRepo          repository.HubRepository
	invRepo          repository.InventoryRepository
	resRepo          repository.ReservationRepository
	accounts         AccountAPI
	publisher        EventPublisher
	metrics          *awspkg.MetricsClient
	readyThresholdKg float64
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	hubRepo repository.HubRepository,
	invRepo repository.InventoryRepository,
	resRepo repository.ReservationRepository,
	accounts AccountAPI,
	publisher EventPublisher,
	metrics *awspkg.MetricsClient,
	readyThresholdKg float64,
) *ReservationService {
	if readyThresholdKg <= 0 {
		readyThresholdKg = DefaultReadyThresholdKg
	}
	return &ReservationService{
		hubRepo:          hubRepo,
		invRepo:          invRepo,
		resRepo:          resRepo,
		accounts:         accounts,
		publisher:        publisher,
		metrics:          metrics,
		readyThresholdKg: readyThresholdKg,
	}
}

// Reserve books a hub for a foodbank. Readiness is not a precondition: a hub
// below the collection threshold may still be reserved. On success the hub
// carries the reserved flag, a reservation record and an immutable snapshot
// of its inventory at this instant.
func (s *ReservationService) Reserve(ctx context.Context, hubID, foodbankID string) (*models.ReserveHubResult, error) {
	hub, err := s.hubRepo.Get(ctx, hubID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError(fmt.Sprintf("hub %s does not exist", hubID))
		}
		return nil, err
	}
	if hub.Reserved {
		return nil, s.conflictAlreadyReserved(ctx, hubID)
	}

	if _, err := s.accounts.GetFoodbank(ctx, foodbankID); err != nil {
		return nil, s.mapAccountError(foodbankID, err)
	}

	lines, err := s.invRepo.ListLines(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory for hub %s: %w", hubID, err)
	}
	if len(lines) == 0 {
		return nil, ValidationError(fmt.Sprintf("hub %s has no inventory to reserve", hubID))
	}

	// Step A: conditional flag flip. This is the only gate against two
	// concurrent reservations; the loser of the race stops here.
	if err := s.hubRepo.ReserveIfFree(ctx, hubID); err != nil {
		if errors.Is(err, repository.ErrAlreadyReserved) {
			s.recordCount(awspkg.MetricHubReservationConflicts)
			return nil, s.conflictAlreadyReserved(ctx, hubID)
		}
		return nil, fmt.Errorf("failed to reserve hub %s: %w", hubID, err)
	}

	reservation := &models.Reservation{
		ReservationID:    uuid.New().String(),
		HubID:            hubID,
		FoodbankID:       foodbankID,
		ReservedWeightKg: hub.TotalWeightKg,
		CreatedAt:        time.Now().UTC(),
		Completed:        false,
	}

	// Step B: reservation record.
	if err := s.resRepo.Insert(ctx, reservation); err != nil {
		return nil, s.compensateReserve(ctx, reservation, fmt.Errorf("failed to insert reservation: %w", err))
	}

	// Step C: snapshot the ledger. Lines are re-read after the flag flip so
	// the snapshot reflects the reserved state, not the preflight check.
	lines, err = s.invRepo.ListLines(ctx, hubID)
	if err != nil {
		return nil, s.compensateReserve(ctx, reservation, fmt.Errorf("failed to re-read inventory: %w", err))
	}
	for _, line := range lines {
		snap := &models.SnapshotLine{
			ReservationID: reservation.ReservationID,
			ItemID:        line.ItemID,
			ItemName:      line.ItemName,
			ItemWeightKg:  line.ItemWeightKg,
			Quantity:      line.Quantity,
		}
		if err := s.resRepo.InsertSnapshotLine(ctx, snap); err != nil {
			return nil, s.compensateReserve(ctx, reservation, fmt.Errorf("failed to snapshot inventory: %w", err))
		}
	}

	logger.Log.Info("hub reserved",
		zap.String("hub_id", hubID),
		zap.String("foodbank_id", foodbankID),
		zap.String("reservation_id", reservation.ReservationID),
		zap.Float64("reserved_weight_kg", reservation.ReservedWeightKg),
	)
	s.recordCount(awspkg.MetricHubReservationsCreated)

	weight := reservation.ReservedWeightKg
	publishBestEffort(s.publisher, s.metrics, &models.HubEvent{
		Event:         models.EventReservationCreated,
		HubID:         hubID,
		FoodbankID:    foodbankID,
		ReservationID: reservation.ReservationID,
		WeightKg:      &weight,
	})

	return &models.ReserveHubResult{
		ReservationID:    reservation.ReservationID,
		HubID:            hubID,
		ReservedWeightKg: reservation.ReservedWeightKg,
	}, nil
}

// compensateReserve undoes the record writes of a failed reserve attempt in
// reverse order: snapshot lines first, then the reservation row. The hub's
// reserved flag is left set on purpose; clearing it here would open a window
// for a second reservation to slip in mid-rollback, so it stays until an
// operator intervenes.
func (s *ReservationService) compensateReserve(ctx context.Context, reservation *models.Reservation, cause error) error {
	logger.Log.Error("reserve failed, compensating",
		zap.String("hub_id", reservation.HubID),
		zap.String("reservation_id", reservation.ReservationID),
		zap.Error(cause),
	)

	if err := s.resRepo.DeleteSnapshotLines(ctx, reservation.ReservationID); err != nil {
		logger.Log.Error("compensation failed: snapshot lines remain",
			zap.String("reservation_id", reservation.ReservationID),
			zap.Error(err),
		)
		return InconsistencyError(fmt.Sprintf(
			"reserve failed and rollback could not remove snapshot for reservation %s; hub %s left reserved",
			reservation.ReservationID, reservation.HubID))
	}
	if err := s.resRepo.Delete(ctx, reservation.HubID, reservation.ReservationID); err != nil {
		logger.Log.Error("compensation failed: reservation row remains",
			zap.String("reservation_id", reservation.ReservationID),
			zap.Error(err),
		)
		return InconsistencyError(fmt.Sprintf(
			"reserve failed and rollback could not remove reservation %s; hub %s left reserved",
			reservation.ReservationID, reservation.HubID))
	}

	logger.Log.Warn("reserve rolled back, hub flag left set pending manual release",
		zap.String("hub_id", reservation.HubID),
	)
	return fmt.Errorf("reserve hub %s: %w", reservation.HubID, cause)
}

// Unreserve cancels a foodbank's open reservation and frees the hub. The
// snapshot goes first and the reservation row last, so a crash mid-sequence
// leaves at most an orphaned reservation row, never an ownerless snapshot.
func (s *ReservationService) Unreserve(ctx context.Context, hubID, foodbankID string) error {
	if _, err := s.hubRepo.Get(ctx, hubID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFoundError(fmt.Sprintf("hub %s does not exist", hubID))
		}
		return err
	}
	if _, err := s.accounts.GetFoodbank(ctx, foodbankID); err != nil {
		return s.mapAccountError(foodbankID, err)
	}

	reservation, err := s.resRepo.FindOpenByHubAndFoodbank(ctx, hubID, foodbankID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ConflictError(fmt.Sprintf("no active reservation for hub %s by foodbank %s", hubID, foodbankID))
		}
		return err
	}

	if err := s.resRepo.DeleteSnapshotLines(ctx, reservation.ReservationID); err != nil {
		return fmt.Errorf("failed to delete snapshot for reservation %s: %w", reservation.ReservationID, err)
	}
	if err := s.hubRepo.SetReserved(ctx, hubID, false); err != nil {
		return fmt.Errorf("failed to release hub %s: %w", hubID, err)
	}
	if err := s.resRepo.Delete(ctx, hubID, reservation.ReservationID); err != nil {
		return InconsistencyError(fmt.Sprintf(
			"hub %s released but reservation row %s remains", hubID, reservation.ReservationID))
	}

	logger.Log.Info("hub unreserved",
		zap.String("hub_id", hubID),
		zap.String("foodbank_id", foodbankID),
		zap.String("reservation_id", reservation.ReservationID),
	)
	s.recordCount(awspkg.MetricHubReservationsReleased)

	publishBestEffort(s.publisher, s.metrics, &models.HubEvent{
		Event:      models.EventReservationCancelled,
		HubID:      hubID,
		FoodbankID: foodbankID,
	})

	return nil
}

// CollectionComplete reconciles the live ledger against the reservation
// snapshot: exactly the snapshotted quantities come off, so anything dropped
// off after the reservation stays available for the next one. The
// reservation row is kept, marked completed.
func (s *ReservationService) CollectionComplete(ctx context.Context, hubID, foodbankID string) (*models.CollectionResult, error) {
	if _, err := s.hubRepo.Get(ctx, hubID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError(fmt.Sprintf("hub %s does not exist", hubID))
		}
		return nil, err
	}
	if _, err := s.accounts.GetFoodbank(ctx, foodbankID); err != nil {
		return nil, s.mapAccountError(foodbankID, err)
	}

	reservation, err := s.resRepo.FindOpenByHubAndFoodbank(ctx, hubID, foodbankID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ConflictError(fmt.Sprintf("no active reservation for hub %s by foodbank %s", hubID, foodbankID))
		}
		return nil, err
	}

	snapshot, err := s.resRepo.ListSnapshotLines(ctx, reservation.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for reservation %s: %w", reservation.ReservationID, err)
	}
	if len(snapshot) == 0 {
		return nil, InconsistencyError(fmt.Sprintf(
			"reservation %s has no inventory snapshot", reservation.ReservationID))
	}

	for _, snap := range snapshot {
		removed, err := s.invRepo.SubtractQuantity(ctx, hubID, snap.ItemID, snap.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to subtract item %s from hub %s: %w", snap.ItemID, hubID, err)
		}
		if removed < snap.Quantity {
			logger.Log.Warn("live quantity below snapshot, clamped",
				zap.String("hub_id", hubID),
				zap.String("item_id", snap.ItemID),
				zap.Int("snapshot_quantity", snap.Quantity),
				zap.Int("removed", removed),
			)
		}
	}

	if err := s.resRepo.DeleteSnapshotLines(ctx, reservation.ReservationID); err != nil {
		return nil, fmt.Errorf("failed to delete snapshot for reservation %s: %w", reservation.ReservationID, err)
	}
	if err := s.resRepo.MarkCompleted(ctx, hubID, reservation.ReservationID); err != nil {
		return nil, InconsistencyError(fmt.Sprintf(
			"inventory collected but reservation %s could not be marked completed", reservation.ReservationID))
	}

	lines, err := s.invRepo.ListLines(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory for hub %s: %w", hubID, err)
	}
	remaining, ready := weightAndReadiness(lines, s.readyThresholdKg)

	if err := s.hubRepo.ApplyWeightUpdate(ctx, hubID, remaining, ready); err != nil {
		return nil, fmt.Errorf("failed to persist weight for hub %s: %w", hubID, err)
	}
	if err := s.hubRepo.SetReserved(ctx, hubID, false); err != nil {
		return nil, fmt.Errorf("failed to release hub %s: %w", hubID, err)
	}

	logger.Log.Info("collection completed",
		zap.String("hub_id", hubID),
		zap.String("foodbank_id", foodbankID),
		zap.String("reservation_id", reservation.ReservationID),
		zap.Float64("collected_weight_kg", reservation.ReservedWeightKg),
		zap.Float64("remaining_weight_kg", remaining),
	)
	s.recordCount(awspkg.MetricHubCollectionsCompleted)

	collected := reservation.ReservedWeightKg
	remainingCopy := remaining
	publishBestEffort(s.publisher, s.metrics, &models.HubEvent{
		Event:             models.EventCollectionCompleted,
		HubID:             hubID,
		FoodbankID:        foodbankID,
		ReservationID:     reservation.ReservationID,
		CollectedWeightKg: &collected,
		RemainingWeightKg: &remainingCopy,
	})

	return &models.CollectionResult{
		HubID:             hubID,
		CollectedWeightKg: reservation.ReservedWeightKg,
		RemainingWeightKg: remaining,
	}, nil
}

// ReservedHubs lists a foodbank's open reservations with their hub details,
// newest first.
func (s *ReservationService) ReservedHubs(ctx context.Context, foodbankID string) ([]models.ReservedHubData, error) {
	if _, err := s.accounts.GetFoodbank(ctx, foodbankID); err != nil {
		return nil, s.mapAccountError(foodbankID, err)
	}

	reservations, err := s.resRepo.ListOpenByFoodbank(ctx, foodbankID)
	if err != nil {
		return nil, err
	}

	out := make([]models.ReservedHubData, 0, len(reservations))
	for _, res := range reservations {
		hub, err := s.hubRepo.Get(ctx, res.HubID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logger.Log.Warn("open reservation references missing hub",
					zap.String("reservation_id", res.ReservationID),
					zap.String("hub_id", res.HubID),
				)
				continue
			}
			return nil, err
		}
		out = append(out, models.ReservedHubData{
			HubID:            hub.HubID,
			HubName:          hub.HubName,
			HubAddress:       hub.HubAddress,
			TotalWeightKg:    hub.TotalWeightKg,
			ReservationID:    res.ReservationID,
			ReservationDate:  res.CreatedAt.Format(time.RFC3339),
			ReservedWeightKg: res.ReservedWeightKg,
		})
	}
	return out, nil
}

// conflictAlreadyReserved builds the Conflict error for a reserved hub and
// attaches the blocking reservation's id when it can be found.
func (s *ReservationService) conflictAlreadyReserved(ctx context.Context, hubID string) *ServiceError {
	svcErr := ConflictError(fmt.Sprintf("hub %s is already reserved", hubID))
	if open, err := s.resRepo.FindOpenByHub(ctx, hubID); err == nil {
		svcErr.BlockingReservationID = open.ReservationID
	}
	return svcErr
}

func (s *ReservationService) mapAccountError(foodbankID string, err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return NotFoundError(fmt.Sprintf("foodbank %s does not exist", foodbankID))
	case errors.Is(err, ErrNotFoodbank):
		return NotFoundError(fmt.Sprintf("account %s is not a foodbank", foodbankID))
	default:
		return UpstreamError(fmt.Sprintf("account service lookup for %s failed: %v", foodbankID, err))
	}
}

func (s *ReservationService) recordCount(metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, map[string]string{"Service": "hub-service"})
	}()
}
