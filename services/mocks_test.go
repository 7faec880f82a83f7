package services

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// --- Mocks for Dependencies ---

type MockHubRepository struct{ mock.Mock }

func (m *MockHubRepository) Get(ctx context.Context, hubID string) (*models.Hub, error) {
	args := m.Called(ctx, hubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hub), args.Error(1)
}
func (m *MockHubRepository) Ensure(ctx context.Context, hubID, name, address string) (*models.Hub, error) {
	args := m.Called(ctx, hubID, name, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hub), args.Error(1)
}
func (m *MockHubRepository) ApplyWeightUpdate(ctx context.Context, hubID string, totalWeightKg float64, readyToCollect bool) error {
	args := m.Called(ctx, hubID, totalWeightKg, readyToCollect)
	return args.Error(0)
}
func (m *MockHubRepository) SetReserved(ctx context.Context, hubID string, reserved bool) error {
	args := m.Called(ctx, hubID, reserved)
	return args.Error(0)
}
func (m *MockHubRepository) ReserveIfFree(ctx context.Context, hubID string) error {
	args := m.Called(ctx, hubID)
	return args.Error(0)
}
func (m *MockHubRepository) ListAll(ctx context.Context) ([]models.Hub, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Hub), args.Error(1)
}
func (m *MockHubRepository) ListReady(ctx context.Context) ([]models.Hub, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Hub), args.Error(1)
}
func (m *MockHubRepository) ListAvailable(ctx context.Context) ([]models.Hub, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Hub), args.Error(1)
}

type MockInventoryRepository struct{ mock.Mock }

func (m *MockInventoryRepository) AddQuantity(ctx context.Context, hubID string, item *models.CatalogItem, quantity int) error {
	args := m.Called(ctx, hubID, item, quantity)
	return args.Error(0)
}
func (m *MockInventoryRepository) SubtractQuantity(ctx context.Context, hubID, itemID string, quantity int) (int, error) {
	args := m.Called(ctx, hubID, itemID, quantity)
	return args.Int(0), args.Error(1)
}
func (m *MockInventoryRepository) ListLines(ctx context.Context, hubID string) ([]models.InventoryLine, error) {
	args := m.Called(ctx, hubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventoryLine), args.Error(1)
}
func (m *MockInventoryRepository) ClearAll(ctx context.Context, hubID string) error {
	args := m.Called(ctx, hubID)
	return args.Error(0)
}

type MockCatalogRepository struct{ mock.Mock }

func (m *MockCatalogRepository) GetByName(ctx context.Context, name string) (*models.CatalogItem, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogItem), args.Error(1)
}
func (m *MockCatalogRepository) Create(ctx context.Context, item *models.CatalogItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}
func (m *MockCatalogRepository) List(ctx context.Context) ([]models.CatalogItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogItem), args.Error(1)
}

type MockReservationRepository struct{ mock.Mock }

func (m *MockReservationRepository) Insert(ctx context.Context, res *models.Reservation) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}
func (m *MockReservationRepository) Delete(ctx context.Context, hubID, reservationID string) error {
	args := m.Called(ctx, hubID, reservationID)
	return args.Error(0)
}
func (m *MockReservationRepository) MarkCompleted(ctx context.Context, hubID, reservationID string) error {
	args := m.Called(ctx, hubID, reservationID)
	return args.Error(0)
}
func (m *MockReservationRepository) FindOpenByHub(ctx context.Context, hubID string) (*models.Reservation, error) {
	args := m.Called(ctx, hubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *MockReservationRepository) FindOpenByHubAndFoodbank(ctx context.Context, hubID, foodbankID string) (*models.Reservation, error) {
	args := m.Called(ctx, hubID, foodbankID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *MockReservationRepository) ListOpenByHub(ctx context.Context, hubID string) ([]models.Reservation, error) {
	args := m.Called(ctx, hubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}
func (m *MockReservationRepository) ListOpenByFoodbank(ctx context.Context, foodbankID string) ([]models.Reservation, error) {
	args := m.Called(ctx, foodbankID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}
func (m *MockReservationRepository) InsertSnapshotLine(ctx context.Context, line *models.SnapshotLine) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}
func (m *MockReservationRepository) ListSnapshotLines(ctx context.Context, reservationID string) ([]models.SnapshotLine, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SnapshotLine), args.Error(1)
}
func (m *MockReservationRepository) DeleteSnapshotLines(ctx context.Context, reservationID string) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

type MockAccountAPI struct{ mock.Mock }

func (m *MockAccountAPI) GetFoodbank(ctx context.Context, foodbankID string) (*models.FoodbankAccount, error) {
	args := m.Called(ctx, foodbankID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FoodbankAccount), args.Error(1)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(ctx context.Context, event *models.HubEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
