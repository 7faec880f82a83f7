package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/controllers"
	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
	"github.com/alvinkoh256/FoodBridge/repository"
	"github.com/alvinkoh256/FoodBridge/routes"
	"github.com/alvinkoh256/FoodBridge/services"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ---- in-memory store implementing the repository interfaces ----

type memStore struct {
	hubs         map[string]models.Hub
	catalog      map[string]models.CatalogItem // keyed by lower-cased name
	lines        map[string]map[string]models.InventoryLine
	reservations map[string]models.Reservation
	snapshots    map[string][]models.SnapshotLine
}

func newMemStore() *memStore {
	return &memStore{
		hubs:         make(map[string]models.Hub),
		catalog:      make(map[string]models.CatalogItem),
		lines:        make(map[string]map[string]models.InventoryLine),
		reservations: make(map[string]models.Reservation),
		snapshots:    make(map[string][]models.SnapshotLine),
	}
}

func (s *memStore) Get(ctx context.Context, hubID string) (*models.Hub, error) {
	hub, ok := s.hubs[hubID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &hub, nil
}

func (s *memStore) Ensure(ctx context.Context, hubID, name, address string) (*models.Hub, error) {
	if hub, ok := s.hubs[hubID]; ok {
		return &hub, nil
	}
	hub := models.Hub{HubID: hubID, HubName: name, HubAddress: address}
	s.hubs[hubID] = hub
	return &hub, nil
}

func (s *memStore) ApplyWeightUpdate(ctx context.Context, hubID string, totalWeightKg float64, readyToCollect bool) error {
	hub := s.hubs[hubID]
	hub.TotalWeightKg = totalWeightKg
	hub.ReadyToCollect = readyToCollect
	s.hubs[hubID] = hub
	return nil
}

func (s *memStore) SetReserved(ctx context.Context, hubID string, reserved bool) error {
	hub := s.hubs[hubID]
	hub.Reserved = reserved
	s.hubs[hubID] = hub
	return nil
}

func (s *memStore) ReserveIfFree(ctx context.Context, hubID string) error {
	hub, ok := s.hubs[hubID]
	if !ok || hub.Reserved {
		return repository.ErrAlreadyReserved
	}
	hub.Reserved = true
	s.hubs[hubID] = hub
	return nil
}

func (s *memStore) ListAll(ctx context.Context) ([]models.Hub, error) {
	out := make([]models.Hub, 0, len(s.hubs))
	for _, hub := range s.hubs {
		out = append(out, hub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HubID < out[j].HubID })
	return out, nil
}

func (s *memStore) ListReady(ctx context.Context) ([]models.Hub, error) {
	all, _ := s.ListAll(ctx)
	out := make([]models.Hub, 0)
	for _, hub := range all {
		if hub.ReadyToCollect && !hub.Reserved {
			out = append(out, hub)
		}
	}
	return out, nil
}

func (s *memStore) ListAvailable(ctx context.Context) ([]models.Hub, error) {
	all, _ := s.ListAll(ctx)
	out := make([]models.Hub, 0)
	for _, hub := range all {
		if !hub.Reserved {
			out = append(out, hub)
		}
	}
	return out, nil
}

func (s *memStore) GetByName(ctx context.Context, name string) (*models.CatalogItem, error) {
	item, ok := s.catalog[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (s *memStore) Create(ctx context.Context, item *models.CatalogItem) error {
	key := strings.ToLower(item.ItemName)
	if _, ok := s.catalog[key]; ok {
		return repository.ErrItemExists
	}
	s.catalog[key] = *item
	return nil
}

func (s *memStore) List(ctx context.Context) ([]models.CatalogItem, error) {
	out := make([]models.CatalogItem, 0, len(s.catalog))
	for _, item := range s.catalog {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (s *memStore) AddQuantity(ctx context.Context, hubID string, item *models.CatalogItem, quantity int) error {
	if s.lines[hubID] == nil {
		s.lines[hubID] = make(map[string]models.InventoryLine)
	}
	line, ok := s.lines[hubID][item.ItemID]
	if !ok {
		line = models.InventoryLine{
			HubID: hubID, ItemID: item.ItemID,
			ItemName: item.ItemName, ItemWeightKg: item.StandardWeightKg,
		}
	}
	line.Quantity += quantity
	s.lines[hubID][item.ItemID] = line
	return nil
}

func (s *memStore) SubtractQuantity(ctx context.Context, hubID, itemID string, quantity int) (int, error) {
	line, ok := s.lines[hubID][itemID]
	if !ok {
		return 0, nil
	}
	if line.Quantity <= quantity {
		delete(s.lines[hubID], itemID)
		return line.Quantity, nil
	}
	line.Quantity -= quantity
	s.lines[hubID][itemID] = line
	return quantity, nil
}

func (s *memStore) ListLines(ctx context.Context, hubID string) ([]models.InventoryLine, error) {
	out := make([]models.InventoryLine, 0, len(s.lines[hubID]))
	for _, line := range s.lines[hubID] {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (s *memStore) ClearAll(ctx context.Context, hubID string) error {
	delete(s.lines, hubID)
	return nil
}

func (s *memStore) Insert(ctx context.Context, res *models.Reservation) error {
	s.reservations[res.ReservationID] = *res
	return nil
}

func (s *memStore) Delete(ctx context.Context, hubID, reservationID string) error {
	delete(s.reservations, reservationID)
	return nil
}

func (s *memStore) MarkCompleted(ctx context.Context, hubID, reservationID string) error {
	res, ok := s.reservations[reservationID]
	if !ok {
		return repository.ErrNotFound
	}
	res.Completed = true
	s.reservations[reservationID] = res
	return nil
}

func (s *memStore) FindOpenByHub(ctx context.Context, hubID string) (*models.Reservation, error) {
	for _, res := range s.reservations {
		if res.HubID == hubID && !res.Completed {
			found := res
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) FindOpenByHubAndFoodbank(ctx context.Context, hubID, foodbankID string) (*models.Reservation, error) {
	for _, res := range s.reservations {
		if res.HubID == hubID && res.FoodbankID == foodbankID && !res.Completed {
			found := res
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) ListOpenByHub(ctx context.Context, hubID string) ([]models.Reservation, error) {
	out := make([]models.Reservation, 0)
	for _, res := range s.reservations {
		if res.HubID == hubID && !res.Completed {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *memStore) ListOpenByFoodbank(ctx context.Context, foodbankID string) ([]models.Reservation, error) {
	out := make([]models.Reservation, 0)
	for _, res := range s.reservations {
		if res.FoodbankID == foodbankID && !res.Completed {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *memStore) InsertSnapshotLine(ctx context.Context, line *models.SnapshotLine) error {
	s.snapshots[line.ReservationID] = append(s.snapshots[line.ReservationID], *line)
	return nil
}

func (s *memStore) ListSnapshotLines(ctx context.Context, reservationID string) ([]models.SnapshotLine, error) {
	return append([]models.SnapshotLine(nil), s.snapshots[reservationID]...), nil
}

func (s *memStore) DeleteSnapshotLines(ctx context.Context, reservationID string) error {
	delete(s.snapshots, reservationID)
	return nil
}

// ---- stub collaborators ----

type stubAccounts struct{}

func (stubAccounts) GetFoodbank(ctx context.Context, foodbankID string) (*models.FoodbankAccount, error) {
	if foodbankID == "fb-1" {
		return &models.FoodbankAccount{UserID: "fb-1", UserName: "Willing Hearts", UserRole: "F"}, nil
	}
	return nil, services.ErrAccountNotFound
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, event *models.HubEvent) error { return nil }

// ---- helpers ----

func setupRouter(store *memStore) *gin.Engine {
	catalog := services.NewCatalogService(store, nil)
	inventory := services.NewInventoryService(store, store, catalog, nil, 50)
	reservation := services.NewReservationService(store, store, store, stubAccounts{}, noopPublisher{}, nil, 50)

	r := gin.New()
	routes.RegisterRoutes(r,
		controllers.NewHubController(inventory, catalog),
		controllers.NewReservationController(reservation),
	)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Role", "V")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dropOff(t *testing.T, r *gin.Engine) {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/hub/updateInventory", models.UpdateInventoryRequest{
		HubID:      "hub-1",
		HubName:    "Bishan CC",
		HubAddress: "51 Bishan St",
		NewItems: []models.DropOffNewItem{
			{ItemName: "rice", ItemWeightKg: 0.5, Quantity: 20},
			{ItemName: "milo", ItemWeightKg: 1.2, Quantity: 10},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- tests ----

func TestHealth(t *testing.T) {
	r := setupRouter(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateInventoryEndpoint(t *testing.T) {
	t.Run("Creates Hub And Computes Weight", func(t *testing.T) {
		r := setupRouter(newMemStore())
		dropOff(t, r)

		w := doJSON(r, http.MethodGet, "/hub/hub-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var hub models.HubData
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &hub))
		assert.Equal(t, 22.0, hub.TotalWeightKg)
		assert.False(t, hub.ReadyToCollect)
		assert.Len(t, hub.Items, 2)
	})

	t.Run("Rejects Empty Drop-Off", func(t *testing.T) {
		r := setupRouter(newMemStore())

		w := doJSON(r, http.MethodPost, "/hub/updateInventory", models.UpdateInventoryRequest{HubID: "hub-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Requires Gateway Identity", func(t *testing.T) {
		r := setupRouter(newMemStore())

		b, _ := json.Marshal(models.UpdateInventoryRequest{HubID: "hub-1"})
		req := httptest.NewRequest(http.MethodPost, "/hub/updateInventory", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetHubNotFound(t *testing.T) {
	r := setupRouter(newMemStore())

	w := doJSON(r, http.MethodGet, "/hub/hub-x", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp services.ServiceError
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, services.CodeNotFound, resp.Code)
}

func TestReserveEndpoint(t *testing.T) {
	t.Run("Reserve Then Conflict", func(t *testing.T) {
		r := setupRouter(newMemStore())
		dropOff(t, r)

		w := doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-1"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-1"})
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp services.ServiceError
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, services.CodeConflict, resp.Code)
		assert.NotEmpty(t, resp.BlockingReservationID)
	})

	t.Run("Unknown Foodbank", func(t *testing.T) {
		r := setupRouter(newMemStore())
		dropOff(t, r)

		w := doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Unknown Hub", func(t *testing.T) {
		r := setupRouter(newMemStore())

		w := doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-x", FoodbankID: "fb-1"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUnreserveEndpoint(t *testing.T) {
	r := setupRouter(newMemStore())
	dropOff(t, r)

	w := doJSON(r, http.MethodPost, "/hub/unreserveHub", models.HubFoodbankRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/hub/unreserveHub", models.HubFoodbankRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Hub is reservable again after release.
	w = doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCollectionCompleteEndpoint(t *testing.T) {
	r := setupRouter(newMemStore())
	dropOff(t, r)

	w := doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	// More rice arrives between reserve and pickup.
	w = doJSON(r, http.MethodPost, "/hub/updateInventory", models.UpdateInventoryRequest{
		HubID: "hub-1",
		Items: []models.DropOffItem{{ItemName: "rice", Quantity: 6}},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/hub/collectionComplete", models.HubFoodbankRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Collection models.CollectionResult `json:"collection"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 22.0, resp.Collection.CollectedWeightKg)
	// The 6 later rice packets (3 kg) survive the collection.
	assert.Equal(t, 3.0, resp.Collection.RemainingWeightKg)

	w = doJSON(r, http.MethodGet, "/hub/hub-1", nil)
	var hub models.HubData
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &hub))
	assert.False(t, hub.Reserved)
	assert.Equal(t, 3.0, hub.TotalWeightKg)
}

func TestReservedHubsEndpoint(t *testing.T) {
	r := setupRouter(newMemStore())
	dropOff(t, r)

	w := doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-1", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/foodbank/fb-1/reservedHubs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var hubs []models.ReservedHubData
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &hubs))
	assert.Len(t, hubs, 1)
	assert.Equal(t, "hub-1", hubs[0].HubID)
	assert.Equal(t, 22.0, hubs[0].ReservedWeightKg)
}

func TestExistingItemsEndpoint(t *testing.T) {
	r := setupRouter(newMemStore())
	dropOff(t, r)

	w := doJSON(r, http.MethodGet, "/hub/existingItems", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var items []models.CatalogItemData
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 2)
}

func TestHubListingEndpoints(t *testing.T) {
	store := newMemStore()
	r := setupRouter(store)
	dropOff(t, r) // hub-1 at 22 kg, below the 50 kg threshold

	w := doJSON(r, http.MethodPost, "/hub/updateInventory", models.UpdateInventoryRequest{
		HubID:    "hub-2",
		HubName:  "Tampines Hub",
		NewItems: []models.DropOffNewItem{{ItemName: "oil", ItemWeightKg: 2, Quantity: 30}},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/hub/hubsData", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var all []models.HubData
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	// Only hub-2 (60 kg) is over the threshold.
	w = doJSON(r, http.MethodGet, "/hub/readyHubsData", nil)
	var ready []models.HubData
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Len(t, ready, 1)
	assert.Equal(t, "hub-2", ready[0].HubID)

	// Reserving hub-2 removes it from both listings.
	w = doJSON(r, http.MethodPost, "/hub/reserveHub", models.ReserveHubRequest{HubID: "hub-2", FoodbankID: "fb-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/hub/readyHubsData", nil)
	ready = nil
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Len(t, ready, 0)

	w = doJSON(r, http.MethodGet, "/hub/availableHubsData", nil)
	var available []models.HubData
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &available))
	assert.Len(t, available, 1)
	assert.Equal(t, "hub-1", available[0].HubID)
}
