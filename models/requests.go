package models

// DropOffItem is an existing catalog item being dropped off.
type DropOffItem struct {
	ItemName string `json:"itemName" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// DropOffNewItem is a previously unseen item; the volunteer supplies its weight.
type DropOffNewItem struct {
	ItemName     string  `json:"itemName" binding:"required"`
	ItemWeightKg float64 `json:"itemWeight_kg" binding:"required,gt=0"`
	Quantity     int     `json:"quantity" binding:"required,min=1"`
	Description  string  `json:"description"`
}

// UpdateInventoryRequest is the drop-off payload. An unknown hubID creates
// the hub on first sight.
type UpdateInventoryRequest struct {
	HubID      string           `json:"hubID" binding:"required"`
	HubName    string           `json:"hubName"`
	HubAddress string           `json:"hubAddress"`
	Items      []DropOffItem    `json:"items" binding:"omitempty,dive"`
	NewItems   []DropOffNewItem `json:"newitems" binding:"omitempty,dive"`
}

// ReserveHubRequest asks to reserve a hub for a foodbank.
type ReserveHubRequest struct {
	HubID      string `json:"hubID" binding:"required"`
	FoodbankID string `json:"foodbankID" binding:"required"`
}

// HubFoodbankRequest identifies the (hub, foodbank) pair for unreserve and
// collection-complete.
type HubFoodbankRequest struct {
	HubID      string `json:"hubID" binding:"required"`
	FoodbankID string `json:"foodbankID" binding:"required"`
}

// HubData is a hub plus its full inventory, as returned to the frontend.
type HubData struct {
	HubID          string              `json:"hubID"`
	HubName        string              `json:"hubName"`
	HubAddress     string              `json:"hubAddress"`
	Reserved       bool                `json:"reserved"`
	ReadyToCollect bool                `json:"readyToCollect"`
	TotalWeightKg  float64             `json:"totalWeight_kg"`
	Items          []InventoryItemData `json:"items"`
}

// InventoryItemData is one inventory row in API responses.
type InventoryItemData struct {
	ItemName     string  `json:"itemName"`
	ItemWeightKg float64 `json:"itemWeight_kg"`
	Quantity     int     `json:"quantity"`
}

// ReserveHubResult is returned on a successful reservation.
type ReserveHubResult struct {
	ReservationID    string  `json:"reservationID"`
	HubID            string  `json:"hubID"`
	ReservedWeightKg float64 `json:"reservedWeight_kg"`
}

// CollectionResult is returned when a collection completes.
type CollectionResult struct {
	HubID             string  `json:"hubID"`
	CollectedWeightKg float64 `json:"collectedWeight_kg"`
	RemainingWeightKg float64 `json:"remainingWeight_kg"`
}

// ReservedHubData is one open reservation joined with its hub, as returned
// by the foodbank reserved-hubs listing.
type ReservedHubData struct {
	HubID            string  `json:"hubID"`
	HubName          string  `json:"hubName"`
	HubAddress       string  `json:"hubAddress"`
	TotalWeightKg    float64 `json:"totalWeight_kg"`
	ReservationID    string  `json:"reservationID"`
	ReservationDate  string  `json:"reservationDate"`
	ReservedWeightKg float64 `json:"reservedWeight_kg"`
}

// CatalogItemData is one catalog entry in the existing-items listing.
type CatalogItemData struct {
	ItemID   string `json:"itemID"`
	ItemName string `json:"itemName"`
}
