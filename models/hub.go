package models

import "time"

// Hub represents a physical donation drop-off and collection point.
// Hub IDs are assigned by upstream callers, not generated here.
type Hub struct {
	HubID          string    `json:"hubID"`
	HubName        string    `json:"hubName"`
	HubAddress     string    `json:"hubAddress"`
	Reserved       bool      `json:"reserved"`
	ReadyToCollect bool      `json:"readyToCollect"`
	TotalWeightKg  float64   `json:"totalWeight_kg"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CatalogItem is a canonical food item with its standard unit weight.
// Created lazily on first sight; the weight is fixed at creation.
type CatalogItem struct {
	ItemID           string    `json:"itemID"`
	ItemName         string    `json:"itemName"`
	StandardWeightKg float64   `json:"standardWeight_kg"`
	CreatedAt        time.Time `json:"created_at"`
}

// InventoryLine is one (hub, item) row of a hub's current inventory.
// Name and weight are snapshotted from the catalog at insert time.
type InventoryLine struct {
	HubID        string  `json:"hubID"`
	ItemID       string  `json:"itemID"`
	ItemName     string  `json:"itemName"`
	ItemWeightKg float64 `json:"itemWeight_kg"`
	Quantity     int     `json:"quantity"`
}

// Reservation records a foodbank holding a hub for collection. At most one
// reservation with Completed=false may exist per hub. Completed reservations
// are kept for history.
type Reservation struct {
	ReservationID    string    `json:"reservationID"`
	HubID            string    `json:"hubID"`
	FoodbankID       string    `json:"foodbankID"`
	ReservedWeightKg float64   `json:"reservedWeight_kg"`
	CreatedAt        time.Time `json:"reservationDate"`
	Completed        bool      `json:"collectionCompleted"`
}

// SnapshotLine is an immutable copy of one inventory line taken at the
// instant of reservation. Collection removes exactly these quantities,
// leaving behind anything dropped off afterwards.
type SnapshotLine struct {
	ReservationID string  `json:"reservationID"`
	ItemID        string  `json:"itemID"`
	ItemName      string  `json:"itemName"`
	ItemWeightKg  float64 `json:"itemWeight_kg"`
	Quantity      int     `json:"quantity"`
}

// FoodbankAccount is the identity record returned by the Account Info API.
type FoodbankAccount struct {
	UserID      string `json:"userID"`
	UserName    string `json:"userName"`
	UserAddress string `json:"userAddress"`
	UserRole    string `json:"userRole"`
}
