package models

import "time"

// Event names carried in the envelope published to the hub events topic.
const (
	EventReservationCreated   = "hub.reservation.created"
	EventReservationCancelled = "hub.reservation.cancelled"
	EventCollectionCompleted  = "hub.collection.completed"
	EventDropOffRecorded      = "dropoff.recorded"
)

// HubEvent is the envelope for every message on the hub events topic.
// Consumers switch on Event and decode the matching payload fields.
type HubEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`

	HubID      string `json:"hubID"`
	FoodbankID string `json:"foodbankID,omitempty"`

	ReservationID     string   `json:"reservationID,omitempty"`
	WeightKg          *float64 `json:"weight_kg,omitempty"`
	CollectedWeightKg *float64 `json:"collectedWeight_kg,omitempty"`
	RemainingWeightKg *float64 `json:"remainingWeight_kg,omitempty"`

	// Set only on dropoff.recorded, by the delivery-confirmation service.
	Volunteer *VolunteerInfo `json:"volunteer,omitempty"`
}

// VolunteerInfo identifies the volunteer behind a drop-off event.
type VolunteerInfo struct {
	VolunteerID   string `json:"volunteerID"`
	VolunteerName string `json:"volunteerName"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}
