package entity

import "time"

type EventType string

const (
	EventShipmentCreated       EventType = "shipment.created"
	EventShipmentImageAttached EventType = "shipment.image_attached"
	EventShipmentStatusChanged EventType = "shipment.status_changed"
)

// ShipmentEvent is published after a lifecycle change has been persisted.
type ShipmentEvent struct {
	Type           EventType `json:"type"`
	ShipmentID     string    `json:"shipmentId"`
	TrackingNumber string    `json:"trackingNumber"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// StatusUpdate is an inbound carrier scan asking to move a shipment to a new status.
type StatusUpdate struct {
	TrackingNumber string    `json:"trackingNumber" validate:"required"`
	Status         Status    `json:"status"         validate:"required"`
	Location       string    `json:"location,omitempty"`
	ScannedAt      time.Time `json:"scannedAt"`
}
