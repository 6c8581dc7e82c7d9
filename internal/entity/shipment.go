package entity

import (
	"encoding/json"
	"io"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusPending, StatusInTransit, StatusDelivered, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

type Shipment struct {
	ID               string    `json:"id"`
	TrackingNumber   string    `json:"trackingNumber"`
	Sender           string    `json:"sender"`
	Recipient        string    `json:"recipient"`
	Origin           string    `json:"origin"`
	Destination      string    `json:"destination"`
	Image            *string   `json:"image"`
	AdditionalImages []string  `json:"additionalImages"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// MarshalJSON also emits the id as "_id" and never renders additionalImages as null.
func (s Shipment) MarshalJSON() ([]byte, error) {
	type shipment Shipment
	out := struct {
		MongoID string `json:"_id"`
		shipment
	}{MongoID: s.ID, shipment: shipment(s)}
	if out.AdditionalImages == nil {
		out.AdditionalImages = []string{}
	}
	return json.Marshal(out)
}

// NewShipment returns a pending shipment with the given tracking number.
func NewShipment(in CreateShipmentInput, trackingNumber string, image *string) *Shipment {
	return &Shipment{
		TrackingNumber:   trackingNumber,
		Sender:           in.Sender,
		Recipient:        in.Recipient,
		Origin:           in.Origin,
		Destination:      in.Destination,
		Image:            image,
		AdditionalImages: []string{},
		Status:           StatusPending,
	}
}

type CreateShipmentInput struct {
	Sender      string `json:"sender"      form:"sender"`
	Recipient   string `json:"recipient"   form:"recipient"`
	Origin      string `json:"origin"      form:"origin"`
	Destination string `json:"destination" form:"destination"`
}

// Image is an inbound binary payload waiting to be uploaded.
type Image struct {
	Reader   io.Reader
	Filename string
	Size     int64
}
