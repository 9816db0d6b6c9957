package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// ViewChangedEvent is emitted whenever the shared map view (center, radius
// or brand filter) changes. Components that render from the view re-fetch
// when they receive it.
type ViewChangedEvent struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	RadiusKm  float64   `json:"radius_km"`
	Brand     string    `json:"brand"`
	Reload    bool      `json:"reload"` // full page refresh requested (location/radius change)
	Timestamp time.Time `json:"timestamp"`
}

// SaleNotifiedEvent is emitted after a favorites-add notification found an
// active special and recorded a user notification.
type SaleNotifiedEvent struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	FinalPrice  float64   `json:"final_price"`
	Timestamp   time.Time `json:"timestamp"`
}
