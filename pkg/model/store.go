package model

// StoreMarker is one store row of /api/stores: the store itself plus the
// aggregated remaining quantity of its discounted items.
type StoreMarker struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Address      string   `json:"address"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	RemainingQty int      `json:"remaining_qty"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
}
