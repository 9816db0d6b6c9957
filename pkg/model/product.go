package model

// Product is a spotlight/recommendation product as served to clients.
// FinalPrice is the discounted price; DiscountRate is in (0,1] where 1.0
// means no discount, so FinalPrice <= Price whenever a discount applies.
type Product struct {
	ProductID    int64    `json:"product_id"`
	Name         string   `json:"name"`
	Category     string   `json:"category,omitempty"`
	Brand        string   `json:"brand"`
	Price        float64  `json:"price"`
	FinalPrice   float64  `json:"final_price"`
	DiscountRate float64  `json:"discount_rate"`
	StoreID      int64    `json:"store_id"`
	StoreName    string   `json:"store_name"`
	Address      string   `json:"address"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
	AvgRating    float64  `json:"avg_rating"`
	RatingCount  int      `json:"rating_count"`
	ImageURL     string   `json:"image_url"`
}

// OnSale reports whether the product carries an effective discount.
func (p Product) OnSale() bool {
	return p.DiscountRate > 0 && p.DiscountRate < 1.0
}

// SaleInfo is the active special resolved for a favorites add notification.
type SaleInfo struct {
	ProductID    int64   `json:"id"`
	ProductName  string  `json:"name"`
	Price        float64 `json:"-"`
	FinalPrice   float64 `json:"final_price"`
	DiscountRate float64 `json:"discount_rate"`
	DiscountEnd  string  `json:"discount_end"`
}
