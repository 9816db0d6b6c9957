package api

import "github.com/foodmap/foodmap/pkg/model"

// favoritesAddRequest accepts the product id under the field aliases real
// clients send.
type favoritesAddRequest struct {
	UserID    int64 `json:"user_id" form:"user_id"`
	ItemID    int64 `json:"item_id" form:"item_id"`
	ProductID int64 `json:"product_id" form:"product_id"`
	ID        int64 `json:"id" form:"id"`
}

// resolveProductID applies the alias priority: item_id, product_id, id.
func (r favoritesAddRequest) resolveProductID() (int64, bool) {
	switch {
	case r.ItemID != 0:
		return r.ItemID, true
	case r.ProductID != 0:
		return r.ProductID, true
	case r.ID != 0:
		return r.ID, true
	default:
		return 0, false
	}
}

// saleResponse is the favorites-add-notify answer.
type saleResponse struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Sale  *model.SaleInfo `json:"sale,omitempty"`
}
