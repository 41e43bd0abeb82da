package domain

import "github.com/shopspring/decimal"

// Product is a catalog record. Carts keep a copy of it, never a reference.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"` // zero when not on sale
	Image         string          `json:"image,omitempty"`
	Category      string          `json:"category,omitempty"`
	Slug          string          `json:"slug,omitempty"`
}

// ListPrice returns the original price, or the price when no original price is set.
func (p Product) ListPrice() decimal.Decimal {
	if p.OriginalPrice.IsPositive() {
		return p.OriginalPrice
	}
	return p.Price
}
