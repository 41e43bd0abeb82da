package domain

import "github.com/shopspring/decimal"

type CartLineItem struct {
	ID            string  `json:"id"`
	Product       Product `json:"product"`
	Quantity      int     `json:"quantity"`
	SelectedColor *string `json:"selected_color"`
	SelectedSize  *string `json:"selected_size"`
}

// Subtotal is the embedded price times quantity.
func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartSummary struct {
	TotalItems    int             `json:"total_items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	Savings       decimal.Decimal `json:"savings"`
	IsEmpty       bool            `json:"is_empty"`
}
