package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSnapshot is the minimal receipt kept after the cart is emptied.
type OrderSnapshot struct {
	OrderNumber string          `json:"order_number"`
	CompletedAt time.Time       `json:"completed_at"`
	ItemCount   int             `json:"item_count"`
	Total       decimal.Decimal `json:"total"`
}

type OrderLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is the record built at checkout. Orders produced by a plain cart
// clear carry only the snapshot fields.
type Order struct {
	OrderSnapshot
	Items           []OrderLine `json:"items,omitempty"`
	Email           string      `json:"email,omitempty"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
}

// OrderRequest is what the caller knows about an order before it is built.
type OrderRequest struct {
	OrderNumber     string   `json:"order_number,omitempty"`
	Email           string   `json:"email,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	PaymentMethod   string   `json:"payment_method,omitempty"`
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Items != nil {
		c.Items = append([]OrderLine(nil), o.Items...)
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		c.ShippingAddress = &a
	}
	return &c
}
