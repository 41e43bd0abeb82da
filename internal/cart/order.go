package cart

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// NewOrderNumber derives an order number from the completion time plus a random suffix.
func NewOrderNumber(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return strings.ToUpper("PP-" + strconv.FormatInt(t.UnixMilli(), 36) + "-" + suffix)
}

// ClearCart empties the cart. With a non-nil req it first records an order snapshot of the
// current contents as the last order and returns it; with nil the last order is left as is.
func (s *Store) ClearCart(req *domain.OrderRequest) *domain.Order {
	s.mu.Lock()
	var order *domain.Order
	if req != nil {
		order = &domain.Order{OrderSnapshot: s.snapshotLocked(req.OrderNumber)}
		s.lastOrder = order
	}
	s.items = []domain.CartLineItem{}
	s.mu.Unlock()

	s.notify()
	return order.Clone()
}

// CompleteOrder turns the cart into an order: it records the full order as the last order,
// stashes a copy in short-lived storage, empties and closes the cart.
// An empty cart returns ErrEmptyCart and leaves the last order untouched.
func (s *Store) CompleteOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	order := &domain.Order{
		OrderSnapshot:   s.snapshotLocked(req.OrderNumber),
		Items:           make([]domain.OrderLine, 0, len(s.items)),
		Email:           strings.TrimSpace(req.Email),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	for _, line := range s.items {
		order.Items = append(order.Items, domain.OrderLine{
			Name:     line.Product.Name,
			Quantity: line.Quantity,
			Price:    line.Product.Price,
		})
	}
	order = order.Clone()
	s.lastOrder = order
	s.items = []domain.CartLineItem{}
	s.isOpen = false
	stash := s.stash
	s.mu.Unlock()

	if stash != nil {
		if err := stash.StashOrder(ctx, order.Clone()); err != nil {
			log.Printf("cart: stash order %s failed: %v", order.OrderNumber, err)
		}
	}

	s.notify()
	return order.Clone(), nil
}

func (s *Store) snapshotLocked(orderNumber string) domain.OrderSnapshot {
	completedAt := s.now()
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		orderNumber = s.orderNumber(completedAt)
	}
	return domain.OrderSnapshot{
		OrderNumber: orderNumber,
		CompletedAt: completedAt,
		ItemCount:   totalItems(s.items),
		Total:       totalPrice(s.items),
	}
}
