package cart

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// persistedState is the part of the cart that survives a reload.
// The open and hydration flags are not persisted.
type persistedState struct {
	Items     []domain.CartLineItem `json:"items"`
	LastOrder *domain.Order         `json:"last_order,omitempty"`
}

func (s *Store) ToPersisted() ([]byte, error) {
	s.mu.RLock()
	state := persistedState{
		Items:     copyLines(s.items),
		LastOrder: s.lastOrder.Clone(),
	}
	s.mu.RUnlock()

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal cart state: %w", err)
	}
	return data, nil
}

// FromPersisted replaces items and last order with a stored snapshot. Lines that break the
// cart invariants are dropped, and lines for the same product are merged.
func (s *Store) FromPersisted(data []byte) error {
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("unmarshal cart state: %w", err)
	}

	items := make([]domain.CartLineItem, 0, len(state.Items))
	byProduct := make(map[string]int, len(state.Items))
	for _, line := range state.Items {
		product, err := sanitizeProduct(line.Product)
		if err != nil || line.Quantity < 1 {
			log.Printf("cart: dropping persisted line %q (quantity %d)", line.ID, line.Quantity)
			continue
		}
		if i, ok := byProduct[product.ID]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		line.Product = product
		line.SelectedColor = optionalString(line.SelectedColor)
		line.SelectedSize = optionalString(line.SelectedSize)
		if line.ID == "" {
			line.ID = s.newLineID()
		}
		byProduct[product.ID] = len(items)
		items = append(items, line)
	}

	s.mu.Lock()
	s.items = items
	s.lastOrder = state.LastOrder
	s.mu.Unlock()
	return nil
}
