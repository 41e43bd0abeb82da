package cart

import (
	"log"

	"github.com/shopspring/decimal"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// guard runs a read path and returns fallback if it panics.
func guard[T any](op string, fallback T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cart: %s recovered: %v", op, r)
			out = fallback
		}
	}()
	return fn()
}

func (s *Store) TotalItems() int {
	return guard("total items", 0, func() int {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return totalItems(s.items)
	})
}

// TotalPrice sums the prices captured when each line was added, not current catalog prices.
func (s *Store) TotalPrice() decimal.Decimal {
	return guard("total price", decimal.Zero, func() decimal.Decimal {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return totalPrice(s.items)
	})
}

func (s *Store) Summary() domain.CartSummary {
	empty := domain.CartSummary{
		TotalPrice:    decimal.Zero,
		OriginalTotal: decimal.Zero,
		Savings:       decimal.Zero,
		IsEmpty:       true,
	}
	return guard("cart summary", empty, func() domain.CartSummary {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return summarize(s.items)
	})
}

func totalItems(lines []domain.CartLineItem) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

func totalPrice(lines []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func summarize(lines []domain.CartLineItem) domain.CartSummary {
	total := totalPrice(lines)
	original := decimal.Zero
	for _, line := range lines {
		original = original.Add(line.Product.ListPrice().Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	savings := original.Sub(total)
	if savings.IsNegative() {
		savings = decimal.Zero
	}

	return domain.CartSummary{
		TotalItems:    totalItems(lines),
		TotalPrice:    total,
		OriginalTotal: original,
		Savings:       savings,
		IsEmpty:       len(lines) == 0,
	}
}
