package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// sanitizeProduct copies the fields a cart line needs and validates them.
func sanitizeProduct(p domain.Product) (domain.Product, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return domain.Product{}, fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: negative price for %s", ErrInvalidProduct, id)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = id
	}
	original := p.OriginalPrice
	if original.IsNegative() {
		original = decimal.Zero
	}

	return domain.Product{
		ID:            id,
		Name:          name,
		Price:         p.Price,
		OriginalPrice: original,
		Image:         strings.TrimSpace(p.Image),
		Category:      strings.TrimSpace(p.Category),
		Slug:          strings.TrimSpace(p.Slug),
	}, nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
