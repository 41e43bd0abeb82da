package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

type SortKey string

const (
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortName      SortKey = "name"
)

// Source supplies the products a Catalog is built from.
type Source interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

// Catalog is a read-only, in-memory product list.
type Catalog struct {
	products []domain.Product
	index    map[string]int // id and slug -> position
}

func New(products []domain.Product) *Catalog {
	c := &Catalog{
		products: append([]domain.Product(nil), products...),
		index:    make(map[string]int, 2*len(products)),
	}
	for i, p := range c.products {
		c.index[p.ID] = i
		if p.Slug != "" {
			c.index[p.Slug] = i
		}
	}
	return c
}

func Load(ctx context.Context, src Source) (*Catalog, error) {
	products, err := src.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(products), nil
}

func (c *Catalog) All() []domain.Product {
	return append([]domain.Product(nil), c.products...)
}

func (c *Catalog) Len() int {
	return len(c.products)
}

// Get looks a product up by id or slug.
func (c *Catalog) Get(idOrSlug string) (domain.Product, error) {
	i, ok := c.index[strings.TrimSpace(idOrSlug)]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, idOrSlug)
	}
	return c.products[i], nil
}

func (c *Catalog) ByCategory(category string) []domain.Product {
	var out []domain.Product
	for _, p := range c.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

// Search matches q case-insensitively against name, category and slug.
func (c *Catalog) Search(q string) []domain.Product {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return c.All()
	}
	var out []domain.Product
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			strings.Contains(strings.ToLower(p.Slug), q) {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists categories in catalog order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Query filters by category and search text, then sorts.
func (c *Catalog) Query(category, q string, key SortKey) []domain.Product {
	products := c.Search(q)
	if category != "" {
		filtered := products[:0:0]
		for _, p := range products {
			if strings.EqualFold(p.Category, category) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	return Sort(products, key)
}

// Sort returns a sorted copy. Unknown keys keep catalog order.
func Sort(products []domain.Product, key SortKey) []domain.Product {
	out := append([]domain.Product(nil), products...)
	var less func(a, b domain.Product) bool
	switch key {
	case SortPriceAsc:
		less = func(a, b domain.Product) bool { return a.Price.LessThan(b.Price) }
	case SortPriceDesc:
		less = func(a, b domain.Product) bool { return a.Price.GreaterThan(b.Price) }
	case SortName:
		less = func(a, b domain.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
