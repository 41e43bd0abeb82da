package cart

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// Stash keeps a copy of a completed order in short-lived storage, so a confirmation
// view can still read it after the cart has been emptied and reloaded.
type Stash interface {
	StashOrder(ctx context.Context, order *domain.Order) error
}

// State is a copy of the cart store state.
type State struct {
	Items      []domain.CartLineItem `json:"items"`
	IsOpen     bool                  `json:"is_open"`
	IsHydrated bool                  `json:"is_hydrated"`
	LastOrder  *domain.Order         `json:"last_order"`
}

// Store is the single source of truth for one visitor's cart.
// It is safe for concurrent use; mutations are applied in call order.
type Store struct {
	mu        sync.RWMutex
	items     []domain.CartLineItem
	isOpen    bool
	lastOrder *domain.Order
	listener  func()

	hydrated bool

	now         func() time.Time
	newLineID   func() string
	orderNumber func(time.Time) string
	stash       Stash
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithOrderStash(stash Stash) Option {
	return func(s *Store) { s.stash = stash }
}

func WithOrderNumbers(gen func(time.Time) string) Option {
	return func(s *Store) {
		if gen != nil {
			s.orderNumber = gen
		}
	}
}

func WithLineIDs(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newLineID = gen
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		items:       []domain.CartLineItem{},
		now:         time.Now,
		newLineID:   uuid.NewString,
		orderNumber: NewOrderNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called after every state change. fn must not block.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.listener
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// LineOption selects a product variant when adding to the cart.
type LineOption func(*domain.CartLineItem)

func WithColor(color string) LineOption {
	return func(l *domain.CartLineItem) { l.SelectedColor = optionalString(&color) }
}

func WithSize(size string) LineOption {
	return func(l *domain.CartLineItem) { l.SelectedSize = optionalString(&size) }
}

// AddToCart adds quantity units of p. A product already in the cart has its quantity
// increased instead of getting a second line. Invalid input leaves the cart untouched.
func (s *Store) AddToCart(p domain.Product, quantity int, opts ...LineOption) error {
	product, err := sanitizeProduct(p)
	if err != nil {
		log.Printf("cart: add to cart ignored: %v", err)
		return err
	}
	if quantity < 1 {
		log.Printf("cart: add to cart ignored: %v (got %d)", ErrInvalidQuantity, quantity)
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	if i := s.indexByProduct(product.ID); i >= 0 {
		s.items[i].Quantity += quantity
	} else {
		line := domain.CartLineItem{
			ID:       s.newLineID(),
			Product:  product,
			Quantity: quantity,
		}
		for _, opt := range opts {
			opt(&line)
		}
		s.items = append(s.items, line)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// RemoveItem removes every line whose line id or product id equals id.
// It reports whether anything was removed.
func (s *Store) RemoveItem(id string) bool {
	s.mu.Lock()
	kept := s.items[:0]
	removed := false
	for _, line := range s.items {
		if line.ID == id || line.Product.ID == id {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	s.items = kept
	s.mu.Unlock()

	if removed {
		s.notify()
	}
	return removed
}

// RemoveFromCart is RemoveItem for callers holding a product id.
func (s *Store) RemoveFromCart(productID string) bool {
	return s.RemoveItem(productID)
}

// UpdateQuantity sets the quantity of the line matching id. A quantity below 1 removes the line.
func (s *Store) UpdateQuantity(id string, quantity int) bool {
	if quantity <= 0 {
		return s.RemoveItem(id)
	}

	s.mu.Lock()
	i := s.indexByID(id)
	if i >= 0 {
		s.items[i].Quantity = quantity
	}
	s.mu.Unlock()

	if i < 0 {
		return false
	}
	s.notify()
	return true
}

func (s *Store) ToggleCart() {
	s.mu.Lock()
	s.isOpen = !s.isOpen
	s.mu.Unlock()
}

func (s *Store) OpenCart() {
	s.mu.Lock()
	s.isOpen = true
	s.mu.Unlock()
}

func (s *Store) CloseCart() {
	s.mu.Lock()
	s.isOpen = false
	s.mu.Unlock()
}

func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOpen
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLines(s.items)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) LastOrder() *domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOrder.Clone()
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Items:      copyLines(s.items),
		IsOpen:     s.isOpen,
		IsHydrated: s.hydrated,
		LastOrder:  s.lastOrder.Clone(),
	}
}

// MarkHydrated records that persisted state has been loaded, or found absent.
func (s *Store) MarkHydrated() {
	s.mu.Lock()
	s.hydrated = true
	s.mu.Unlock()
}

func (s *Store) IsHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

func (s *Store) indexByProduct(productID string) int {
	for i, line := range s.items {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) indexByID(id string) int {
	for i, line := range s.items {
		if line.ID == id || line.Product.ID == id {
			return i
		}
	}
	return -1
}

func copyLines(lines []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(lines))
	for i, line := range lines {
		out[i] = line
		out[i].SelectedColor = copyString(line.SelectedColor)
		out[i].SelectedSize = copyString(line.SelectedSize)
	}
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
