package user

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/identity"
)

const maxRecentlyViewed = 12

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrAddressNotFound = errors.New("address not found")
	ErrNilProvider     = errors.New("identity provider is nil")
)

// State is a copy of the user store state.
type State struct {
	Wishlist       []string            `json:"wishlist"`
	RecentlyViewed []string            `json:"recently_viewed"`
	Addresses      []domain.Address    `json:"addresses"`
	Session        *domain.UserSession `json:"session"`
	IsHydrated     bool                `json:"is_hydrated"`
}

// Store owns one visitor's wishlist, recently viewed products, saved addresses
// and a mirror of the identity provider session.
type Store struct {
	mu             sync.RWMutex
	wishlist       []string
	recentlyViewed []string
	addresses      []domain.Address
	session        *domain.UserSession
	listener       func()

	hydrated    bool
	hydrateOnce sync.Once

	initMu   sync.Mutex
	provider identity.Provider
	teardown func()

	newID func() string
}

type Option func(*Store)

func WithIDs(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		wishlist:       []string{},
		recentlyViewed: []string{},
		addresses:      []domain.Address{},
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called after every change to persisted state. fn must not block.
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

// ToggleWishlist flips membership of productID and returns the new membership.
func (s *Store) ToggleWishlist(productID string) bool {
	id := strings.TrimSpace(productID)
	if id == "" {
		return false
	}

	s.mu.Lock()
	var member bool
	if i := indexOf(s.wishlist, id); i >= 0 {
		s.wishlist = append(s.wishlist[:i], s.wishlist[i+1:]...)
	} else {
		s.wishlist = append(s.wishlist, id)
		member = true
	}
	s.mu.Unlock()

	s.notify()
	return member
}

// AddToWishlist reports whether productID was added.
func (s *Store) AddToWishlist(productID string) bool {
	id := strings.TrimSpace(productID)
	if id == "" {
		return false
	}

	s.mu.Lock()
	added := indexOf(s.wishlist, id) < 0
	if added {
		s.wishlist = append(s.wishlist, id)
	}
	s.mu.Unlock()

	if added {
		s.notify()
	}
	return added
}

// RemoveFromWishlist reports whether productID was removed.
func (s *Store) RemoveFromWishlist(productID string) bool {
	id := strings.TrimSpace(productID)

	s.mu.Lock()
	i := indexOf(s.wishlist, id)
	if i >= 0 {
		s.wishlist = append(s.wishlist[:i], s.wishlist[i+1:]...)
	}
	s.mu.Unlock()

	if i < 0 {
		return false
	}
	s.notify()
	return true
}

func (s *Store) IsInWishlist(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.wishlist, strings.TrimSpace(productID)) >= 0
}

func (s *Store) Wishlist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.wishlist...)
}

// AddRecentlyViewed moves productID to the front of the recently viewed list.
func (s *Store) AddRecentlyViewed(productID string) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return
	}

	s.mu.Lock()
	s.recentlyViewed = pushFront(s.recentlyViewed, id, maxRecentlyViewed)
	s.mu.Unlock()

	s.notify()
}

func (s *Store) RecentlyViewed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.recentlyViewed...)
}

func (s *Store) ClearRecentlyViewed() {
	s.mu.Lock()
	s.recentlyViewed = []string{}
	s.mu.Unlock()

	s.notify()
}

// SetSession installs a normalized copy of session. A nil session is ignored; use ClearSession to sign out.
func (s *Store) SetSession(session *identity.Session) {
	if session == nil {
		return
	}
	normalized := normalizeSession(session)

	s.mu.Lock()
	s.session = &normalized
	s.mu.Unlock()
}

func (s *Store) ClearSession() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}

func (s *Store) Session() *domain.UserSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	c := *s.session
	return &c
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Wishlist:       append([]string{}, s.wishlist...),
		RecentlyViewed: append([]string{}, s.recentlyViewed...),
		Addresses:      append([]domain.Address{}, s.addresses...),
		IsHydrated:     s.hydrated,
	}
	if s.session != nil {
		c := *s.session
		st.Session = &c
	}
	return st
}

func (s *Store) MarkHydrated() {
	s.hydrateOnce.Do(func() {
		s.mu.Lock()
		s.hydrated = true
		s.mu.Unlock()
	})
}

func (s *Store) IsHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

func normalizeSession(session *identity.Session) domain.UserSession {
	md := session.Metadata
	name := firstNonEmpty(md["full_name"], md["name"])
	if name == "" {
		name, _, _ = strings.Cut(session.Email, "@")
	}
	provider := session.Provider
	if provider == "" {
		provider = "email"
	}
	memberSince := session.CreatedAt
	if memberSince.IsZero() {
		memberSince = time.Now()
	}

	return domain.UserSession{
		ID:          session.UserID,
		Email:       session.Email,
		Name:        name,
		Avatar:      firstNonEmpty(md["avatar_url"], md["picture"]),
		Provider:    provider,
		MemberSince: memberSince,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func pushFront(list []string, id string, limit int) []string {
	out := make([]string, 0, limit)
	out = append(out, id)
	for _, v := range list {
		if len(out) == limit {
			break
		}
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
