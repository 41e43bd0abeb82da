package user

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// persistedState excludes the session. The identity provider owns session persistence.
type persistedState struct {
	Wishlist       []string         `json:"wishlist"`
	RecentlyViewed []string         `json:"recently_viewed"`
	Addresses      []domain.Address `json:"addresses"`
}

func (s *Store) ToPersisted() ([]byte, error) {
	s.mu.RLock()
	state := persistedState{
		Wishlist:       append([]string{}, s.wishlist...),
		RecentlyViewed: append([]string{}, s.recentlyViewed...),
		Addresses:      append([]domain.Address{}, s.addresses...),
	}
	s.mu.RUnlock()

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal user state: %w", err)
	}
	return data, nil
}

func (s *Store) FromPersisted(data []byte) error {
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("unmarshal user state: %w", err)
	}

	wishlist := []string{}
	for _, id := range state.Wishlist {
		id = strings.TrimSpace(id)
		if id != "" && indexOf(wishlist, id) < 0 {
			wishlist = append(wishlist, id)
		}
	}

	recent := []string{}
	for i := len(state.RecentlyViewed) - 1; i >= 0; i-- {
		if id := strings.TrimSpace(state.RecentlyViewed[i]); id != "" {
			recent = pushFront(recent, id, maxRecentlyViewed)
		}
	}

	addresses := []domain.Address{}
	defaultSeen := false
	seen := make(map[string]bool, len(state.Addresses))
	for _, a := range state.Addresses {
		a = trimAddress(a)
		a.ID = strings.TrimSpace(a.ID)
		if validateAddress(a) != nil || seen[a.ID] {
			continue
		}
		if a.ID == "" {
			a.ID = s.newID()
		}
		seen[a.ID] = true
		if a.IsDefault && defaultSeen {
			a.IsDefault = false
		}
		defaultSeen = defaultSeen || a.IsDefault
		addresses = append(addresses, a)
	}
	if !defaultSeen && len(addresses) > 0 {
		addresses[0].IsDefault = true
	}

	s.mu.Lock()
	s.wishlist = wishlist
	s.recentlyViewed = recent
	s.addresses = addresses
	s.mu.Unlock()
	return nil
}
