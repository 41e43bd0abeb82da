package user

import (
	"fmt"
	"strings"

	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// AddAddress saves a new address. The first saved address always becomes the default.
func (s *Store) AddAddress(a domain.Address) (domain.Address, error) {
	a = trimAddress(a)
	if err := validateAddress(a); err != nil {
		return domain.Address{}, err
	}

	s.mu.Lock()
	a.ID = s.newID()
	if len(s.addresses) == 0 {
		a.IsDefault = true
	}
	s.addresses = append(s.addresses, a)
	if a.IsDefault {
		s.setDefaultLocked(a.ID)
	}
	s.mu.Unlock()

	s.notify()
	return a, nil
}

// UpdateAddress replaces the fields of address id. Passing IsDefault makes it the default;
// an existing default stays default otherwise.
func (s *Store) UpdateAddress(id string, a domain.Address) (domain.Address, error) {
	a = trimAddress(a)
	if err := validateAddress(a); err != nil {
		return domain.Address{}, err
	}

	s.mu.Lock()
	i := s.addressIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Address{}, fmt.Errorf("%w: %s", ErrAddressNotFound, id)
	}
	a.ID = id
	makeDefault := a.IsDefault
	a.IsDefault = s.addresses[i].IsDefault
	s.addresses[i] = a
	if makeDefault {
		s.setDefaultLocked(id)
	}
	updated := s.addresses[i]
	s.mu.Unlock()

	s.notify()
	return updated, nil
}

// RemoveAddress deletes address id. When the default is removed the first remaining address takes over.
func (s *Store) RemoveAddress(id string) error {
	s.mu.Lock()
	i := s.addressIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAddressNotFound, id)
	}
	wasDefault := s.addresses[i].IsDefault
	s.addresses = append(s.addresses[:i], s.addresses[i+1:]...)
	if wasDefault && len(s.addresses) > 0 {
		s.addresses[0].IsDefault = true
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) SetDefaultAddress(id string) error {
	s.mu.Lock()
	if s.addressIndexLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAddressNotFound, id)
	}
	s.setDefaultLocked(id)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) Addresses() []domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Address{}, s.addresses...)
}

func (s *Store) DefaultAddress() (domain.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return domain.Address{}, false
}

func (s *Store) addressIndexLocked(id string) int {
	for i, a := range s.addresses {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) setDefaultLocked(id string) {
	for i := range s.addresses {
		s.addresses[i].IsDefault = s.addresses[i].ID == id
	}
}

func trimAddress(a domain.Address) domain.Address {
	a.Label = strings.TrimSpace(a.Label)
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}

func validateAddress(a domain.Address) error {
	switch {
	case a.FullName == "":
		return fmt.Errorf("%w: full name is required", ErrInvalidAddress)
	case a.Line1 == "":
		return fmt.Errorf("%w: address line is required", ErrInvalidAddress)
	case a.City == "":
		return fmt.Errorf("%w: city is required", ErrInvalidAddress)
	case a.PostalCode == "":
		return fmt.Errorf("%w: postal code is required", ErrInvalidAddress)
	}
	return nil
}
