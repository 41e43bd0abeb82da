package domain

import "time"

// UserSession mirrors the identity provider session. It is never persisted.
type UserSession struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar,omitempty"`
	Provider    string    `json:"provider"`
	MemberSince time.Time `json:"member_since"`
}

type Address struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
	IsDefault  bool   `json:"is_default"`
}
