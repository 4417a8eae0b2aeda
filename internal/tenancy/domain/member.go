package domain

import "time"

type Member struct {
	ID             string
	UserID         string   // Weak reference to the owning user, not managed here
	OrganizationID string
	Roles          []string // Parsed from comma-delimited storage
	TeamID         string   // Optional, empty when unassigned or teams disabled
	CreatedAt      time.Time
}

// HasRole reports whether the member holds the named role.
func (m Member) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}
