package domain

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationCanceled InvitationStatus = "canceled"
)

// Valid reports whether s is one of the recognised status values.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRejected, InvitationCanceled:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s InvitationStatus) Terminal() bool {
	return s.Valid() && s != InvitationPending
}

type Invitation struct {
	ID             string
	Email          string
	InviterID      string // User who issued the invitation
	OrganizationID string
	Roles          []string // Roles granted on acceptance
	TeamID         string   // Optional team assignment on acceptance
	Status         InvitationStatus
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the invitation's deadline has passed at now.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
