package service

import "context"

// IdentityProvider supplies user identity. The engine never owns user
// records; it only correlates invitations and memberships to user ids held
// by the embedding system.
type IdentityProvider interface {
	// Email returns the user's email address. ErrUserNotFound when the id
	// is unknown.
	Email(ctx context.Context, userID string) (string, error)

	// UserIDByEmail returns the user id for an email, or "" (with nil
	// error) when no account exists for it yet.
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// SessionProvider holds the per-user active-organization pointer. The
// session store itself (cookies, tokens) belongs to the embedder; this
// engine only validates membership and computes the new value.
type SessionProvider interface {
	SetActiveOrganization(ctx context.Context, userID, organizationID string) error

	// ActiveOrganization returns the pointer, or "" when none is selected.
	ActiveOrganization(ctx context.Context, userID string) (string, error)
}
