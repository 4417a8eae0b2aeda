package store

import (
	"context"
	"errors"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and it is where the engine's uniqueness and atomicity
// requirements land: drivers must enforce slug uniqueness, the one-member-
// per-user-per-org constraint, compare-and-set status transitions, and
// cascading deletion of an organization's members, invitations and teams.
type Store interface {
	Organizations() Organizations
	Members() Members
	Invitations() Invitations
	Teams() Teams

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Organizations interface {
	// CreateOrganization inserts a new organization (id is provided by the
	// app via ULID). A slug collision returns ErrAlreadyExists.
	CreateOrganization(ctx context.Context, org domain.Organization) error

	// GetOrganizationByID returns an organization by id.
	GetOrganizationByID(ctx context.Context, id string) (domain.Organization, error)

	// GetOrganizationBySlug returns an organization by its unique slug.
	GetOrganizationBySlug(ctx context.Context, slug string) (domain.Organization, error)

	// UpdateOrganization replaces name, slug, logo and metadata. A slug
	// collision returns ErrAlreadyExists.
	UpdateOrganization(ctx context.Context, org domain.Organization) error

	// DeleteOrganization removes the organization; members, invitations and
	// teams cascade per schema.
	DeleteOrganization(ctx context.Context, id string) error

	// ListOrganizationsByUser returns the organizations the user is a member
	// of, newest first.
	ListOrganizationsByUser(ctx context.Context, userID string) ([]domain.Organization, error)
}

type Members interface {
	// CreateMember inserts a membership. A second membership for the same
	// (user, organization) pair returns ErrAlreadyExists.
	CreateMember(ctx context.Context, m domain.Member) error

	// GetMemberByID returns a member by id.
	GetMemberByID(ctx context.Context, id string) (domain.Member, error)

	// GetMemberByUserAndOrganization returns the user's membership in the
	// organization, if any.
	GetMemberByUserAndOrganization(ctx context.Context, userID, organizationID string) (domain.Member, error)

	// UpdateMemberRoles replaces the member's role set.
	UpdateMemberRoles(ctx context.Context, memberID string, roles []string) error

	// SetMemberTeam assigns (or with empty teamID clears) the member's team.
	SetMemberTeam(ctx context.Context, memberID, teamID string) error

	// DeleteMember removes a membership.
	DeleteMember(ctx context.Context, memberID string) error

	// ListMembersByOrganization returns all members, oldest first.
	ListMembersByOrganization(ctx context.Context, organizationID string) ([]domain.Member, error)

	// CountMembersByOrganization supports the membership limit.
	CountMembersByOrganization(ctx context.Context, organizationID string) (int, error)

	// CountMembersByTeam supports the members-per-team limit.
	CountMembersByTeam(ctx context.Context, teamID string) (int, error)

	// CountMembershipsByUser supports the per-user organization limit.
	CountMembershipsByUser(ctx context.Context, userID string) (int, error)
}

type Invitations interface {
	// CreateInvitation writes a new invitation in pending state.
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	// GetInvitationByID returns an invitation by id.
	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)

	// GetPendingInvitationByEmail returns the pending invitation for the
	// (organization, email) pair, if one exists.
	GetPendingInvitationByEmail(ctx context.Context, organizationID, email string) (domain.Invitation, error)

	// UpdateInvitationStatus transitions status from→to as a compare-and-set:
	// if the invitation is no longer in the from status the update affects
	// nothing and ErrNotFound is returned. This is what serializes racing
	// accept/reject/cancel calls so exactly one wins.
	UpdateInvitationStatus(ctx context.Context, id string, from, to domain.InvitationStatus) error

	// RefreshInvitationExpiry pushes out expires_at on a still-pending
	// invitation (resend). ErrNotFound if it is no longer pending.
	RefreshInvitationExpiry(ctx context.Context, id string, expiresAt time.Time) error

	// ListInvitationsByOrganization returns all invitations, newest first.
	ListInvitationsByOrganization(ctx context.Context, organizationID string) ([]domain.Invitation, error)

	// ListInvitationsByEmail returns the email's invitations across
	// organizations, newest first.
	ListInvitationsByEmail(ctx context.Context, email string) ([]domain.Invitation, error)

	// CountPendingInvitationsByInviter supports the invitation limit.
	CountPendingInvitationsByInviter(ctx context.Context, inviterID string) (int, error)

	// CancelExpiredInvitations marks every pending invitation past its
	// deadline as canceled and reports how many rows changed. Housekeeping;
	// the lazy checks at read/accept time yield the same observable states.
	CancelExpiredInvitations(ctx context.Context, now time.Time) (int64, error)
}

type Teams interface {
	// CreateTeam inserts a new team.
	CreateTeam(ctx context.Context, team domain.Team) error

	// GetTeamByID returns a team by id.
	GetTeamByID(ctx context.Context, id string) (domain.Team, error)

	// UpdateTeamName renames a team and bumps updated_at.
	UpdateTeamName(ctx context.Context, teamID, name string, updatedAt time.Time) error

	// DeleteTeam removes a team; member assignments are cleared per schema.
	DeleteTeam(ctx context.Context, teamID string) error

	// ListTeamsByOrganization returns all teams, oldest first.
	ListTeamsByOrganization(ctx context.Context, organizationID string) ([]domain.Team, error)

	// CountTeamsByOrganization supports the maximum-teams limit.
	CountTeamsByOrganization(ctx context.Context, organizationID string) (int, error)
}
