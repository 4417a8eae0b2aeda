package service

import (
	"context"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
)

// DefaultInvitationTTL is how long invitations stay acceptable unless
// configured otherwise.
const DefaultInvitationTTL = 48 * time.Hour

// Gate is a boolean-or-predicate configuration value. The zero value
// allows. Both variants are evaluated uniformly through allowed so call
// sites never branch on which kind they were given.
type Gate struct {
	set   bool
	fixed bool
	fn    func(ctx context.Context, userID string) (bool, error)
}

// Allow returns a constant gate.
func Allow(v bool) Gate { return Gate{set: true, fixed: v} }

// AllowFunc returns a computed gate evaluated per call.
func AllowFunc(fn func(ctx context.Context, userID string) (bool, error)) Gate {
	return Gate{set: true, fn: fn}
}

func (g Gate) allowed(ctx context.Context, userID string) (bool, error) {
	if g.fn != nil {
		return g.fn(ctx, userID)
	}
	if !g.set {
		return true, nil
	}
	return g.fixed, nil
}

// Limit is a number-or-computed configuration value. The zero value means
// unlimited.
type Limit struct {
	set bool
	n   int
	fn  func(ctx context.Context, subjectID string) (int, error)
}

// FixedLimit returns a constant limit. FixedLimit(0) allows nothing.
func FixedLimit(n int) Limit { return Limit{set: true, n: n} }

// ComputedLimit returns a limit evaluated per call, e.g. from a billing
// plan. The subject id is the user or organization the limit applies to.
func ComputedLimit(fn func(ctx context.Context, subjectID string) (int, error)) Limit {
	return Limit{set: true, fn: fn}
}

// value returns the limit and whether one applies at all.
func (l Limit) value(ctx context.Context, subjectID string) (int, bool, error) {
	if !l.set {
		return 0, false, nil
	}
	if l.fn != nil {
		n, err := l.fn(ctx, subjectID)
		return n, true, err
	}
	return l.n, true, nil
}

// OrganizationCreation configures the creation flow. BeforeCreate runs
// before anything persists and may rewrite the payload or abort the
// operation. AfterCreate runs after commit; its failures are reported in
// the log but never roll back the committed organization.
type OrganizationCreation struct {
	Disabled     bool
	BeforeCreate func(ctx context.Context, org *domain.Organization) error
	AfterCreate  func(ctx context.Context, org domain.Organization, creator domain.Member) error
}

// OrganizationDeletion mirrors OrganizationCreation for the deletion flow.
type OrganizationDeletion struct {
	Disabled     bool
	BeforeDelete func(ctx context.Context, org domain.Organization) error
	AfterDelete  func(ctx context.Context, org domain.Organization) error
}

// TeamOptions configures the optional team feature. When Enabled is false
// every team operation fails and teamId fields stay unused.
type TeamOptions struct {
	Enabled               bool
	MaximumTeams          Limit // per organization
	MaximumMembersPerTeam Limit // per team, enforced at assignment time
	AllowRemovingAllTeams bool  // when false the last team cannot be removed
}

// Options is the engine's configuration surface. It is programmatic rather
// than env-driven because it carries hooks and computed limits.
type Options struct {
	// AllowUserToCreateOrganization gates organization creation per user.
	AllowUserToCreateOrganization Gate

	// OrganizationLimit caps how many organizations a user may belong to.
	OrganizationLimit Limit

	// CreatorRole is assigned to the creating user's membership.
	// Defaults to owner.
	CreatorRole string

	// MembershipLimit caps members per organization.
	MembershipLimit Limit

	// InvitationExpiresIn is the invitation TTL. Defaults to 48h.
	InvitationExpiresIn time.Duration

	// CancelPendingInvitationsOnReInvite picks the resend mechanics: when
	// true (the default) a resend cancels the pending record and issues a
	// fresh one under a new id; when false the pending record's expiry is
	// refreshed in place and its id stays stable. Embedders that need a
	// resend to keep referring to the original invitation id should set
	// this to false.
	CancelPendingInvitationsOnReInvite *bool

	// InvitationLimit caps outstanding pending invitations per inviter.
	InvitationLimit Limit

	Teams                TeamOptions
	OrganizationCreation OrganizationCreation
	OrganizationDeletion OrganizationDeletion
}

func (o Options) creatorRole() string {
	if o.CreatorRole == "" {
		return ac.RoleOwner
	}
	return o.CreatorRole
}

func (o Options) invitationTTL() time.Duration {
	if o.InvitationExpiresIn <= 0 {
		return DefaultInvitationTTL
	}
	return o.InvitationExpiresIn
}

func (o Options) cancelOnReInvite() bool {
	if o.CancelPendingInvitationsOnReInvite == nil {
		return true
	}
	return *o.CancelPendingInvitationsOnReInvite
}

// Bool is a convenience for the *bool option fields.
func Bool(v bool) *bool { return &v }
