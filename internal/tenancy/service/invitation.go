package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/notify"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
	"github.com/tenantkit/tenantkit/pkg/idx"
	"github.com/tenantkit/tenantkit/pkg/invitetoken"
	"github.com/tenantkit/tenantkit/pkg/slogx"
)

// InvitationService runs the invitation lifecycle state machine:
//
//	pending --accept--> accepted
//	pending --reject--> rejected
//	pending --cancel--> canceled
//
// Terminal states permit no further transitions; re-inviting a canceled,
// rejected or expired target always creates a new record. Racing
// transitions on the same invitation are decided by the store's
// compare-and-set status update: exactly one caller wins, the rest observe
// ErrInvalidState.
type InvitationService struct {
	Store    store.Store
	Registry *ac.Registry
	Identity IdentityProvider
	Notifier notify.Sender
	Tokens   *invitetoken.Signer

	// AcceptBaseURL is where accept links point, e.g. the embedder's
	// "/accept-invitation" page. The signed token rides in ?token=.
	AcceptBaseURL string

	Options Options
	Now     func() time.Time // Defaults to time.Now; injectable for tests
}

func (s *InvitationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type CreateInvitationParams struct {
	OrganizationID string
	Email          string
	Roles          []string // Defaults to [member]
	TeamID         string   // Optional; requires teams to be enabled
	InviterUserID  string

	// Resend permits acting on an existing pending invitation for the same
	// (organization, email) instead of failing with ErrAlreadyInvited.
	Resend bool
}

// Create issues (or re-issues) an invitation and sends the notification.
// The invitation row commits before the send; a delivery failure is
// returned to the caller with the created invitation, never swallowed.
func (s *InvitationService) Create(ctx context.Context, p CreateInvitationParams) (domain.Invitation, error) {
	log := slogx.FromContext(ctx)

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Email == "" {
		return domain.Invitation{}, fmt.Errorf("%w: email is required", ErrInvariantViolation)
	}

	org, err := s.Store.Organizations().GetOrganizationByID(ctx, p.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, ErrOrganizationNotFound
		}
		return domain.Invitation{}, err
	}

	// 1. The inviter must hold invitation:create in this organization.
	if _, err := requirePermission(ctx, s.Store, s.Registry, p.InviterUserID, org.ID,
		ac.Statements{ac.ResourceInvitation: {ac.ActionCreate}}); err != nil {
		return domain.Invitation{}, err
	}

	// 2. Granted roles must exist in the registry at evaluation time.
	if len(p.Roles) == 0 {
		p.Roles = []string{ac.RoleMember}
	}
	if err := validateRoles(s.Registry, p.Roles); err != nil {
		return domain.Invitation{}, err
	}

	// 3. Team assignment needs the feature on and a team in this org.
	if p.TeamID != "" {
		if err := s.validateInvitationTeam(ctx, org.ID, p.TeamID); err != nil {
			return domain.Invitation{}, err
		}
	}

	// 4. An email that already maps to a member cannot be invited.
	userID, err := s.Identity.UserIDByEmail(ctx, p.Email)
	if err != nil {
		return domain.Invitation{}, err
	}
	if userID != "" {
		_, err := s.Store.Members().GetMemberByUserAndOrganization(ctx, userID, org.ID)
		if err == nil {
			return domain.Invitation{}, fmt.Errorf("%w: %s", ErrAlreadyMember, p.Email)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, err
		}
	}

	// 5. Duplicate pending invitation policy.
	existing, err := s.Store.Invitations().GetPendingInvitationByEmail(ctx, org.ID, p.Email)
	switch {
	case err == nil:
		if !p.Resend {
			log.Warn("duplicate invitation rejected",
				slog.String("organization_id", org.ID),
				slog.String("email", p.Email),
			)
			return domain.Invitation{}, fmt.Errorf("%w: %s", ErrAlreadyInvited, p.Email)
		}
		if !s.Options.cancelOnReInvite() {
			// Refresh the pending record in place, keeping its id stable.
			return s.refresh(ctx, org, existing)
		}
		// Cancel the old record and fall through to issue a fresh one. If a
		// racing call already transitioned it, there is nothing to cancel.
		err := s.Store.Invitations().UpdateInvitationStatus(ctx, existing.ID,
			domain.InvitationPending, domain.InvitationCanceled)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, err
		}
		log.Debug("pending invitation canceled on re-invite",
			slog.String("invitation_id", existing.ID),
		)
	case errors.Is(err, store.ErrNotFound):
		// No pending invitation; proceed.
	default:
		return domain.Invitation{}, err
	}

	// 6. Outstanding-invitations cap per inviter.
	limit, capped, err := s.Options.InvitationLimit.value(ctx, p.InviterUserID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if capped {
		count, err := s.Store.Invitations().CountPendingInvitationsByInviter(ctx, p.InviterUserID)
		if err != nil {
			return domain.Invitation{}, err
		}
		if count >= limit {
			return domain.Invitation{}, fmt.Errorf("%w: invitation limit of %d reached", ErrLimitExceeded, limit)
		}
	}

	now := s.now()
	inv := domain.Invitation{
		ID:             idx.New().String(),
		Email:          p.Email,
		InviterID:      p.InviterUserID,
		OrganizationID: org.ID,
		Roles:          p.Roles,
		TeamID:         p.TeamID,
		Status:         domain.InvitationPending,
		ExpiresAt:      now.Add(s.Options.invitationTTL()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Invitations().CreateInvitation(ctx, inv)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race against a concurrent invite for the same email.
			return domain.Invitation{}, fmt.Errorf("%w: %s", ErrAlreadyInvited, p.Email)
		}
		log.Error("failed to create invitation", slog.Any("error", err))
		return domain.Invitation{}, err
	}

	log.Info("invitation created",
		slog.String("invitation_id", inv.ID),
		slog.String("organization_id", org.ID),
		slog.String("email", inv.Email),
		slog.Any("roles", inv.Roles),
		slog.Time("expires_at", inv.ExpiresAt),
	)

	if err := s.send(ctx, org, inv); err != nil {
		return inv, fmt.Errorf("invitation %s created but notification failed: %w", inv.ID, err)
	}
	return inv, nil
}

// refresh pushes out the expiry of a still-pending invitation and re-sends
// the notification.
func (s *InvitationService) refresh(ctx context.Context, org domain.Organization, inv domain.Invitation) (domain.Invitation, error) {
	log := slogx.FromContext(ctx)

	inv.ExpiresAt = s.now().Add(s.Options.invitationTTL())
	err := s.Store.Invitations().RefreshInvitationExpiry(ctx, inv.ID, inv.ExpiresAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Transitioned out from under us; the caller should re-invite.
			return domain.Invitation{}, fmt.Errorf("%w: invitation %s is no longer pending", ErrInvalidState, inv.ID)
		}
		return domain.Invitation{}, err
	}

	log.Info("invitation resent",
		slog.String("invitation_id", inv.ID),
		slog.Time("expires_at", inv.ExpiresAt),
	)

	if err := s.send(ctx, org, inv); err != nil {
		return inv, fmt.Errorf("invitation %s refreshed but notification failed: %w", inv.ID, err)
	}
	return inv, nil
}

// Accept redeems a pending invitation for the invited user, creating the
// membership and marking the invitation accepted in one transaction.
func (s *InvitationService) Accept(ctx context.Context, invitationID, acceptingUserID string) (domain.Member, error) {
	log := slogx.FromContext(ctx)

	inv, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return domain.Member{}, err
	}

	// Expiry is judged against wall-clock time at the moment of use and
	// takes precedence over the stored status: a deadline in the past fails
	// the same way on every attempt, whether or not a previous attempt, a
	// read or the sweeper already recorded the canceled marker.
	if inv.Expired(s.now()) {
		if inv.Status == domain.InvitationPending {
			s.expire(ctx, inv)
		}
		return domain.Member{}, fmt.Errorf("%w: invitation %s", ErrExpired, inv.ID)
	}

	if inv.Status != domain.InvitationPending {
		return domain.Member{}, fmt.Errorf("%w: invitation is %s", ErrInvalidState, inv.Status)
	}

	email, err := s.Identity.Email(ctx, acceptingUserID)
	if err != nil {
		return domain.Member{}, err
	}
	if !strings.EqualFold(email, inv.Email) {
		log.Warn("invitation acceptance attempted by wrong user",
			slog.String("invitation_id", inv.ID),
			slog.String("user_id", acceptingUserID),
		)
		return domain.Member{}, fmt.Errorf("%w: invitation was sent to a different address", ErrEmailMismatch)
	}

	// Capacity checks before the transition.
	limit, capped, err := s.Options.MembershipLimit.value(ctx, inv.OrganizationID)
	if err != nil {
		return domain.Member{}, err
	}
	if capped {
		count, err := s.Store.Members().CountMembersByOrganization(ctx, inv.OrganizationID)
		if err != nil {
			return domain.Member{}, err
		}
		if count >= limit {
			return domain.Member{}, fmt.Errorf("%w: membership limit of %d reached", ErrLimitExceeded, limit)
		}
	}
	if inv.TeamID != "" {
		if err := s.checkTeamCapacity(ctx, inv.TeamID); err != nil {
			return domain.Member{}, err
		}
	}

	member := domain.Member{
		ID:             idx.New().String(),
		UserID:         acceptingUserID,
		OrganizationID: inv.OrganizationID,
		Roles:          inv.Roles,
		TeamID:         inv.TeamID,
		CreatedAt:      s.now(),
	}

	// The status transition and the membership commit together: a lost race
	// on the CAS rolls the member back, so partial application is never
	// observable.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.Invitations().UpdateInvitationStatus(ctx, inv.ID,
			domain.InvitationPending, domain.InvitationAccepted)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: invitation is no longer pending", ErrInvalidState)
			}
			return err
		}

		if err := tx.Members().CreateMember(ctx, member); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("%w: user already belongs to the organization", ErrAlreadyMember)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Member{}, err
	}

	log.Info("invitation accepted",
		slog.String("invitation_id", inv.ID),
		slog.String("organization_id", inv.OrganizationID),
		slog.String("member_id", member.ID),
		slog.String("user_id", acceptingUserID),
	)
	return member, nil
}

// Reject declines a pending invitation. Only the invited user may reject.
func (s *InvitationService) Reject(ctx context.Context, invitationID, rejectingUserID string) error {
	inv, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return err
	}

	email, err := s.Identity.Email(ctx, rejectingUserID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(email, inv.Email) {
		return fmt.Errorf("%w: invitation was sent to a different address", ErrEmailMismatch)
	}

	return s.transition(ctx, inv, domain.InvitationRejected)
}

// Cancel withdraws a pending invitation. Requires invitation:cancel in the
// invitation's organization.
func (s *InvitationService) Cancel(ctx context.Context, invitationID, cancelerUserID string) error {
	inv, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return err
	}

	if _, err := requirePermission(ctx, s.Store, s.Registry, cancelerUserID, inv.OrganizationID,
		ac.Statements{ac.ResourceInvitation: {ac.ActionCancel}}); err != nil {
		return err
	}

	return s.transition(ctx, inv, domain.InvitationCanceled)
}

// Get returns an invitation. An expired pending invitation observed here is
// lazily transitioned to its canceled marker.
func (s *InvitationService) Get(ctx context.Context, invitationID string) (domain.Invitation, error) {
	inv, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}

	if inv.Status == domain.InvitationPending && inv.Expired(s.now()) {
		s.expire(ctx, inv)
		inv.Status = domain.InvitationCanceled
	}
	return inv, nil
}

// ListByOrganization returns the organization's invitations. Any member may
// list.
func (s *InvitationService) ListByOrganization(ctx context.Context, organizationID, actorUserID string) ([]domain.Invitation, error) {
	if _, err := requireMember(ctx, s.Store, actorUserID, organizationID); err != nil {
		return nil, err
	}
	return s.Store.Invitations().ListInvitationsByOrganization(ctx, organizationID)
}

// ListForUser returns the invitations addressed to the user's email across
// organizations.
func (s *InvitationService) ListForUser(ctx context.Context, userID string) ([]domain.Invitation, error) {
	email, err := s.Identity.Email(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Store.Invitations().ListInvitationsByEmail(ctx, strings.ToLower(email))
}

func (s *InvitationService) getInvitation(ctx context.Context, id string) (domain.Invitation, error) {
	inv, err := s.Store.Invitations().GetInvitationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Invitation{}, ErrInvitationNotFound
		}
		return domain.Invitation{}, err
	}
	return inv, nil
}

// transition performs a pending→to CAS. A second transition on the same
// invitation is not idempotent: it fails with ErrInvalidState.
func (s *InvitationService) transition(ctx context.Context, inv domain.Invitation, to domain.InvitationStatus) error {
	if inv.Status != domain.InvitationPending {
		return fmt.Errorf("%w: invitation is %s", ErrInvalidState, inv.Status)
	}

	err := s.Store.Invitations().UpdateInvitationStatus(ctx, inv.ID, domain.InvitationPending, to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: invitation is no longer pending", ErrInvalidState)
		}
		return err
	}

	slogx.FromContext(ctx).Info("invitation "+string(to),
		slog.String("invitation_id", inv.ID),
		slog.String("organization_id", inv.OrganizationID),
	)
	return nil
}

// expire lazily marks an expired pending invitation with its terminal
// canceled marker. Losing the CAS means someone else already moved it.
func (s *InvitationService) expire(ctx context.Context, inv domain.Invitation) {
	err := s.Store.Invitations().UpdateInvitationStatus(ctx, inv.ID,
		domain.InvitationPending, domain.InvitationCanceled)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Error("failed to mark invitation expired",
			slog.String("invitation_id", inv.ID),
			slog.Any("error", err),
		)
	}
}

func (s *InvitationService) validateInvitationTeam(ctx context.Context, organizationID, teamID string) error {
	if !s.Options.Teams.Enabled {
		return fmt.Errorf("%w: teams", ErrFeatureDisabled)
	}
	team, err := s.Store.Teams().GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	if team.OrganizationID != organizationID {
		return ErrTeamNotFound
	}
	return nil
}

func (s *InvitationService) checkTeamCapacity(ctx context.Context, teamID string) error {
	limit, capped, err := s.Options.Teams.MaximumMembersPerTeam.value(ctx, teamID)
	if err != nil {
		return err
	}
	if !capped {
		return nil
	}
	count, err := s.Store.Members().CountMembersByTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if count >= limit {
		return fmt.Errorf("%w: team member limit of %d reached", ErrLimitExceeded, limit)
	}
	return nil
}

// send builds the accept link and hands the notification to the sender.
func (s *InvitationService) send(ctx context.Context, org domain.Organization, inv domain.Invitation) error {
	link, err := s.acceptLink(inv)
	if err != nil {
		return err
	}

	return s.Notifier.SendInvitationEmail(ctx, notify.InvitationEmail{
		InvitationID:     inv.ID,
		Email:            inv.Email,
		InviterID:        inv.InviterID,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Roles:            inv.Roles,
		AcceptLink:       link,
		ExpiresAt:        inv.ExpiresAt,
	})
}

func (s *InvitationService) acceptLink(inv domain.Invitation) (string, error) {
	if s.Tokens == nil {
		return "", nil
	}

	token, err := s.Tokens.Sign(inv.ID, inv.Email, inv.OrganizationID, inv.ExpiresAt, s.now())
	if err != nil {
		return "", err
	}

	if s.AcceptBaseURL == "" {
		return token, nil
	}
	return s.AcceptBaseURL + "?token=" + url.QueryEscape(token), nil
}
