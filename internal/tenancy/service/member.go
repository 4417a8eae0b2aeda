package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
	"github.com/tenantkit/tenantkit/pkg/slogx"
)

// Membership management. Members are created through organization creation
// and invitation acceptance; these operations cover the rest of their
// lifecycle.

// ListMembers returns the organization's members. Any member may list.
func (s *OrganizationService) ListMembers(ctx context.Context, organizationID, actorUserID string) ([]domain.Member, error) {
	if _, err := requireMember(ctx, s.Store, actorUserID, organizationID); err != nil {
		return nil, err
	}
	return s.Store.Members().ListMembersByOrganization(ctx, organizationID)
}

// UpdateMemberRoles replaces a member's role set. Requires member:update.
// An organization can never lose its last owner.
func (s *OrganizationService) UpdateMemberRoles(ctx context.Context, organizationID, memberID string, roles []string, actorUserID string) (domain.Member, error) {
	log := slogx.FromContext(ctx)

	if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
		ac.Statements{ac.ResourceMember: {ac.ActionUpdate}}); err != nil {
		return domain.Member{}, err
	}

	if len(roles) == 0 {
		return domain.Member{}, fmt.Errorf("%w: a member needs at least one role", ErrInvariantViolation)
	}
	if err := validateRoles(s.Registry, roles); err != nil {
		return domain.Member{}, err
	}

	member, err := s.memberInOrganization(ctx, organizationID, memberID)
	if err != nil {
		return domain.Member{}, err
	}

	// Demoting the only owner would leave the organization unmanageable.
	losesOwner := member.HasRole(ac.RoleOwner) && !containsRole(roles, ac.RoleOwner)
	if losesOwner {
		if err := s.requireAnotherOwner(ctx, organizationID, member.ID); err != nil {
			return domain.Member{}, err
		}
	}

	if err := s.Store.Members().UpdateMemberRoles(ctx, member.ID, roles); err != nil {
		return domain.Member{}, err
	}
	member.Roles = roles

	log.Info("member roles updated",
		slog.String("organization_id", organizationID),
		slog.String("member_id", member.ID),
		slog.Any("roles", roles),
	)
	return member, nil
}

// RemoveMember deletes a membership. Requires member:delete, except that a
// member may always remove themselves (leave). The last owner cannot go.
func (s *OrganizationService) RemoveMember(ctx context.Context, organizationID, memberID, actorUserID string) error {
	log := slogx.FromContext(ctx)

	member, err := s.memberInOrganization(ctx, organizationID, memberID)
	if err != nil {
		return err
	}

	if member.UserID != actorUserID {
		if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
			ac.Statements{ac.ResourceMember: {ac.ActionDelete}}); err != nil {
			return err
		}
	}

	if member.HasRole(ac.RoleOwner) {
		if err := s.requireAnotherOwner(ctx, organizationID, member.ID); err != nil {
			return err
		}
	}

	if err := s.Store.Members().DeleteMember(ctx, member.ID); err != nil {
		return err
	}

	log.Info("member removed",
		slog.String("organization_id", organizationID),
		slog.String("member_id", member.ID),
		slog.String("user_id", member.UserID),
	)
	return nil
}

// memberInOrganization loads a member and checks it belongs to the
// organization the caller named.
func (s *OrganizationService) memberInOrganization(ctx context.Context, organizationID, memberID string) (domain.Member, error) {
	member, err := s.Store.Members().GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Member{}, ErrMemberNotFound
		}
		return domain.Member{}, err
	}
	if member.OrganizationID != organizationID {
		return domain.Member{}, ErrMemberNotFound
	}
	return member, nil
}

// requireAnotherOwner fails unless some other member of the organization
// also holds the owner role.
func (s *OrganizationService) requireAnotherOwner(ctx context.Context, organizationID, excludeMemberID string) error {
	members, err := s.Store.Members().ListMembersByOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.ID != excludeMemberID && m.HasRole(ac.RoleOwner) {
			return nil
		}
	}
	return fmt.Errorf("%w: organization would be left without an owner", ErrInvariantViolation)
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
