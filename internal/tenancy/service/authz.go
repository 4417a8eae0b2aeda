package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
)

// requireMember resolves the caller's membership in the organization.
func requireMember(ctx context.Context, st store.Store, userID, organizationID string) (domain.Member, error) {
	member, err := st.Members().GetMemberByUserAndOrganization(ctx, userID, organizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Member{}, ErrNotMember
		}
		return domain.Member{}, err
	}
	return member, nil
}

// requirePermission authorizes the caller against the registry using the
// union of their assigned roles. Requests outside the schema fail closed
// with ac.ErrUnknownPermission; a plain denial surfaces ErrPermissionDenied.
func requirePermission(
	ctx context.Context,
	st store.Store,
	registry *ac.Registry,
	userID, organizationID string,
	requested ac.Statements,
) (domain.Member, error) {
	member, err := requireMember(ctx, st, userID, organizationID)
	if err != nil {
		return domain.Member{}, err
	}

	ok, err := registry.HasPermission(member.Roles, requested)
	if err != nil {
		return domain.Member{}, err
	}
	if !ok {
		return domain.Member{}, fmt.Errorf("%w: %v", ErrPermissionDenied, requested)
	}
	return member, nil
}

// validateRoles checks every role name against the registry; unknown roles
// must never end up on a member row, they would fail permission checks.
func validateRoles(registry *ac.Registry, roles []string) error {
	for _, name := range roles {
		if _, ok := registry.Role(name); !ok {
			return fmt.Errorf("%w: %q", ac.ErrUnknownRole, name)
		}
	}
	return nil
}
