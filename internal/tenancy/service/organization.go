package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
	"github.com/tenantkit/tenantkit/pkg/idx"
	"github.com/tenantkit/tenantkit/pkg/slogx"
)

// OrganizationService owns the organization lifecycle: creation with gates,
// limits and hooks, updates, cascading deletion, membership management and
// the session-scoped active-organization pointer.
type OrganizationService struct {
	Store    store.Store
	Registry *ac.Registry
	Sessions SessionProvider
	Options  Options
	Now      func() time.Time // Defaults to time.Now; injectable for tests
}

func (s *OrganizationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type CreateOrganizationParams struct {
	Name          string
	Slug          string
	Logo          string
	Metadata      map[string]string
	CreatorUserID string
}

// Create provisions an organization and its creator membership atomically.
func (s *OrganizationService) Create(ctx context.Context, p CreateOrganizationParams) (domain.Organization, error) {
	log := slogx.FromContext(ctx)

	if s.Options.OrganizationCreation.Disabled {
		return domain.Organization{}, fmt.Errorf("%w: organization creation", ErrFeatureDisabled)
	}

	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	if p.Name == "" || p.Slug == "" {
		return domain.Organization{}, fmt.Errorf("%w: name and slug are required", ErrInvariantViolation)
	}

	// 1. Creation gate: constant or computed per user.
	allowed, err := s.Options.AllowUserToCreateOrganization.allowed(ctx, p.CreatorUserID)
	if err != nil {
		return domain.Organization{}, err
	}
	if !allowed {
		log.Warn("organization creation denied by gate",
			slog.String("user_id", p.CreatorUserID),
		)
		return domain.Organization{}, fmt.Errorf("%w: user may not create organizations", ErrPermissionDenied)
	}

	// 2. Per-user organization cap, counted as memberships held.
	limit, capped, err := s.Options.OrganizationLimit.value(ctx, p.CreatorUserID)
	if err != nil {
		return domain.Organization{}, err
	}
	if capped {
		count, err := s.Store.Members().CountMembershipsByUser(ctx, p.CreatorUserID)
		if err != nil {
			return domain.Organization{}, err
		}
		if count >= limit {
			log.Warn("organization limit reached",
				slog.String("user_id", p.CreatorUserID),
				slog.Int("limit", limit),
			)
			return domain.Organization{}, fmt.Errorf("%w: organization limit of %d reached", ErrLimitExceeded, limit)
		}
	}

	creatorRole := s.Options.creatorRole()
	if err := validateRoles(s.Registry, []string{creatorRole}); err != nil {
		return domain.Organization{}, err
	}

	org := domain.Organization{
		ID:        idx.New().String(),
		Name:      p.Name,
		Slug:      p.Slug,
		Logo:      p.Logo,
		Metadata:  p.Metadata,
		CreatedAt: s.now(),
	}

	// 3. BeforeCreate fires ahead of persistence: it may rewrite the payload
	// (metadata included) or abort, leaving nothing behind.
	if hook := s.Options.OrganizationCreation.BeforeCreate; hook != nil {
		if err := hook(ctx, &org); err != nil {
			log.Warn("organization beforeCreate hook aborted creation",
				slog.String("slug", org.Slug),
				slog.Any("error", err),
			)
			return domain.Organization{}, err
		}
	}

	// 4. Organization and creator membership commit together.
	creator := domain.Member{
		ID:             idx.New().String(),
		UserID:         p.CreatorUserID,
		OrganizationID: org.ID,
		Roles:          []string{creatorRole},
		CreatedAt:      org.CreatedAt,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Organizations().CreateOrganization(ctx, org); err != nil {
			return err
		}
		return tx.Members().CreateMember(ctx, creator)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Organization{}, fmt.Errorf("%w: %q", ErrSlugTaken, org.Slug)
		}
		log.Error("failed to create organization", slog.Any("error", err))
		return domain.Organization{}, err
	}

	// 5. AfterCreate fires after commit. Failures are reported, never
	// rolled back: the organization is already visible.
	if hook := s.Options.OrganizationCreation.AfterCreate; hook != nil {
		if err := hook(ctx, org, creator); err != nil {
			log.Error("organization afterCreate hook failed",
				slog.String("organization_id", org.ID),
				slog.Any("error", err),
			)
		}
	}

	log.Info("organization created",
		slog.String("organization_id", org.ID),
		slog.String("slug", org.Slug),
		slog.String("creator_user_id", p.CreatorUserID),
		slog.String("creator_role", creatorRole),
	)

	return org, nil
}

type UpdateOrganizationParams struct {
	OrganizationID string
	ActorUserID    string

	// Nil fields are left unchanged.
	Name     *string
	Slug     *string
	Logo     *string
	Metadata map[string]string
}

// Update applies a partial update. Requires organization:update.
func (s *OrganizationService) Update(ctx context.Context, p UpdateOrganizationParams) (domain.Organization, error) {
	log := slogx.FromContext(ctx)

	_, err := requirePermission(ctx, s.Store, s.Registry, p.ActorUserID, p.OrganizationID,
		ac.Statements{ac.ResourceOrganization: {ac.ActionUpdate}})
	if err != nil {
		return domain.Organization{}, err
	}

	org, err := s.Store.Organizations().GetOrganizationByID(ctx, p.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Organization{}, ErrOrganizationNotFound
		}
		return domain.Organization{}, err
	}

	if p.Name != nil {
		org.Name = *p.Name
	}
	if p.Slug != nil {
		org.Slug = strings.ToLower(strings.TrimSpace(*p.Slug))
	}
	if p.Logo != nil {
		org.Logo = *p.Logo
	}
	if p.Metadata != nil {
		org.Metadata = p.Metadata
	}
	if org.Name == "" || org.Slug == "" {
		return domain.Organization{}, fmt.Errorf("%w: name and slug are required", ErrInvariantViolation)
	}

	if err := s.Store.Organizations().UpdateOrganization(ctx, org); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Organization{}, fmt.Errorf("%w: %q", ErrSlugTaken, org.Slug)
		}
		return domain.Organization{}, err
	}

	log.Info("organization updated", slog.String("organization_id", org.ID))
	return org, nil
}

// Delete removes the organization and, through the schema's cascades, all
// of its members, invitations and teams in one transaction.
func (s *OrganizationService) Delete(ctx context.Context, organizationID, actorUserID string) error {
	log := slogx.FromContext(ctx)

	if s.Options.OrganizationDeletion.Disabled {
		return fmt.Errorf("%w: organization deletion", ErrFeatureDisabled)
	}

	org, err := s.Store.Organizations().GetOrganizationByID(ctx, organizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrganizationNotFound
		}
		return err
	}

	if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
		ac.Statements{ac.ResourceOrganization: {ac.ActionDelete}}); err != nil {
		return err
	}

	if hook := s.Options.OrganizationDeletion.BeforeDelete; hook != nil {
		if err := hook(ctx, org); err != nil {
			log.Warn("organization beforeDelete hook aborted deletion",
				slog.String("organization_id", org.ID),
				slog.Any("error", err),
			)
			return err
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Organizations().DeleteOrganization(ctx, organizationID)
	})
	if err != nil {
		log.Error("failed to delete organization",
			slog.String("organization_id", organizationID),
			slog.Any("error", err),
		)
		return err
	}

	if hook := s.Options.OrganizationDeletion.AfterDelete; hook != nil {
		if err := hook(ctx, org); err != nil {
			log.Error("organization afterDelete hook failed",
				slog.String("organization_id", org.ID),
				slog.Any("error", err),
			)
		}
	}

	log.Info("organization deleted",
		slog.String("organization_id", org.ID),
		slog.String("slug", org.Slug),
	)
	return nil
}

// Get resolves an organization by id first, then slug.
func (s *OrganizationService) Get(ctx context.Context, idOrSlug string) (domain.Organization, error) {
	org, err := s.Store.Organizations().GetOrganizationByID(ctx, idOrSlug)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Organization{}, err
	}

	org, err = s.Store.Organizations().GetOrganizationBySlug(ctx, idOrSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Organization{}, ErrOrganizationNotFound
		}
		return domain.Organization{}, err
	}
	return org, nil
}

// List returns the organizations the user belongs to.
func (s *OrganizationService) List(ctx context.Context, userID string) ([]domain.Organization, error) {
	return s.Store.Organizations().ListOrganizationsByUser(ctx, userID)
}

// SetActiveOrganization validates membership and moves the session's
// active-organization pointer. The session store persists it.
func (s *OrganizationService) SetActiveOrganization(ctx context.Context, userID, slugOrID string) (domain.Organization, error) {
	org, err := s.Get(ctx, slugOrID)
	if err != nil {
		return domain.Organization{}, err
	}

	if _, err := requireMember(ctx, s.Store, userID, org.ID); err != nil {
		return domain.Organization{}, err
	}

	if err := s.Sessions.SetActiveOrganization(ctx, userID, org.ID); err != nil {
		return domain.Organization{}, err
	}

	slogx.FromContext(ctx).Debug("active organization set",
		slog.String("user_id", userID),
		slog.String("organization_id", org.ID),
	)
	return org, nil
}

// ActiveOrganization reads the session pointer back, or "" when none.
func (s *OrganizationService) ActiveOrganization(ctx context.Context, userID string) (string, error) {
	return s.Sessions.ActiveOrganization(ctx, userID)
}
