package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
	"github.com/tenantkit/tenantkit/pkg/idx"
	"github.com/tenantkit/tenantkit/pkg/slogx"
)

// TeamService manages the optional team sub-grouping inside organizations.
// Every entry point fails with ErrFeatureDisabled unless teams are enabled
// in Options.
type TeamService struct {
	Store    store.Store
	Registry *ac.Registry
	Options  Options
	Now      func() time.Time // Defaults to time.Now; injectable for tests
}

func (s *TeamService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *TeamService) enabled() error {
	if !s.Options.Teams.Enabled {
		return fmt.Errorf("%w: teams", ErrFeatureDisabled)
	}
	return nil
}

// Create adds a team to the organization. Requires team:create and respects
// the per-organization team cap.
func (s *TeamService) Create(ctx context.Context, organizationID, name, actorUserID string) (domain.Team, error) {
	log := slogx.FromContext(ctx)

	if err := s.enabled(); err != nil {
		return domain.Team{}, err
	}
	if name == "" {
		return domain.Team{}, fmt.Errorf("%w: team name is required", ErrInvariantViolation)
	}

	if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
		ac.Statements{ac.ResourceTeam: {ac.ActionCreate}}); err != nil {
		return domain.Team{}, err
	}

	limit, capped, err := s.Options.Teams.MaximumTeams.value(ctx, organizationID)
	if err != nil {
		return domain.Team{}, err
	}
	if capped {
		count, err := s.Store.Teams().CountTeamsByOrganization(ctx, organizationID)
		if err != nil {
			return domain.Team{}, err
		}
		if count >= limit {
			return domain.Team{}, fmt.Errorf("%w: team limit of %d reached", ErrLimitExceeded, limit)
		}
	}

	now := s.now()
	team := domain.Team{
		ID:             idx.New().String(),
		Name:           name,
		OrganizationID: organizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.Teams().CreateTeam(ctx, team); err != nil {
		return domain.Team{}, err
	}

	log.Info("team created",
		slog.String("organization_id", organizationID),
		slog.String("team_id", team.ID),
		slog.String("name", team.Name),
	)
	return team, nil
}

// Rename changes a team's name. Requires team:update.
func (s *TeamService) Rename(ctx context.Context, organizationID, teamID, name, actorUserID string) (domain.Team, error) {
	if err := s.enabled(); err != nil {
		return domain.Team{}, err
	}
	if name == "" {
		return domain.Team{}, fmt.Errorf("%w: team name is required", ErrInvariantViolation)
	}

	if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
		ac.Statements{ac.ResourceTeam: {ac.ActionUpdate}}); err != nil {
		return domain.Team{}, err
	}

	team, err := s.teamInOrganization(ctx, organizationID, teamID)
	if err != nil {
		return domain.Team{}, err
	}

	team.Name = name
	team.UpdatedAt = s.now()
	if err := s.Store.Teams().UpdateTeamName(ctx, team.ID, team.Name, team.UpdatedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Team{}, ErrTeamNotFound
		}
		return domain.Team{}, err
	}

	slogx.FromContext(ctx).Info("team renamed",
		slog.String("team_id", team.ID),
		slog.String("name", team.Name),
	)
	return team, nil
}

// Delete removes a team. Requires team:delete. Member assignments to the
// team are cleared, the memberships themselves survive. Unless configured
// otherwise the organization's last team cannot be removed.
func (s *TeamService) Delete(ctx context.Context, organizationID, teamID, actorUserID string) error {
	log := slogx.FromContext(ctx)

	if err := s.enabled(); err != nil {
		return err
	}

	if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
		ac.Statements{ac.ResourceTeam: {ac.ActionDelete}}); err != nil {
		return err
	}

	team, err := s.teamInOrganization(ctx, organizationID, teamID)
	if err != nil {
		return err
	}

	if !s.Options.Teams.AllowRemovingAllTeams {
		count, err := s.Store.Teams().CountTeamsByOrganization(ctx, organizationID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return fmt.Errorf("%w: the last team cannot be removed", ErrInvariantViolation)
		}
	}

	if err := s.Store.Teams().DeleteTeam(ctx, team.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTeamNotFound
		}
		return err
	}

	log.Info("team deleted",
		slog.String("organization_id", organizationID),
		slog.String("team_id", team.ID),
	)
	return nil
}

// Get returns a team in the organization. Any member may read.
func (s *TeamService) Get(ctx context.Context, organizationID, teamID, actorUserID string) (domain.Team, error) {
	if err := s.enabled(); err != nil {
		return domain.Team{}, err
	}
	if _, err := requireMember(ctx, s.Store, actorUserID, organizationID); err != nil {
		return domain.Team{}, err
	}
	return s.teamInOrganization(ctx, organizationID, teamID)
}

// List returns the organization's teams. Any member may list.
func (s *TeamService) List(ctx context.Context, organizationID, actorUserID string) ([]domain.Team, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.Store, actorUserID, organizationID); err != nil {
		return nil, err
	}
	return s.Store.Teams().ListTeamsByOrganization(ctx, organizationID)
}

// AssignMember moves a member onto a team, or with an empty teamID off any
// team. Requires member:update and respects the members-per-team cap.
func (s *TeamService) AssignMember(ctx context.Context, organizationID, memberID, teamID, actorUserID string) error {
	log := slogx.FromContext(ctx)

	if err := s.enabled(); err != nil {
		return err
	}

	if _, err := requirePermission(ctx, s.Store, s.Registry, actorUserID, organizationID,
		ac.Statements{ac.ResourceMember: {ac.ActionUpdate}}); err != nil {
		return err
	}

	member, err := s.Store.Members().GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	if member.OrganizationID != organizationID {
		return ErrMemberNotFound
	}

	if teamID != "" {
		if _, err := s.teamInOrganization(ctx, organizationID, teamID); err != nil {
			return err
		}
		if member.TeamID != teamID {
			if err := s.checkCapacity(ctx, teamID); err != nil {
				return err
			}
		}
	}

	if err := s.Store.Members().SetMemberTeam(ctx, member.ID, teamID); err != nil {
		return err
	}

	log.Info("member team assignment changed",
		slog.String("organization_id", organizationID),
		slog.String("member_id", member.ID),
		slog.String("team_id", teamID),
	)
	return nil
}

func (s *TeamService) checkCapacity(ctx context.Context, teamID string) error {
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

func (s *TeamService) teamInOrganization(ctx context.Context, organizationID, teamID string) (domain.Team, error) {
	team, err := s.Store.Teams().GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Team{}, ErrTeamNotFound
		}
		return domain.Team{}, err
	}
	if team.OrganizationID != organizationID {
		return domain.Team{}, ErrTeamNotFound
	}
	return team, nil
}
