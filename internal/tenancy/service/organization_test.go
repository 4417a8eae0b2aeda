package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
)

func TestCreateOrganization(t *testing.T) {
	t.Parallel()

	t.Run("provisions creator membership with owner role", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "user-1", "one@example.com")

		members, err := env.orgs.ListMembers(context.Background(), org.ID, "user-1")
		require.NoError(t, err)
		require.Len(t, members, 1)
		require.Equal(t, "user-1", members[0].UserID)
		require.Equal(t, []string{ac.RoleOwner}, members[0].Roles)
	})

	t.Run("custom creator role", func(t *testing.T) {
		env := newTestEnv(t, Options{CreatorRole: ac.RoleAdmin})
		org := env.createOrg(t, "acme", "user-1", "one@example.com")

		members, err := env.orgs.ListMembers(context.Background(), org.ID, "user-1")
		require.NoError(t, err)
		require.Equal(t, []string{ac.RoleAdmin}, members[0].Roles)
	})

	t.Run("unknown creator role fails before anything persists", func(t *testing.T) {
		env := newTestEnv(t, Options{CreatorRole: "sultan"})
		_, err := env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Acme", Slug: "acme", CreatorUserID: "user-1",
		})
		require.ErrorIs(t, err, ac.ErrUnknownRole)

		_, err = env.orgs.Get(context.Background(), "acme")
		require.ErrorIs(t, err, ErrOrganizationNotFound)
	})

	t.Run("slug collision", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.createOrg(t, "acme", "user-1", "one@example.com")

		_, err := env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Other Acme", Slug: "acme", CreatorUserID: "user-2",
		})
		require.ErrorIs(t, err, ErrSlugTaken)
	})

	t.Run("creation disabled", func(t *testing.T) {
		env := newTestEnv(t, Options{
			OrganizationCreation: OrganizationCreation{Disabled: true},
		})
		_, err := env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Acme", Slug: "acme", CreatorUserID: "user-1",
		})
		require.ErrorIs(t, err, ErrFeatureDisabled)
	})

	t.Run("creation gate denies per user", func(t *testing.T) {
		env := newTestEnv(t, Options{
			AllowUserToCreateOrganization: AllowFunc(func(_ context.Context, userID string) (bool, error) {
				return userID == "user-vip", nil
			}),
		})

		_, err := env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Acme", Slug: "acme", CreatorUserID: "user-1",
		})
		require.ErrorIs(t, err, ErrPermissionDenied)

		_, err = env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Acme", Slug: "acme", CreatorUserID: "user-vip",
		})
		require.NoError(t, err)
	})

	t.Run("organization limit counts memberships", func(t *testing.T) {
		env := newTestEnv(t, Options{OrganizationLimit: FixedLimit(1)})
		env.createOrg(t, "first", "user-1", "one@example.com")

		_, err := env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Second", Slug: "second", CreatorUserID: "user-1",
		})
		require.ErrorIs(t, err, ErrLimitExceeded)
	})

	t.Run("beforeCreate hook can rewrite metadata", func(t *testing.T) {
		env := newTestEnv(t, Options{
			OrganizationCreation: OrganizationCreation{
				BeforeCreate: func(_ context.Context, org *domain.Organization) error {
					if org.Metadata == nil {
						org.Metadata = make(map[string]string)
					}
					org.Metadata["plan"] = "trial"
					return nil
				},
			},
		})
		org := env.createOrg(t, "acme", "user-1", "one@example.com")

		got, err := env.orgs.Get(context.Background(), org.ID)
		require.NoError(t, err)
		require.Equal(t, "trial", got.Metadata["plan"])
	})

	t.Run("beforeCreate hook abort leaves nothing behind", func(t *testing.T) {
		boom := errors.New("not on my watch")
		env := newTestEnv(t, Options{
			OrganizationCreation: OrganizationCreation{
				BeforeCreate: func(_ context.Context, _ *domain.Organization) error { return boom },
			},
		})

		_, err := env.orgs.Create(context.Background(), CreateOrganizationParams{
			Name: "Acme", Slug: "acme", CreatorUserID: "user-1",
		})
		require.ErrorIs(t, err, boom)

		_, err = env.orgs.Get(context.Background(), "acme")
		require.ErrorIs(t, err, ErrOrganizationNotFound)
	})

	t.Run("afterCreate failure does not roll back", func(t *testing.T) {
		env := newTestEnv(t, Options{
			OrganizationCreation: OrganizationCreation{
				AfterCreate: func(_ context.Context, _ domain.Organization, _ domain.Member) error {
					return errors.New("webhook down")
				},
			},
		})
		org := env.createOrg(t, "acme", "user-1", "one@example.com")

		got, err := env.orgs.Get(context.Background(), org.ID)
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)
	})
}

func TestUpdateOrganization(t *testing.T) {
	t.Parallel()

	t.Run("owner may update, plain member may not", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		env.joinAs(t, org, "owner-1", "user-2", "two@example.com", []string{ac.RoleMember})

		name := "Acme Inc"
		_, err := env.orgs.Update(context.Background(), UpdateOrganizationParams{
			OrganizationID: org.ID, ActorUserID: "user-2", Name: &name,
		})
		require.ErrorIs(t, err, ErrPermissionDenied)

		updated, err := env.orgs.Update(context.Background(), UpdateOrganizationParams{
			OrganizationID: org.ID, ActorUserID: "owner-1", Name: &name,
		})
		require.NoError(t, err)
		require.Equal(t, "Acme Inc", updated.Name)
		require.Equal(t, "acme", updated.Slug)
	})

	t.Run("non-member cannot update", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")

		name := "Acme Inc"
		_, err := env.orgs.Update(context.Background(), UpdateOrganizationParams{
			OrganizationID: org.ID, ActorUserID: "stranger", Name: &name,
		})
		require.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("slug change collides", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.createOrg(t, "first", "owner-1", "one@example.com")
		org := env.createOrg(t, "second", "owner-2", "two@example.com")

		slug := "first"
		_, err := env.orgs.Update(context.Background(), UpdateOrganizationParams{
			OrganizationID: org.ID, ActorUserID: "owner-2", Slug: &slug,
		})
		require.ErrorIs(t, err, ErrSlugTaken)
	})
}

func TestDeleteOrganization(t *testing.T) {
	t.Parallel()

	t.Run("cascades to members invitations and teams", func(t *testing.T) {
		env := newTestEnv(t, Options{Teams: TeamOptions{Enabled: true, AllowRemovingAllTeams: true}})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		member := env.joinAs(t, org, "owner-1", "user-2", "two@example.com", []string{ac.RoleMember})

		_, err := env.teams.Create(context.Background(), org.ID, "core", "owner-1")
		require.NoError(t, err)
		inv, err := env.invites.Create(context.Background(), CreateInvitationParams{
			OrganizationID: org.ID, Email: "three@example.com", InviterUserID: "owner-1",
		})
		require.NoError(t, err)

		require.NoError(t, env.orgs.Delete(context.Background(), org.ID, "owner-1"))

		_, err = env.orgs.Get(context.Background(), org.ID)
		require.ErrorIs(t, err, ErrOrganizationNotFound)
		_, err = env.store.Members().GetMemberByID(context.Background(), member.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = env.store.Invitations().GetInvitationByID(context.Background(), inv.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		teams, err := env.store.Teams().ListTeamsByOrganization(context.Background(), org.ID)
		require.NoError(t, err)
		require.Empty(t, teams)
	})

	t.Run("only organization:delete holders may delete", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		env.joinAs(t, org, "owner-1", "admin-1", "admin@example.com", []string{ac.RoleAdmin})

		err := env.orgs.Delete(context.Background(), org.ID, "admin-1")
		require.ErrorIs(t, err, ErrPermissionDenied)

		require.NoError(t, env.orgs.Delete(context.Background(), org.ID, "owner-1"))
	})

	t.Run("deletion disabled", func(t *testing.T) {
		env := newTestEnv(t, Options{
			OrganizationDeletion: OrganizationDeletion{Disabled: true},
		})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")

		err := env.orgs.Delete(context.Background(), org.ID, "owner-1")
		require.ErrorIs(t, err, ErrFeatureDisabled)
	})

	t.Run("beforeDelete hook can veto", func(t *testing.T) {
		veto := errors.New("billing outstanding")
		env := newTestEnv(t, Options{
			OrganizationDeletion: OrganizationDeletion{
				BeforeDelete: func(_ context.Context, _ domain.Organization) error { return veto },
			},
		})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")

		err := env.orgs.Delete(context.Background(), org.ID, "owner-1")
		require.ErrorIs(t, err, veto)

		_, err = env.orgs.Get(context.Background(), org.ID)
		require.NoError(t, err)
	})
}

func TestActiveOrganization(t *testing.T) {
	t.Parallel()

	t.Run("set by slug and read back", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "user-1", "one@example.com")

		got, err := env.orgs.SetActiveOrganization(context.Background(), "user-1", "acme")
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)

		active, err := env.orgs.ActiveOrganization(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, org.ID, active)
	})

	t.Run("requires membership", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		env.createOrg(t, "acme", "user-1", "one@example.com")

		_, err := env.orgs.SetActiveOrganization(context.Background(), "stranger", "acme")
		require.ErrorIs(t, err, ErrNotMember)
	})
}

func TestMemberManagement(t *testing.T) {
	t.Parallel()

	t.Run("list requires membership", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")

		_, err := env.orgs.ListMembers(context.Background(), org.ID, "stranger")
		require.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("role update requires member:update", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		target := env.joinAs(t, org, "owner-1", "user-2", "two@example.com", []string{ac.RoleMember})
		env.joinAs(t, org, "owner-1", "user-3", "three@example.com", []string{ac.RoleMember})

		_, err := env.orgs.UpdateMemberRoles(context.Background(), org.ID, target.ID,
			[]string{ac.RoleAdmin}, "user-3")
		require.ErrorIs(t, err, ErrPermissionDenied)

		updated, err := env.orgs.UpdateMemberRoles(context.Background(), org.ID, target.ID,
			[]string{ac.RoleAdmin}, "owner-1")
		require.NoError(t, err)
		require.Equal(t, []string{ac.RoleAdmin}, updated.Roles)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		target := env.joinAs(t, org, "owner-1", "user-2", "two@example.com", []string{ac.RoleMember})

		_, err := env.orgs.UpdateMemberRoles(context.Background(), org.ID, target.ID,
			[]string{"grand-vizier"}, "owner-1")
		require.ErrorIs(t, err, ac.ErrUnknownRole)
	})

	t.Run("last owner cannot be demoted", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")

		members, err := env.orgs.ListMembers(context.Background(), org.ID, "owner-1")
		require.NoError(t, err)

		_, err = env.orgs.UpdateMemberRoles(context.Background(), org.ID, members[0].ID,
			[]string{ac.RoleAdmin}, "owner-1")
		require.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("members may remove themselves", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		member := env.joinAs(t, org, "owner-1", "user-2", "two@example.com", []string{ac.RoleMember})

		require.NoError(t, env.orgs.RemoveMember(context.Background(), org.ID, member.ID, "user-2"))

		members, err := env.orgs.ListMembers(context.Background(), org.ID, "owner-1")
		require.NoError(t, err)
		require.Len(t, members, 1)
	})

	t.Run("removing others requires member:delete", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")
		target := env.joinAs(t, org, "owner-1", "user-2", "two@example.com", []string{ac.RoleMember})
		env.joinAs(t, org, "owner-1", "user-3", "three@example.com", []string{ac.RoleMember})

		err := env.orgs.RemoveMember(context.Background(), org.ID, target.ID, "user-3")
		require.ErrorIs(t, err, ErrPermissionDenied)

		require.NoError(t, env.orgs.RemoveMember(context.Background(), org.ID, target.ID, "owner-1"))
	})

	t.Run("last owner cannot leave", func(t *testing.T) {
		env := newTestEnv(t, Options{})
		org := env.createOrg(t, "acme", "owner-1", "owner@example.com")

		members, err := env.orgs.ListMembers(context.Background(), org.ID, "owner-1")
		require.NoError(t, err)

		err = env.orgs.RemoveMember(context.Background(), org.ID, members[0].ID, "owner-1")
		require.ErrorIs(t, err, ErrInvariantViolation)
	})
}
