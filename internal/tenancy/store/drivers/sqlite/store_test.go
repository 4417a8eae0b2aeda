package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
	"github.com/tenantkit/tenantkit/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedOrganization(t *testing.T, st *Store, slug string) domain.Organization {
	t.Helper()
	org := domain.Organization{
		ID:        idx.New().String(),
		Name:      slug,
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.Organizations().CreateOrganization(context.Background(), org))
	return org
}

func seedInvitation(t *testing.T, st *Store, orgID, email string) domain.Invitation {
	t.Helper()
	now := time.Now().UTC()
	inv := domain.Invitation{
		ID:             idx.New().String(),
		Email:          email,
		InviterID:      "inviter-1",
		OrganizationID: orgID,
		Roles:          []string{"member"},
		Status:         domain.InvitationPending,
		ExpiresAt:      now.Add(48 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.Invitations().CreateInvitation(context.Background(), inv))
	return inv
}

func TestOrganizationSlugUnique(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	seedOrganization(t, st, "acme")

	err := st.Organizations().CreateOrganization(ctx, domain.Organization{
		ID: idx.New().String(), Name: "Other", Slug: "acme", CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestOrganizationMetadataRoundTrip(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	org := domain.Organization{
		ID:        idx.New().String(),
		Name:      "Acme",
		Slug:      "acme",
		Logo:      "https://cdn.example.com/logo.png",
		Metadata:  map[string]string{"plan": "pro", "region": "apac"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.Organizations().CreateOrganization(ctx, org))

	got, err := st.Organizations().GetOrganizationBySlug(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, org.Logo, got.Logo)
	require.Equal(t, org.Metadata, got.Metadata)
}

func TestMemberUniquePerOrganization(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")

	first := domain.Member{
		ID: idx.New().String(), UserID: "user-1", OrganizationID: org.ID,
		Roles: []string{"owner"}, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.Members().CreateMember(ctx, first))

	dup := first
	dup.ID = idx.New().String()
	err := st.Members().CreateMember(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestMemberRolesRoundTrip(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")

	member := domain.Member{
		ID: idx.New().String(), UserID: "user-1", OrganizationID: org.ID,
		Roles: []string{"owner", "admin"}, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.Members().CreateMember(ctx, member))

	got, err := st.Members().GetMemberByUserAndOrganization(ctx, "user-1", org.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"owner", "admin"}, got.Roles)

	require.NoError(t, st.Members().UpdateMemberRoles(ctx, member.ID, []string{"member"}))
	got, err = st.Members().GetMemberByID(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"member"}, got.Roles)
}

func TestInvitationStatusCompareAndSet(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")
	inv := seedInvitation(t, st, org.ID, "new@example.com")

	err := st.Invitations().UpdateInvitationStatus(ctx, inv.ID,
		domain.InvitationPending, domain.InvitationAccepted)
	require.NoError(t, err)

	// The invitation left pending, so a second transition changes nothing.
	err = st.Invitations().UpdateInvitationStatus(ctx, inv.ID,
		domain.InvitationPending, domain.InvitationCanceled)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationAccepted, got.Status)
}

func TestInvitationOnePendingPerEmail(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")
	inv := seedInvitation(t, st, org.ID, "new@example.com")

	second := inv
	second.ID = idx.New().String()
	err := st.Invitations().CreateInvitation(ctx, second)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Once the first leaves pending, a new pending invitation is allowed.
	require.NoError(t, st.Invitations().UpdateInvitationStatus(ctx, inv.ID,
		domain.InvitationPending, domain.InvitationCanceled))
	require.NoError(t, st.Invitations().CreateInvitation(ctx, second))
}

func TestInvitationRefreshOnlyWhilePending(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")
	inv := seedInvitation(t, st, org.ID, "new@example.com")

	later := time.Now().UTC().Add(96 * time.Hour)
	require.NoError(t, st.Invitations().RefreshInvitationExpiry(ctx, inv.ID, later))

	require.NoError(t, st.Invitations().UpdateInvitationStatus(ctx, inv.ID,
		domain.InvitationPending, domain.InvitationRejected))
	err := st.Invitations().RefreshInvitationExpiry(ctx, inv.ID, later)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelExpiredInvitations(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")

	now := time.Now().UTC()
	expired := seedInvitation(t, st, org.ID, "old@example.com")
	require.NoError(t, st.Invitations().RefreshInvitationExpiry(ctx, expired.ID, now.Add(-time.Hour)))
	live := seedInvitation(t, st, org.ID, "new@example.com")

	n, err := st.Invitations().CancelExpiredInvitations(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := st.Invitations().GetInvitationByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationCanceled, got.Status)

	got, err = st.Invitations().GetInvitationByID(ctx, live.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, got.Status)
}

func TestDeleteOrganizationCascades(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")

	now := time.Now().UTC()
	team := domain.Team{
		ID: idx.New().String(), Name: "core", OrganizationID: org.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.Teams().CreateTeam(ctx, team))
	member := domain.Member{
		ID: idx.New().String(), UserID: "user-1", OrganizationID: org.ID,
		Roles: []string{"owner"}, TeamID: team.ID, CreatedAt: now,
	}
	require.NoError(t, st.Members().CreateMember(ctx, member))
	inv := seedInvitation(t, st, org.ID, "new@example.com")

	require.NoError(t, st.Organizations().DeleteOrganization(ctx, org.ID))

	_, err := st.Members().GetMemberByID(ctx, member.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Teams().GetTeamByID(ctx, team.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Invitations().GetInvitationByID(ctx, inv.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteTeamClearsMemberAssignment(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, st, "acme")

	now := time.Now().UTC()
	team := domain.Team{
		ID: idx.New().String(), Name: "core", OrganizationID: org.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.Teams().CreateTeam(ctx, team))
	member := domain.Member{
		ID: idx.New().String(), UserID: "user-1", OrganizationID: org.ID,
		Roles: []string{"member"}, TeamID: team.ID, CreatedAt: now,
	}
	require.NoError(t, st.Members().CreateMember(ctx, member))

	require.NoError(t, st.Teams().DeleteTeam(ctx, team.ID))

	got, err := st.Members().GetMemberByID(ctx, member.ID)
	require.NoError(t, err)
	require.Empty(t, got.TeamID)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		org := domain.Organization{
			ID: idx.New().String(), Name: "Acme", Slug: "acme", CreatedAt: time.Now().UTC(),
		}
		if err := tx.Organizations().CreateOrganization(ctx, org); err != nil {
			return err
		}
		// Duplicate slug inside the same transaction forces a rollback.
		dup := org
		dup.ID = idx.New().String()
		return tx.Organizations().CreateOrganization(ctx, dup)
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = st.Organizations().GetOrganizationBySlug(ctx, "acme")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListOrganizationsByUser(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	first := seedOrganization(t, st, "first")
	seedOrganization(t, st, "second")

	member := domain.Member{
		ID: idx.New().String(), UserID: "user-1", OrganizationID: first.ID,
		Roles: []string{"owner"}, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.Members().CreateMember(ctx, member))

	orgs, err := st.Organizations().ListOrganizationsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	require.Equal(t, first.ID, orgs[0].ID)
}
