package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/domain"
	"github.com/tenantkit/tenantkit/internal/tenancy/notify"
	"github.com/tenantkit/tenantkit/internal/tenancy/store/drivers/sqlite"
	"github.com/tenantkit/tenantkit/pkg/invitetoken"
)

// fakeIdentity maps user ids to emails both ways.
type fakeIdentity struct {
	mu     sync.Mutex
	emails map[string]string // user id -> email
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{emails: make(map[string]string)}
}

func (f *fakeIdentity) add(userID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails[userID] = email
}

func (f *fakeIdentity) Email(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return email, nil
}

func (f *fakeIdentity) UserIDByEmail(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.emails {
		if e == email {
			return id, nil
		}
	}
	return "", nil
}

// fakeSessions is an in-memory active-organization store.
type fakeSessions struct {
	mu     sync.Mutex
	active map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: make(map[string]string)}
}

func (f *fakeSessions) SetActiveOrganization(_ context.Context, userID, organizationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[userID] = organizationID
	return nil
}

func (f *fakeSessions) ActiveOrganization(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[userID], nil
}

// captureSender records every notification and can be told to fail.
type captureSender struct {
	mu   sync.Mutex
	sent []notify.InvitationEmail
	fail error
}

func (c *captureSender) SendInvitationEmail(_ context.Context, email notify.InvitationEmail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, email)
	return nil
}

func (c *captureSender) last(t *testing.T) notify.InvitationEmail {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testEnv wires the services against an in-memory sqlite store with fake
// collaborators and a controllable clock.
type testEnv struct {
	store    *sqlite.Store
	identity *fakeIdentity
	sessions *fakeSessions
	sender   *captureSender

	orgs    *OrganizationService
	invites *InvitationService
	teams   *TeamService

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	env := &testEnv{
		store:    st,
		identity: newFakeIdentity(),
		sessions: newFakeSessions(),
		sender:   &captureSender{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.now
	}

	tokens, err := invitetoken.NewSigner([]byte("test-secret"), "tenantkit-test")
	require.NoError(t, err)

	registry := ac.DefaultRegistry()
	env.orgs = &OrganizationService{
		Store:    st,
		Registry: registry,
		Sessions: env.sessions,
		Options:  opts,
		Now:      clock,
	}
	env.invites = &InvitationService{
		Store:         st,
		Registry:      registry,
		Identity:      env.identity,
		Notifier:      env.sender,
		Tokens:        tokens,
		AcceptBaseURL: "https://app.example.com/accept-invitation",
		Options:       opts,
		Now:           clock,
	}
	env.teams = &TeamService{
		Store:    st,
		Registry: registry,
		Options:  opts,
		Now:      clock,
	}
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

// createOrg provisions an organization owned by the given user and registers
// the user's email with the identity fake.
func (e *testEnv) createOrg(t *testing.T, slug, ownerID, ownerEmail string) domain.Organization {
	t.Helper()
	e.identity.add(ownerID, ownerEmail)
	org, err := e.orgs.Create(context.Background(), CreateOrganizationParams{
		Name:          slug,
		Slug:          slug,
		CreatorUserID: ownerID,
	})
	require.NoError(t, err)
	return org
}

// joinAs invites and accepts in one step, producing a member with the given
// roles.
func (e *testEnv) joinAs(t *testing.T, org domain.Organization, inviterID, userID, email string, roles []string) domain.Member {
	t.Helper()
	e.identity.add(userID, email)
	inv, err := e.invites.Create(context.Background(), CreateInvitationParams{
		OrganizationID: org.ID,
		Email:          email,
		Roles:          roles,
		InviterUserID:  inviterID,
	})
	require.NoError(t, err)
	member, err := e.invites.Accept(context.Background(), inv.ID, userID)
	require.NoError(t, err)
	return member
}
