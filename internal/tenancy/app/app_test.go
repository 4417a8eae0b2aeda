package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/service"
)

func testConfig() Config {
	return Config{
		DatabaseFile:  ":memory:",
		Issuer:        "tenantkit-test",
		InvitationTTL: 48 * time.Hour,
		SweepInterval: time.Hour,
		Env:           "dev",
		LogLevel:      "error",
		LogFormat:     "text",
	}
}

func TestNewWiresSuppliedRegistry(t *testing.T) {
	schema := ac.DefaultSchema()
	custom := ac.NewRegistry(schema, ac.DefaultRoles(schema))

	application, err := New(testConfig(), service.Options{}, Collaborators{Registry: custom})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Store().Close() })

	require.Same(t, custom, application.Organizations().Registry)
	require.Same(t, custom, application.Invitations().Registry)
	require.Same(t, custom, application.Teams().Registry)
}

func TestNewDefaultsToBuiltInRegistry(t *testing.T) {
	application, err := New(testConfig(), service.Options{}, Collaborators{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Store().Close() })

	registry := application.Organizations().Registry
	require.NotNil(t, registry)
	_, ok := registry.Role(ac.RoleOwner)
	require.True(t, ok)
}
