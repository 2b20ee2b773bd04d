package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	a, err := NewAuthorizer(DefaultRoles(), SuperAdmin)
	require.NoError(t, err)
	return a
}

func TestAllowsWildcardResolution(t *testing.T) {
	a, err := NewAuthorizer(map[string][]string{
		"auditor": {"reports:*"},
		"clerk":   {"reports:read"},
	}, "root")
	require.NoError(t, err)

	assert.True(t, a.Allows("auditor", "reports:read"))
	assert.True(t, a.Allows("auditor", "reports:export"))
	assert.False(t, a.Allows("auditor", "users:read"))

	assert.True(t, a.Allows("clerk", "reports:read"))
	assert.False(t, a.Allows("clerk", "reports:export"))

	assert.True(t, a.Allows("root", "anything:at_all"))
	assert.Equal(t, []string{Wildcard}, a.Permissions("root"))
}

func TestAllowsDefaultTable(t *testing.T) {
	a := defaultAuthorizer(t)

	assert.True(t, a.Allows(SuperAdmin, "users:delete"))
	assert.True(t, a.Allows("admin", "users:delete"))
	assert.False(t, a.Allows("admin", "content:moderate"))
	assert.True(t, a.Allows("driver", "trips:accept"))
	assert.False(t, a.Allows("driver", "trips:create"))
	assert.True(t, a.Allows("passenger", "trips:create"))
	assert.True(t, a.Allows("moderator", "content:moderate"))
	assert.False(t, a.Allows("support", "users:write"))
}

func TestAllowsEdgeCases(t *testing.T) {
	a := defaultAuthorizer(t)

	assert.True(t, a.Allows("nobody", ""), "empty permission requires nothing")
	assert.False(t, a.Allows("nobody", "users:read"))
	assert.False(t, a.Allows("", "users:read"))

	var nilAuth *Authorizer
	assert.False(t, nilAuth.Allows("admin", "users:read"))
	assert.True(t, nilAuth.Allows("admin", ""))
}

func TestNewAuthorizerRejectsMalformedPermissions(t *testing.T) {
	for _, bad := range []string{"", "users", ":read", "users:", "*:read", "a:b:c", "users: read"} {
		_, err := NewAuthorizer(map[string][]string{"r": {bad}}, "")
		assert.ErrorIs(t, err, ErrInvalidPermission, bad)
	}

	_, err := NewAuthorizer(map[string][]string{"": {"a:b"}}, "")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthorizerIsIsolatedFromInput(t *testing.T) {
	roles := map[string][]string{"r": {"a:read"}}
	a, err := NewAuthorizer(roles, "")
	require.NoError(t, err)

	roles["r"][0] = "a:write"
	roles["r2"] = []string{"*"}

	assert.True(t, a.Allows("r", "a:read"))
	assert.False(t, a.Allows("r", "a:write"))
	assert.False(t, a.HasRole("r2"))
	assert.Equal(t, []string{"r"}, a.Roles())
}
