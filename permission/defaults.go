package permission

// SuperAdmin is the default super role.
const SuperAdmin = "super_admin"

// DefaultRoles returns the built-in role table.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		SuperAdmin: {Wildcard},
		"admin": {
			"users:read", "users:write", "users:delete",
			"drivers:read", "drivers:write", "drivers:approve",
			"trips:read", "trips:write", "trips:cancel",
			"reports:read", "audit:read",
		},
		"driver": {
			"profile:read", "profile:write",
			"trips:read", "trips:accept", "trips:complete",
			"earnings:read",
		},
		"passenger": {
			"profile:read", "profile:write",
			"trips:create", "trips:read", "trips:cancel",
			"payments:read", "payments:write",
		},
		"support": {
			"users:read", "trips:read", "trips:write",
			"support_tickets:read", "support_tickets:write",
		},
		"moderator": {
			"users:read", "drivers:read", "trips:read",
			"reports:read", "content:moderate",
		},
	}
}

// DefaultEndpoints returns the built-in endpoint permission table.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		"GET:/api/admin/users":            "users:read",
		"POST:/api/admin/users":           "users:write",
		"DELETE:/api/admin/users/*":       "users:delete",
		"GET:/api/driver/trips":           "trips:read",
		"POST:/api/driver/trips/*/accept": "trips:accept",
		"POST:/api/passenger/trips":       "trips:create",
		"GET:/api/reports/*":              "reports:read",
	}
}

// DefaultPublicPaths returns the endpoints that never require a token.
func DefaultPublicPaths() PublicPaths {
	return PublicPaths{
		"/auth/login",
		"/auth/register",
		"/auth/reset-password",
		"/health",
		"/docs",
		"/openapi.json",
		"/metrics",
	}
}
