package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Wildcard grants every permission.
const Wildcard = "*"

// Validate reports whether p is a well-formed permission string.
func Validate(p string) error {
	if p == Wildcard {
		return nil
	}
	resource, action, ok := strings.Cut(p, ":")
	if !ok || resource == "" || action == "" || resource == Wildcard ||
		strings.Contains(action, ":") || strings.ContainsAny(p, " \t") {
		return fmt.Errorf("%w: %q", ErrInvalidPermission, p)
	}
	return nil
}

// Authorizer answers whether a role holds a permission.
type Authorizer struct {
	roles     map[string]map[string]struct{}
	superRole string
}

// NewAuthorizer validates and copies roles. superRole, when non-empty, is
// granted "*" whether or not the table lists it.
func NewAuthorizer(roles map[string][]string, superRole string) (*Authorizer, error) {
	a := &Authorizer{
		roles:     make(map[string]map[string]struct{}, len(roles)+1),
		superRole: superRole,
	}

	for role, perms := range roles {
		if role == "" {
			return nil, ErrInvalidRole
		}
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			if err := Validate(p); err != nil {
				return nil, fmt.Errorf("role %q: %w", role, err)
			}
			set[p] = struct{}{}
		}
		a.roles[role] = set
	}

	if superRole != "" {
		if a.roles[superRole] == nil {
			a.roles[superRole] = make(map[string]struct{}, 1)
		}
		a.roles[superRole][Wildcard] = struct{}{}
	}

	return a, nil
}

// Allows reports whether role grants perm. An empty perm means the resource
// requires no permission. A role grants perm when it holds "*", perm itself,
// or "resource:*" for perm's resource. Unknown roles grant nothing.
func (a *Authorizer) Allows(role, perm string) bool {
	if perm == "" {
		return true
	}
	if a == nil {
		return false
	}

	set, ok := a.roles[role]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	if _, ok := set[perm]; ok {
		return true
	}
	if resource, _, ok := strings.Cut(perm, ":"); ok {
		if _, ok := set[resource+":*"]; ok {
			return true
		}
	}
	return false
}

// HasRole reports whether role is defined.
func (a *Authorizer) HasRole(role string) bool {
	_, ok := a.roles[role]
	return ok
}

// Roles returns the defined role names, sorted.
func (a *Authorizer) Roles() []string {
	out := make([]string, 0, len(a.roles))
	for r := range a.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Permissions returns the permissions bound to role, sorted.
func (a *Authorizer) Permissions(role string) []string {
	set := a.roles[role]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SuperRole returns the configured super role name.
func (a *Authorizer) SuperRole() string { return a.superRole }
