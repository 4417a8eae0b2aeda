package ac

import "fmt"

// Registry holds the named roles known to the process. Built once at startup
// from the defaults plus any configured custom roles, then read-only.
type Registry struct {
	schema *Schema
	roles  map[string]Role
}

// NewRegistry builds a registry over schema. The roles map is copied.
func NewRegistry(schema *Schema, roles map[string]Role) *Registry {
	copied := make(map[string]Role, len(roles))
	for name, role := range roles {
		copied[name] = role
	}
	return &Registry{schema: schema, roles: copied}
}

// Schema returns the statement schema the registry was built over.
func (reg *Registry) Schema() *Schema { return reg.schema }

// Role looks up a named role.
func (reg *Registry) Role(name string) (Role, bool) {
	role, ok := reg.roles[name]
	return role, ok
}

// Names returns the registered role names.
func (reg *Registry) Names() []string {
	out := make([]string, 0, len(reg.roles))
	for name := range reg.roles {
		out = append(out, name)
	}
	return out
}

// HasPermission reports whether the union of grants across roleNames covers
// every requested action on every requested resource. Roles combine by
// union, never intersection. Unknown role names grant nothing; a request
// outside the schema fails closed with ErrUnknownPermission.
func (reg *Registry) HasPermission(roleNames []string, requested Statements) (bool, error) {
	if err := reg.schema.validateRequest(requested); err != nil {
		return false, err
	}

	roles := make([]Role, 0, len(roleNames))
	for _, name := range roleNames {
		if role, ok := reg.roles[name]; ok {
			roles = append(roles, role)
		}
	}

	for resource, actions := range requested {
		for _, action := range actions {
			if !anyGrants(roles, resource, action) {
				return false, nil
			}
		}
	}
	return true, nil
}

// CheckRolePermission evaluates a single named role without a live member.
// Semantically identical to HasPermission with that one role.
func (reg *Registry) CheckRolePermission(roleName string, requested Statements) (bool, error) {
	if _, ok := reg.roles[roleName]; !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRole, roleName)
	}
	return reg.HasPermission([]string{roleName}, requested)
}

func anyGrants(roles []Role, resource, action string) bool {
	for _, role := range roles {
		if role.can(resource, action) {
			return true
		}
	}
	return false
}
