package ac

import "fmt"

// Role is an immutable set of resource→action grants. Roles are pure data;
// build them through Schema.NewRole so grants stay inside the schema.
type Role struct {
	grants map[string]map[string]struct{}
}

// NewRole builds a role whose grants must be a subset of the schema.
func (s *Schema) NewRole(grants Statements) (Role, error) {
	out := make(map[string]map[string]struct{}, len(grants))
	for resource, actions := range grants {
		declared, ok := s.resources[resource]
		if !ok {
			return Role{}, fmt.Errorf("%w: role grants unknown resource %q", ErrSchema, resource)
		}
		set := make(map[string]struct{}, len(actions))
		for _, action := range actions {
			if _, ok := declared[action]; !ok {
				return Role{}, fmt.Errorf("%w: role grants unknown action %q on %q", ErrSchema, action, resource)
			}
			set[action] = struct{}{}
		}
		out[resource] = set
	}
	return Role{grants: out}, nil
}

// MustNewRole is NewRole for compile-time-known grants (built-ins, tests).
func (s *Schema) MustNewRole(grants Statements) Role {
	role, err := s.NewRole(grants)
	if err != nil {
		panic(err)
	}
	return role
}

// Merge returns a role granting the per-resource union of base and extra.
// Use it to extend a built-in role without losing its grants.
func Merge(base, extra Role) Role {
	out := make(map[string]map[string]struct{}, len(base.grants)+len(extra.grants))
	for _, src := range []map[string]map[string]struct{}{base.grants, extra.grants} {
		for resource, actions := range src {
			set, ok := out[resource]
			if !ok {
				set = make(map[string]struct{}, len(actions))
				out[resource] = set
			}
			for action := range actions {
				set[action] = struct{}{}
			}
		}
	}
	return Role{grants: out}
}

// can reports whether the role grants action on resource.
func (r Role) can(resource, action string) bool {
	actions, ok := r.grants[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Statements returns a copy of the role's grants.
func (r Role) Statements() Statements {
	out := make(Statements, len(r.grants))
	for resource, actions := range r.grants {
		list := make([]string, 0, len(actions))
		for action := range actions {
			list = append(list, action)
		}
		out[resource] = list
	}
	return out
}
