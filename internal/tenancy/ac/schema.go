// Package ac implements the statement-driven access-control model:
// a closed resource→action schema, immutable roles built against it, and
// permission checks that combine a member's roles by union.
package ac

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrSchema reports a malformed statement schema or role definition.
	ErrSchema = errors.New("ac: invalid schema")

	// ErrUnknownPermission reports a permission check that referenced a
	// resource or action outside the schema. Checks fail closed, but this
	// is distinguishable from a plain denial.
	ErrUnknownPermission = errors.New("ac: unknown permission")

	// ErrUnknownRole reports a role name absent from the registry.
	ErrUnknownRole = errors.New("ac: unknown role")
)

// Statements declares actions per resource. Used both to define the schema
// (allowed actions) and to express grants or permission requests.
type Statements map[string][]string

// Schema is the closed set of resources and the actions valid on each.
// Configured once at startup and read-only afterwards, so it is safe for
// concurrent use without locking.
type Schema struct {
	resources map[string]map[string]struct{}
}

// NewSchema validates and registers a resource→allowed-actions schema.
func NewSchema(statements Statements) (*Schema, error) {
	if len(statements) == 0 {
		return nil, fmt.Errorf("%w: no statements", ErrSchema)
	}

	resources := make(map[string]map[string]struct{}, len(statements))
	for resource, actions := range statements {
		if resource == "" {
			return nil, fmt.Errorf("%w: empty resource name", ErrSchema)
		}
		if len(actions) == 0 {
			return nil, fmt.Errorf("%w: resource %q has no actions", ErrSchema, resource)
		}

		set := make(map[string]struct{}, len(actions))
		for _, action := range actions {
			if action == "" {
				return nil, fmt.Errorf("%w: resource %q has an empty action", ErrSchema, resource)
			}
			if _, dup := set[action]; dup {
				return nil, fmt.Errorf("%w: resource %q repeats action %q", ErrSchema, resource, action)
			}
			set[action] = struct{}{}
		}
		resources[resource] = set
	}

	return &Schema{resources: resources}, nil
}

// Allows reports whether action is a valid action on resource.
func (s *Schema) Allows(resource, action string) bool {
	actions, ok := s.resources[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Resources returns the declared resource names, sorted.
func (s *Schema) Resources() []string {
	out := make([]string, 0, len(s.resources))
	for resource := range s.resources {
		out = append(out, resource)
	}
	sort.Strings(out)
	return out
}

// validateRequest checks a permission request against the schema.
// No wildcard or hierarchical matching: callers request exact names.
func (s *Schema) validateRequest(requested Statements) error {
	if len(requested) == 0 {
		return fmt.Errorf("%w: empty request", ErrUnknownPermission)
	}
	for resource, actions := range requested {
		declared, ok := s.resources[resource]
		if !ok {
			return fmt.Errorf("%w: resource %q", ErrUnknownPermission, resource)
		}
		if len(actions) == 0 {
			return fmt.Errorf("%w: no actions requested on %q", ErrUnknownPermission, resource)
		}
		for _, action := range actions {
			if _, ok := declared[action]; !ok {
				return fmt.Errorf("%w: action %q on resource %q", ErrUnknownPermission, action, resource)
			}
		}
	}
	return nil
}
