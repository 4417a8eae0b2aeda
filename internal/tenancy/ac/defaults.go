package ac

// Resource and action names used by the built-in statements. Services
// request these exact names; there is no wildcard matching.
const (
	ResourceOrganization = "organization"
	ResourceMember       = "member"
	ResourceInvitation   = "invitation"
	ResourceTeam         = "team"

	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionCancel = "cancel"
)

// Built-in role names.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// DefaultStatements is the statement schema the engine ships with.
func DefaultStatements() Statements {
	return Statements{
		ResourceOrganization: {ActionUpdate, ActionDelete},
		ResourceMember:       {ActionCreate, ActionUpdate, ActionDelete},
		ResourceInvitation:   {ActionCreate, ActionCancel},
		ResourceTeam:         {ActionCreate, ActionUpdate, ActionDelete},
	}
}

// DefaultSchema builds the built-in schema. Panics only on a programming
// error in the defaults above.
func DefaultSchema() *Schema {
	schema, err := NewSchema(DefaultStatements())
	if err != nil {
		panic(err)
	}
	return schema
}

// DefaultRoles returns the built-in roles over schema:
//
//   - owner: every declared action, including organization deletion
//   - admin: everything an owner can do except deleting the organization
//   - member: no management grants
func DefaultRoles(schema *Schema) map[string]Role {
	owner := schema.MustNewRole(Statements{
		ResourceOrganization: {ActionUpdate, ActionDelete},
		ResourceMember:       {ActionCreate, ActionUpdate, ActionDelete},
		ResourceInvitation:   {ActionCreate, ActionCancel},
		ResourceTeam:         {ActionCreate, ActionUpdate, ActionDelete},
	})
	admin := schema.MustNewRole(Statements{
		ResourceOrganization: {ActionUpdate},
		ResourceMember:       {ActionCreate, ActionUpdate, ActionDelete},
		ResourceInvitation:   {ActionCreate, ActionCancel},
		ResourceTeam:         {ActionCreate, ActionUpdate, ActionDelete},
	})
	member := schema.MustNewRole(Statements{})

	return map[string]Role{
		RoleOwner:  owner,
		RoleAdmin:  admin,
		RoleMember: member,
	}
}

// DefaultRegistry builds the registry the engine uses when no custom schema
// or roles are configured.
func DefaultRegistry() *Registry {
	schema := DefaultSchema()
	return NewRegistry(schema, DefaultRoles(schema))
}
