// Package acl decides whether a user may create, read, edit, delete or
// stream records of an entity type.
//
// Decisions combine three inputs: the user's permission Table (built from
// roles, see package table), the checkers registered for the entity type in
// a Registry, and the record itself. Levels order as
//
//	no < own < contact < account < team < all < yes
//
// and role grants merge by taking the maximum, so a table does not depend on
// the order of roles.
//
// Primitive checks return booleans and only fail with a ConfigurationError
// for wiring problems. The Ensure methods translate a denial to ErrForbidden.
//
// Example:
//
//	registry := acl.NewRegistry(meta, fields)
//	manager := acl.NewManager(tables, registry)
//	_ = acl.RegisterBuiltins(registry)
//	_ = registry.Freeze()
//
//	if err := manager.EnsureEntity(ctx, user, lead, acl.ActionRead); err != nil {
//		// 403
//	}
package acl
