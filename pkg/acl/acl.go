package acl

import (
	"context"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// ACL is a Manager bound to one user for the lifetime of a request. Every
// check made through it shares one resolution of the user's table.
type ACL struct {
	manager *Manager
	user    *entity.User
	scope   *requestScope
}

func (a *ACL) User() *entity.User { return a.user }

// Table returns the user's table, resolving it on first use.
func (a *ACL) Table(ctx context.Context) (Table, error) {
	return a.manager.GetTable(a.bind(ctx), a.user)
}

func (a *ACL) bind(ctx context.Context) context.Context {
	if scopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey, a.scope)
}

func (a *ACL) GetLevel(ctx context.Context, scope string, action Action) (Level, error) {
	return a.manager.GetLevel(a.bind(ctx), a.user, scope, action)
}

func (a *ACL) GetPermissionLevel(ctx context.Context, permission string) (Level, error) {
	return a.manager.GetPermissionLevel(a.bind(ctx), a.user, permission)
}

func (a *ACL) CheckScope(ctx context.Context, scope string, action Action) (bool, error) {
	return a.manager.CheckScope(a.bind(ctx), a.user, scope, action)
}

func (a *ACL) CheckEntity(ctx context.Context, e entity.Entity, action Action) (bool, error) {
	return a.manager.CheckEntity(a.bind(ctx), a.user, e, action)
}

func (a *ACL) CheckEntityRead(ctx context.Context, e entity.Entity) (bool, error) {
	return a.manager.CheckEntityRead(a.bind(ctx), a.user, e)
}

func (a *ACL) CheckEntityEdit(ctx context.Context, e entity.Entity) (bool, error) {
	return a.manager.CheckEntityEdit(a.bind(ctx), a.user, e)
}

func (a *ACL) CheckEntityDelete(ctx context.Context, e entity.Entity) (bool, error) {
	return a.manager.CheckEntityDelete(a.bind(ctx), a.user, e)
}

func (a *ACL) CheckField(ctx context.Context, scope, field string, action Action) (bool, error) {
	return a.manager.CheckField(a.bind(ctx), a.user, scope, field, action)
}

func (a *ACL) CheckAssignment(ctx context.Context, e entity.Entity) (bool, error) {
	return a.manager.CheckAssignment(a.bind(ctx), a.user, e)
}

func (a *ACL) CheckOwnershipAccount(e entity.Entity) (bool, error) {
	return a.manager.CheckOwnershipAccount(a.user, e)
}

func (a *ACL) CheckOwnershipContact(e entity.Entity) (bool, error) {
	return a.manager.CheckOwnershipContact(a.user, e)
}

func (a *ACL) EnsureScope(ctx context.Context, scope string, action Action) error {
	return a.manager.EnsureScope(a.bind(ctx), a.user, scope, action)
}

func (a *ACL) EnsureEntity(ctx context.Context, e entity.Entity, action Action) error {
	return a.manager.EnsureEntity(a.bind(ctx), a.user, e, action)
}
