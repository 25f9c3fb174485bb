package acl

import (
	"context"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// CreatorAccessChecker lets the creator of a record pass the listed entity
// actions. When Exclusive is set, only admins and the creator pass them.
// Everything else is delegated to the default checker.
type CreatorAccessChecker struct {
	*DefaultAccessChecker
	Actions   []Action
	Exclusive bool
}

// NewCreatorAccessChecker wraps a default checker with a creator rule.
func NewCreatorAccessChecker(fallback *DefaultAccessChecker, exclusive bool, actions ...Action) *CreatorAccessChecker {
	return &CreatorAccessChecker{DefaultAccessChecker: fallback, Actions: actions, Exclusive: exclusive}
}

func (c *CreatorAccessChecker) covers(action Action) bool {
	for _, a := range c.Actions {
		if a == action {
			return true
		}
	}
	return false
}

func (c *CreatorAccessChecker) Check(_ *entity.User, data ScopeData) bool {
	return data.IsTrue()
}

func (c *CreatorAccessChecker) CheckRead(user *entity.User, data ScopeData) bool {
	if c.covers(ActionRead) {
		return data.IsTrue()
	}
	return c.DefaultAccessChecker.CheckRead(user, data)
}

func (c *CreatorAccessChecker) CheckDelete(user *entity.User, data ScopeData) bool {
	if c.covers(ActionDelete) {
		return data.IsTrue()
	}
	return c.DefaultAccessChecker.CheckDelete(user, data)
}

func (c *CreatorAccessChecker) checkEntity(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData, action Action) bool {
	if !c.covers(action) {
		ok, _ := CheckEntityAction(ctx, c.DefaultAccessChecker, user, e, data, action)
		return ok
	}
	if user.IsAdmin() {
		return true
	}
	if user.ID != "" && entity.String(e, entity.AttrCreatedByID) == user.ID {
		return true
	}
	if c.Exclusive {
		return false
	}
	return c.DefaultAccessChecker.checkEntity(user, e, data, action)
}

func (c *CreatorAccessChecker) CheckEntityCreate(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(ctx, user, e, data, ActionCreate)
}

func (c *CreatorAccessChecker) CheckEntityRead(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(ctx, user, e, data, ActionRead)
}

func (c *CreatorAccessChecker) CheckEntityEdit(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(ctx, user, e, data, ActionEdit)
}

func (c *CreatorAccessChecker) CheckEntityDelete(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(ctx, user, e, data, ActionDelete)
}

func (c *CreatorAccessChecker) CheckEntityStream(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(ctx, user, e, data, ActionStream)
}

// Permission names.
const (
	PermissionAssignment = "assignment"
	PermissionUser       = "user"
	PermissionPortal     = "portal"
)

// UserAccessChecker guards user records: portal users need the portal
// permission, super-admins are hidden from everyone else, system users are
// immutable and only admins create or delete users. Permission levels come
// from the table of the check in progress.
type UserAccessChecker struct {
	*DefaultAccessChecker
}

// NewUserAccessChecker creates the checker of the User scope.
func NewUserAccessChecker(fallback *DefaultAccessChecker) *UserAccessChecker {
	return &UserAccessChecker{DefaultAccessChecker: fallback}
}

func targetUserType(e entity.Entity) entity.UserType {
	if u, ok := e.(*entity.User); ok {
		return u.Type
	}
	return entity.UserType(entity.String(e, entity.AttrType))
}

// permission reads a permission level from the table Manager.CheckEntity
// resolved. Outside a manager check there is no table and nothing is granted.
func (c *UserAccessChecker) permission(ctx context.Context, user *entity.User, name string) Level {
	if user.IsAdmin() {
		return LevelAll
	}
	if t := tableFrom(ctx); t != nil {
		return t.GetPermissionLevel(name)
	}
	return LevelNo
}

func hiddenSuperAdmin(user *entity.User, target entity.UserType) bool {
	return target == entity.UserTypeSuperAdmin && !user.IsSuperAdmin()
}

func (c *UserAccessChecker) CheckEntityCreate(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	if !user.IsAdmin() || hiddenSuperAdmin(user, targetUserType(e)) {
		return false
	}
	return c.DefaultAccessChecker.CheckEntityCreate(ctx, user, e, data)
}

func (c *UserAccessChecker) CheckEntityRead(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	target := targetUserType(e)
	if target == entity.UserTypePortal {
		return user.IsAdmin() || c.permission(ctx, user, PermissionPortal).IsUnrestricted()
	}
	if hiddenSuperAdmin(user, target) {
		return false
	}
	return c.DefaultAccessChecker.CheckEntityRead(ctx, user, e, data)
}

func (c *UserAccessChecker) CheckEntityEdit(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	target := targetUserType(e)
	if target == entity.UserTypeSystem {
		return false
	}
	if !user.IsAdmin() && user.ID != e.GetID() {
		return false
	}
	if hiddenSuperAdmin(user, target) {
		return false
	}
	return c.DefaultAccessChecker.CheckEntityEdit(ctx, user, e, data)
}

func (c *UserAccessChecker) CheckEntityDelete(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	target := targetUserType(e)
	if !user.IsAdmin() || target == entity.UserTypeSystem || hiddenSuperAdmin(user, target) {
		return false
	}
	return c.DefaultAccessChecker.CheckEntityDelete(ctx, user, e, data)
}

// CheckEntityStream follows the user permission: all passes, team passes
// users sharing a team, no passes only the user itself.
func (c *UserAccessChecker) CheckEntityStream(ctx context.Context, user *entity.User, e entity.Entity, _ ScopeData) bool {
	if user.IsAdmin() || user.ID == e.GetID() {
		return true
	}
	switch c.permission(ctx, user, PermissionUser) {
	case LevelAll, LevelYes:
		return true
	case LevelTeam:
		return entity.Intersects(entity.IDs(e, entity.AttrTeamsIDs), user.TeamIDs)
	}
	return false
}
