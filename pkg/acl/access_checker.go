package acl

import (
	"context"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// Scope-level capabilities. A checker implements the subset it supports;
// the Manager falls back to the default checker for the rest.
type (
	AccessChecker interface {
		Check(user *entity.User, data ScopeData) bool
	}
	AccessCreateChecker interface {
		CheckCreate(user *entity.User, data ScopeData) bool
	}
	AccessReadChecker interface {
		CheckRead(user *entity.User, data ScopeData) bool
	}
	AccessEditChecker interface {
		CheckEdit(user *entity.User, data ScopeData) bool
	}
	AccessDeleteChecker interface {
		CheckDelete(user *entity.User, data ScopeData) bool
	}
	AccessStreamChecker interface {
		CheckStream(user *entity.User, data ScopeData) bool
	}
)

// Entity-level capabilities.
type (
	AccessEntityCreateChecker interface {
		CheckEntityCreate(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool
	}
	AccessEntityReadChecker interface {
		CheckEntityRead(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool
	}
	AccessEntityEditChecker interface {
		CheckEntityEdit(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool
	}
	AccessEntityDeleteChecker interface {
		CheckEntityDelete(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool
	}
	AccessEntityStreamChecker interface {
		CheckEntityStream(ctx context.Context, user *entity.User, e entity.Entity, data ScopeData) bool
	}
)

// DefaultAccessChecker decides every action through the ScopeChecker, using
// an ownership checker for restricted levels.
type DefaultAccessChecker struct {
	ownership OwnershipChecker
	portal    bool
	scope     ScopeChecker
}

// NewDefaultAccessChecker creates the default checker of regular users.
func NewDefaultAccessChecker(ownership OwnershipChecker) *DefaultAccessChecker {
	return &DefaultAccessChecker{ownership: ownership}
}

// NewPortalAccessChecker creates the default checker of portal users.
func NewPortalAccessChecker(ownership OwnershipChecker) *DefaultAccessChecker {
	return &DefaultAccessChecker{ownership: ownership, portal: true}
}

func (c *DefaultAccessChecker) checkScope(data ScopeData, action Action) bool {
	all := Const(true)
	return c.scope.Check(data, action, &ScopeCheckerData{
		IsOwn:     all,
		InTeam:    all,
		InAccount: all,
		InContact: all,
	})
}

func (c *DefaultAccessChecker) checkEntity(user *entity.User, e entity.Entity, data ScopeData, action Action) bool {
	if user.IsAdmin() {
		return true
	}
	cd := &ScopeCheckerData{
		IsOwn: func() bool { return c.ownership.CheckOwn(user, e) },
	}
	if c.portal {
		cd.InAccount = func() bool { return c.ownership.CheckAccount(user, e) }
		cd.InContact = func() bool { return c.ownership.CheckContact(user, e) }
	} else {
		cd.InTeam = func() bool { return c.ownership.CheckTeams(user, e) }
	}
	return c.scope.Check(data, action, cd)
}

func (c *DefaultAccessChecker) Check(_ *entity.User, data ScopeData) bool {
	return c.checkScope(data, "")
}

func (c *DefaultAccessChecker) CheckCreate(_ *entity.User, data ScopeData) bool {
	return c.checkScope(data, ActionCreate)
}

func (c *DefaultAccessChecker) CheckRead(_ *entity.User, data ScopeData) bool {
	return c.checkScope(data, ActionRead)
}

func (c *DefaultAccessChecker) CheckEdit(_ *entity.User, data ScopeData) bool {
	return c.checkScope(data, ActionEdit)
}

func (c *DefaultAccessChecker) CheckDelete(_ *entity.User, data ScopeData) bool {
	return c.checkScope(data, ActionDelete)
}

func (c *DefaultAccessChecker) CheckStream(_ *entity.User, data ScopeData) bool {
	return c.checkScope(data, ActionStream)
}

func (c *DefaultAccessChecker) CheckEntityCreate(_ context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(user, e, data, ActionCreate)
}

func (c *DefaultAccessChecker) CheckEntityRead(_ context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(user, e, data, ActionRead)
}

func (c *DefaultAccessChecker) CheckEntityEdit(_ context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(user, e, data, ActionEdit)
}

func (c *DefaultAccessChecker) CheckEntityDelete(_ context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(user, e, data, ActionDelete)
}

func (c *DefaultAccessChecker) CheckEntityStream(_ context.Context, user *entity.User, e entity.Entity, data ScopeData) bool {
	return c.checkEntity(user, e, data, ActionStream)
}

// CheckScopeAction dispatches a scope-level check to the capability the
// checker implements. The second result is false when it implements none.
func CheckScopeAction(checker any, user *entity.User, data ScopeData, action Action) (bool, bool) {
	switch action {
	case "":
		if c, ok := checker.(AccessChecker); ok {
			return c.Check(user, data), true
		}
	case ActionCreate:
		if c, ok := checker.(AccessCreateChecker); ok {
			return c.CheckCreate(user, data), true
		}
	case ActionRead:
		if c, ok := checker.(AccessReadChecker); ok {
			return c.CheckRead(user, data), true
		}
	case ActionEdit:
		if c, ok := checker.(AccessEditChecker); ok {
			return c.CheckEdit(user, data), true
		}
	case ActionDelete:
		if c, ok := checker.(AccessDeleteChecker); ok {
			return c.CheckDelete(user, data), true
		}
	case ActionStream:
		if c, ok := checker.(AccessStreamChecker); ok {
			return c.CheckStream(user, data), true
		}
	}
	return false, false
}

// CheckEntityAction dispatches an entity-level check to the capability the
// checker implements. The second result is false when it implements none.
func CheckEntityAction(ctx context.Context, checker any, user *entity.User, e entity.Entity, data ScopeData, action Action) (bool, bool) {
	switch action {
	case ActionCreate:
		if c, ok := checker.(AccessEntityCreateChecker); ok {
			return c.CheckEntityCreate(ctx, user, e, data), true
		}
	case ActionRead:
		if c, ok := checker.(AccessEntityReadChecker); ok {
			return c.CheckEntityRead(ctx, user, e, data), true
		}
	case ActionEdit:
		if c, ok := checker.(AccessEntityEditChecker); ok {
			return c.CheckEntityEdit(ctx, user, e, data), true
		}
	case ActionDelete:
		if c, ok := checker.(AccessEntityDeleteChecker); ok {
			return c.CheckEntityDelete(ctx, user, e, data), true
		}
	case ActionStream:
		if c, ok := checker.(AccessEntityStreamChecker); ok {
			return c.CheckEntityStream(ctx, user, e, data), true
		}
	}
	return false, false
}
