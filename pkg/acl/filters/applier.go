package filters

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

// TableSource returns the permission table of a user.
type TableSource interface {
	GetTable(ctx context.Context, user *entity.User) (acl.Table, error)
}

type scopeConditions struct {
	regular Conditions
	portal  Conditions
}

// Applier applies the access filters of a scope to list queries.
type Applier struct {
	tables TableSource
	meta   Metadata

	mu         sync.RWMutex
	conditions map[string]scopeConditions
	mandatory  map[string]MandatoryFilter
}

// NewApplier creates an applier with the built-in scope filters.
func NewApplier(tables TableSource, meta Metadata) *Applier {
	a := &Applier{
		tables:     tables,
		meta:       meta,
		conditions: map[string]scopeConditions{},
		mandatory:  map[string]MandatoryFilter{},
	}
	a.RegisterConditions(acl.ScopeUser, UserConditions{DefaultConditions{}}, PortalConditions{})
	a.RegisterConditions(acl.ScopeNotification,
		UserIDConditions{DefaultConditions{}}, UserIDConditions{PortalConditions{}})
	a.RegisterConditions(acl.ScopeAccount, DefaultConditions{}, AccountConditions{PortalConditions{}})

	a.RegisterMandatory("EmailFolder", EmailFolderFilter)
	a.RegisterMandatory("KnowledgeBaseArticle", KnowledgeBaseArticleFilter)
	a.RegisterMandatory(acl.ScopeImport, CreatorFilter)
	a.RegisterMandatory(acl.ScopeUser, UserFilter)
	return a
}

// RegisterConditions sets the ownership conditions of a scope for regular
// and portal users. They must agree with the scope's ownership checkers.
func (a *Applier) RegisterConditions(scope string, regular, portal Conditions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conditions[scope] = scopeConditions{regular: regular, portal: portal}
}

// RegisterMandatory sets the mandatory filter of a scope.
func (a *Applier) RegisterMandatory(scope string, f MandatoryFilter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mandatory[scope] = f
}

func (a *Applier) lookup(scope string, portal bool) (Conditions, MandatoryFilter) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var c Conditions = DefaultConditions{}
	if portal {
		c = PortalConditions{}
	}
	if sc, ok := a.conditions[scope]; ok {
		c = sc.regular
		if portal {
			c = sc.portal
		}
	}
	return c, a.mandatory[scope]
}

// Apply restricts the query to the records of its entity type the user may
// read. Admins skip the level filters but not the mandatory ones. Levels and
// permissions are read from one table lookup.
func (a *Applier) Apply(ctx context.Context, user *entity.User, qb *query.SelectBuilder) error {
	scope := qb.EntityType()
	if scope == "" {
		return fmt.Errorf("query has no entity type")
	}
	t, err := a.tables.GetTable(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to filter %s: %w", scope, err)
	}
	p := Params{
		EntityType: scope,
		User:       user,
		Meta:       a.meta,
		Permission: t.GetPermissionLevel,
	}
	conds, mandatory := a.lookup(scope, user.IsPortal())

	if !user.IsAdmin() {
		level := t.GetLevel(scope, acl.ActionRead)
		if f := LevelFilter(level, user.IsPortal(), conds, p); f != nil {
			f.Apply(qb)
		}
	}
	if mandatory != nil {
		if f := mandatory(p); f != nil {
			f.Apply(qb)
		}
	}
	return nil
}

// LevelFilter returns the generic filter of a read level, nil when the
// level needs none.
func LevelFilter(level acl.Level, portal bool, c Conditions, p Params) Filter {
	switch level {
	case acl.LevelAll, acl.LevelYes:
		return nil
	case acl.LevelOwn:
		if portal {
			return PortalOnlyOwn(c, p)
		}
		return OnlyOwn(c, p)
	case acl.LevelTeam:
		if portal {
			return PortalOnlyOwn(c, p)
		}
		return OnlyTeam(c, p)
	case acl.LevelAccount:
		if portal {
			return PortalOnlyAccount(c, p)
		}
		return OnlyOwn(c, p)
	case acl.LevelContact:
		if portal {
			return PortalOnlyContact(c, p)
		}
		return OnlyOwn(c, p)
	}
	return No()
}
