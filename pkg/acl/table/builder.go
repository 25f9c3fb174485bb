package table

import (
	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
)

// Metadata is the part of the application metadata a table is built from.
type Metadata interface {
	ScopeList() []string
	PortalScopeList() []string
	IsBooleanScope(scope string) bool
	ActionList(scope string) []acl.Action
	PermissionList() []string
	PermissionDefault(permission string) acl.Level
	MandatoryFieldRestrictions(scope string) map[string]acl.FieldData
}

// Builder reduces role grants into a table.
type Builder struct {
	meta Metadata
}

// NewBuilder creates a table builder.
func NewBuilder(meta Metadata) *Builder {
	return &Builder{meta: meta}
}

// Build returns the table of a user holding the given roles. Admins get the
// unrestricted table without consulting roles. Portal users are built from
// the portal scopes.
func (b *Builder) Build(user *entity.User, roles []Role) *DefaultTable {
	scopes := b.meta.ScopeList()
	if user.IsPortal() {
		scopes = b.meta.PortalScopeList()
	}
	if user.IsAdmin() {
		return b.buildAdmin(scopes)
	}

	data := Data{
		Scopes:      make(map[string]acl.ScopeData, len(scopes)),
		Fields:      map[string]map[string]acl.FieldData{},
		Permissions: map[string]acl.Level{},
	}
	for _, scope := range scopes {
		combined := acl.BoolScope(false)
		for _, r := range roles {
			combined = acl.CombineScopeData(combined, r.Data[scope])
		}
		data.Scopes[scope] = b.normalize(user.IsPortal(), scope, combined)

		if fields := b.fields(scope, roles); len(fields) > 0 {
			data.Fields[scope] = fields
		}
	}
	for _, name := range b.meta.PermissionList() {
		data.Permissions[name] = permissionLevel(name, b.meta.PermissionDefault(name), roles)
	}
	return NewTable(data)
}

func (b *Builder) buildAdmin(scopes []string) *DefaultTable {
	data := Data{
		Admin:       true,
		Scopes:      make(map[string]acl.ScopeData, len(scopes)),
		Permissions: map[string]acl.Level{},
	}
	for _, scope := range scopes {
		data.Scopes[scope] = acl.BoolScope(true)
	}
	for _, name := range b.meta.PermissionList() {
		data.Permissions[name] = acl.LevelAll
	}
	return NewTable(data)
}

// normalize restricts the combined grant to the actions the scope supports
// and to the levels valid for the user kind. A grant with nothing left is
// false.
func (b *Builder) normalize(portal bool, scope string, d acl.ScopeData) acl.ScopeData {
	if d.IsFalse() {
		return d
	}
	actions := b.meta.ActionList(scope)
	levels := make(map[acl.Action]acl.Level, len(actions))
	granted := false
	for _, a := range actions {
		l := clamp(portal, a, d.Get(a))
		levels[a] = l
		if l.Grants() {
			granted = true
		}
	}
	switch {
	case !granted:
		return acl.BoolScope(false)
	case b.meta.IsBooleanScope(scope):
		return acl.BoolScope(true)
	}
	return acl.LevelScope(levels)
}

func clamp(portal bool, action acl.Action, l acl.Level) acl.Level {
	if action == acl.ActionCreate {
		if l.Grants() {
			return acl.LevelYes
		}
		return acl.LevelNo
	}
	switch l {
	case acl.LevelYes:
		return acl.LevelAll
	case acl.LevelTeam:
		if portal {
			return acl.LevelOwn
		}
	case acl.LevelContact, acl.LevelAccount:
		if !portal {
			return acl.LevelOwn
		}
	}
	return l
}

// fields combines the field grants of a scope. A role that does not mention
// a field leaves it unrestricted. Mandatory restrictions are applied last.
func (b *Builder) fields(scope string, roles []Role) map[string]acl.FieldData {
	restrictions := b.meta.MandatoryFieldRestrictions(scope)
	names := make(map[string]struct{}, len(restrictions))
	for _, r := range roles {
		for f := range r.FieldData[scope] {
			names[f] = struct{}{}
		}
	}
	for f := range restrictions {
		names[f] = struct{}{}
	}

	out := make(map[string]acl.FieldData, len(names))
	for f := range names {
		fd := acl.FullFieldAccess
		for i, r := range roles {
			g, ok := r.FieldData[scope][f]
			if !ok {
				g = acl.FullFieldAccess
			}
			if i == 0 {
				fd = g
			} else {
				fd = fd.Combine(g)
			}
		}
		if rs, ok := restrictions[f]; ok {
			fd = restrict(fd, rs)
		}
		if fd != acl.FullFieldAccess {
			out[f] = fd
		}
	}
	return out
}

func restrict(fd, limit acl.FieldData) acl.FieldData {
	if limit.Read == acl.FieldNo {
		fd.Read = acl.FieldNo
	}
	if limit.Edit == acl.FieldNo {
		fd.Edit = acl.FieldNo
	}
	return fd
}

// permissionLevel is the max over the roles that set the permission, or the
// default when none does.
func permissionLevel(name string, def acl.Level, roles []Role) acl.Level {
	level, set := acl.LevelNo, false
	for _, r := range roles {
		if l, ok := r.Permissions[name]; ok {
			level = acl.Combine(level, l)
			set = true
		}
	}
	if !set {
		return def
	}
	return level
}
