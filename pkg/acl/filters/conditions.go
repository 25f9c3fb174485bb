package filters

import (
	"sort"
	"strings"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

// Metadata is the metadata the filters read.
type Metadata interface {
	acl.FieldHelper
	Link(entityType, link string) (acl.LinkRef, bool)
	FieldActiveOptions(entityType, field string) []string
}

// Params are the inputs of a filter.
type Params struct {
	EntityType string
	User       *entity.User
	Meta       Metadata
	// Permission returns a permission level of the user. Lookup failures
	// yield acl.LevelNo.
	Permission func(name string) acl.Level
}

func (p Params) permission(name string) acl.Level {
	if p.Permission == nil {
		return acl.LevelNo
	}
	return p.Permission(name)
}

// Conditions builds the where-conditions matching the records an ownership
// checker accepts. A nil condition matches nothing.
type Conditions interface {
	Own(p Params) query.Condition
	Teams(p Params) query.Condition
	Account(p Params) query.Condition
	Contact(p Params) query.Condition
}

// DefaultConditions mirror acl.DefaultOwnershipChecker.
type DefaultConditions struct{}

func (DefaultConditions) Own(p Params) query.Condition {
	if p.User.ID == "" {
		return nil
	}
	switch t := p.EntityType; {
	case p.Meta.HasAssignedUsersField(t):
		return query.HasLinked(multipleLink(p, "assignedUsers", "entityUser", "entityId", "userId"), []string{p.User.ID})
	case p.Meta.HasAssignedUserField(t):
		return query.Eq(entity.AttrAssignedUserID, p.User.ID)
	case p.Meta.HasCreatedByField(t):
		return query.Eq(entity.AttrCreatedByID, p.User.ID)
	}
	return nil
}

func (DefaultConditions) Teams(p Params) query.Condition {
	if !p.Meta.HasTeamsField(p.EntityType) || len(p.User.TeamIDs) == 0 {
		return nil
	}
	return query.HasLinked(multipleLink(p, "teams", "entityTeam", "entityId", "teamId"), p.User.TeamIDs)
}

func (DefaultConditions) Account(p Params) query.Condition {
	if len(p.User.AccountIDs) == 0 {
		return nil
	}
	ref, ok := p.Meta.AccountLink(p.EntityType)
	if !ok {
		return nil
	}
	return linkCondition(p.EntityType, ref, p.User.AccountIDs)
}

func (DefaultConditions) Contact(p Params) query.Condition {
	if p.User.ContactID == "" {
		return nil
	}
	ref, ok := p.Meta.ContactLink(p.EntityType)
	if !ok {
		return nil
	}
	return linkCondition(p.EntityType, ref, []string{p.User.ContactID})
}

// PortalConditions mirror acl.PortalOwnershipChecker: portal users own what
// they created.
type PortalConditions struct {
	DefaultConditions
}

func (PortalConditions) Own(p Params) query.Condition {
	if p.User.ID == "" || !p.Meta.HasCreatedByField(p.EntityType) {
		return nil
	}
	return query.Eq(entity.AttrCreatedByID, p.User.ID)
}

// UserIDConditions mirror acl.UserIDOwnershipChecker.
type UserIDConditions struct {
	Conditions
}

func (UserIDConditions) Own(p Params) query.Condition {
	if p.User.ID == "" {
		return nil
	}
	return query.Eq(entity.AttrUserID, p.User.ID)
}

// UserConditions mirror acl.UserOwnershipChecker.
type UserConditions struct {
	Conditions
}

func (UserConditions) Own(p Params) query.Condition {
	if p.User.ID == "" {
		return nil
	}
	return query.Eq(entity.AttrID, p.User.ID)
}

// AccountConditions mirror acl.AccountOwnershipChecker.
type AccountConditions struct {
	Conditions
}

func (AccountConditions) Account(p Params) query.Condition {
	if len(p.User.AccountIDs) == 0 {
		return nil
	}
	return query.InStrings(entity.AttrID, p.User.AccountIDs)
}

// linkCondition matches records linked through ref to any of the ids.
func linkCondition(entityType string, ref acl.LinkRef, ids []string) query.Condition {
	switch ref.Kind {
	case acl.LinkSelf:
		return query.InStrings(entity.AttrID, ids)
	case acl.LinkBelongsTo:
		return query.InStrings(entity.IDAttribute(ref.Name), ids)
	case acl.LinkParent:
		return query.And(
			query.Eq(ref.Name+"Type", ref.Entity),
			query.InStrings(entity.IDAttribute(ref.Name), ids),
		)
	case acl.LinkMultiple:
		return query.HasLinked(junction(entityType, ref), ids)
	}
	return nil
}

// multipleLink resolves a link-multiple from metadata, falling back to a
// junction shared between entity types.
func multipleLink(p Params, name, relation, near, far string) query.Link {
	if ref, ok := p.Meta.Link(p.EntityType, name); ok && ref.RelationName != "" && ref.MidKeys[0] != "" {
		return query.Link{Name: name, Relation: ref.RelationName, NearKey: ref.MidKeys[0], FarKey: ref.MidKeys[1]}
	}
	return query.Link{Name: name, Relation: relation, NearKey: near, FarKey: far, EntityType: p.EntityType}
}

// junction derives the junction of a many-to-many link. Without a relation
// name the junction is named after both entity types in alphabetical order.
func junction(entityType string, ref acl.LinkRef) query.Link {
	l := query.Link{Name: ref.Name, Relation: ref.RelationName, NearKey: ref.MidKeys[0], FarKey: ref.MidKeys[1]}
	if l.Relation == "" {
		pair := []string{entityType, ref.Entity}
		sort.Strings(pair)
		l.Relation = lowerFirst(pair[0]) + pair[1]
	}
	if l.NearKey == "" {
		l.NearKey = lowerFirst(entityType) + "Id"
	}
	if l.FarKey == "" {
		l.FarKey = lowerFirst(ref.Entity) + "Id"
	}
	return l
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
