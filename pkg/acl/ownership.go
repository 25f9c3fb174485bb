package acl

import "github.com/platinummonkey/crmacl/pkg/entity"

// LinkKind tells how a record refers to an account or contact.
type LinkKind string

const (
	// LinkBelongsTo is a single foreign id held in <link>Id.
	LinkBelongsTo LinkKind = "belongsTo"
	// LinkMultiple is a list of foreign ids held in <link>Ids.
	LinkMultiple LinkKind = "hasMany"
	// LinkParent is a polymorphic parent held in <link>Id and <link>Type.
	LinkParent LinkKind = "belongsToParent"
	// LinkSelf means the record itself is the account or contact.
	LinkSelf LinkKind = "self"
)

// LinkRef names a link of an entity type. Entity is the foreign entity
// type, which parent links need to tell records apart.
type LinkRef struct {
	Name         string
	Kind         LinkKind
	Entity       string
	RelationName string
	MidKeys      [2]string
}

// FieldHelper answers which ownership fields an entity type defines.
type FieldHelper interface {
	HasAssignedUsersField(entityType string) bool
	HasAssignedUserField(entityType string) bool
	HasCreatedByField(entityType string) bool
	HasTeamsField(entityType string) bool
	AccountLink(entityType string) (LinkRef, bool)
	ContactLink(entityType string) (LinkRef, bool)
}

// OwnershipChecker decides whether a record belongs to a user.
type OwnershipChecker interface {
	CheckAssignedUser(user *entity.User, e entity.Entity) bool
	CheckTeams(user *entity.User, e entity.Entity) bool
	CheckOwn(user *entity.User, e entity.Entity) bool
	CheckAccount(user *entity.User, e entity.Entity) bool
	CheckContact(user *entity.User, e entity.Entity) bool
}

// DefaultOwnershipChecker decides ownership from the conventional fields of
// the entity type.
type DefaultOwnershipChecker struct {
	Fields FieldHelper
}

// NewDefaultOwnershipChecker creates the ownership checker of regular users.
func NewDefaultOwnershipChecker(fields FieldHelper) *DefaultOwnershipChecker {
	return &DefaultOwnershipChecker{Fields: fields}
}

// CheckAssignedUser reports whether the user is the assigned user or among
// the assigned users.
func (c *DefaultOwnershipChecker) CheckAssignedUser(user *entity.User, e entity.Entity) bool {
	if entity.String(e, entity.AttrAssignedUserID) == user.ID && user.ID != "" {
		return true
	}
	return entity.Contains(entity.IDs(e, entity.AttrAssignedUsersIDs), user.ID)
}

// CheckTeams reports whether the record shares a team with the user.
func (c *DefaultOwnershipChecker) CheckTeams(user *entity.User, e entity.Entity) bool {
	return entity.Intersects(entity.IDs(e, entity.AttrTeamsIDs), user.TeamIDs)
}

// CheckOwn uses the first ownership field the type defines: assigned users,
// then assigned user, then creator.
func (c *DefaultOwnershipChecker) CheckOwn(user *entity.User, e entity.Entity) bool {
	t := e.EntityType()
	switch {
	case c.Fields.HasAssignedUsersField(t):
		return entity.Contains(entity.IDs(e, entity.AttrAssignedUsersIDs), user.ID)
	case c.Fields.HasAssignedUserField(t):
		return user.ID != "" && entity.String(e, entity.AttrAssignedUserID) == user.ID
	case c.Fields.HasCreatedByField(t):
		return user.ID != "" && entity.String(e, entity.AttrCreatedByID) == user.ID
	}
	return false
}

// CheckAccount reports whether the record is linked to one of the user's
// accounts.
func (c *DefaultOwnershipChecker) CheckAccount(user *entity.User, e entity.Entity) bool {
	link, ok := c.Fields.AccountLink(e.EntityType())
	if !ok {
		return false
	}
	return linkMatches(e, link, user.AccountIDs)
}

// CheckContact reports whether the record is linked to the user's contact.
func (c *DefaultOwnershipChecker) CheckContact(user *entity.User, e entity.Entity) bool {
	if user.ContactID == "" {
		return false
	}
	link, ok := c.Fields.ContactLink(e.EntityType())
	if !ok {
		return false
	}
	return linkMatches(e, link, []string{user.ContactID})
}

func linkMatches(e entity.Entity, link LinkRef, ids []string) bool {
	switch link.Kind {
	case LinkSelf:
		return entity.Contains(ids, e.GetID())
	case LinkBelongsTo:
		return entity.Contains(ids, entity.String(e, entity.IDAttribute(link.Name)))
	case LinkMultiple:
		return entity.Intersects(entity.LinkIDs(e, link.Name), ids)
	case LinkParent:
		return entity.String(e, link.Name+"Type") == link.Entity &&
			entity.Contains(ids, entity.String(e, entity.IDAttribute(link.Name)))
	}
	return false
}

// PortalOwnershipChecker decides ownership for portal users, for whom a
// record is their own when they created it.
type PortalOwnershipChecker struct {
	DefaultOwnershipChecker
}

// NewPortalOwnershipChecker creates the ownership checker of portal users.
func NewPortalOwnershipChecker(fields FieldHelper) *PortalOwnershipChecker {
	return &PortalOwnershipChecker{DefaultOwnershipChecker{Fields: fields}}
}

func (c *PortalOwnershipChecker) CheckOwn(user *entity.User, e entity.Entity) bool {
	if !c.Fields.HasCreatedByField(e.EntityType()) {
		return false
	}
	return user.ID != "" && entity.String(e, entity.AttrCreatedByID) == user.ID
}

// UserIDOwnershipChecker treats records addressed to a user, such as
// notifications, as owned by that user.
type UserIDOwnershipChecker struct {
	OwnershipChecker
}

func (c UserIDOwnershipChecker) CheckOwn(user *entity.User, e entity.Entity) bool {
	return user.ID != "" && entity.String(e, entity.AttrUserID) == user.ID
}

// AccountOwnershipChecker checks account records against the user's
// account list.
type AccountOwnershipChecker struct {
	OwnershipChecker
}

func (c AccountOwnershipChecker) CheckAccount(user *entity.User, e entity.Entity) bool {
	return entity.Contains(user.AccountIDs, e.GetID())
}

// UserOwnershipChecker treats a user record as owned by that user.
type UserOwnershipChecker struct {
	OwnershipChecker
}

func (c UserOwnershipChecker) CheckOwn(user *entity.User, e entity.Entity) bool {
	return user.ID != "" && e.GetID() == user.ID
}

func (c UserOwnershipChecker) CheckAssignedUser(user *entity.User, e entity.Entity) bool {
	return c.CheckOwn(user, e)
}
