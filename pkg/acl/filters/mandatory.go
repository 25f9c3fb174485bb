package filters

import (
	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

// MandatoryFilter returns the filter a scope always applies, or nil.
type MandatoryFilter func(p Params) Filter

// StatusPublished is the status portal users see knowledge base articles in
// when metadata lists no active options.
const StatusPublished = "Published"

// EmailFolderFilter limits non-admins to their own folders.
func EmailFolderFilter(p Params) Filter {
	if p.User.IsAdmin() {
		return nil
	}
	return where(query.Eq(entity.AttrAssignedUserID, p.User.ID))
}

// KnowledgeBaseArticleFilter limits portal users to active articles
// published in their portal.
func KnowledgeBaseArticleFilter(p Params) Filter {
	if !p.User.IsPortal() {
		return nil
	}
	statuses := p.Meta.FieldActiveOptions(p.EntityType, "status")
	if len(statuses) == 0 {
		statuses = []string{StatusPublished}
	}
	portal := query.NewSelectBuilder().
		From(p.EntityType+"Portal").
		Select("knowledgeBaseArticleId").
		Where(query.Eq(entity.AttrPortalID, p.User.PortalID)).
		Build()

	return FilterFunc(func(qb *query.SelectBuilder) {
		qb.Where(query.InStrings(entity.AttrStatus, statuses))
		qb.Where(query.InQuery(entity.AttrID, portal))
	})
}

// CreatorFilter limits non-admins to the records they created.
func CreatorFilter(p Params) Filter {
	if p.User.IsAdmin() {
		return nil
	}
	return where(query.Eq(entity.AttrCreatedByID, p.User.ID))
}

// UserFilter hides super-admins from everyone else, and portal users from
// users without the portal permission.
func UserFilter(p Params) Filter {
	if p.User.IsAdmin() {
		return nil
	}
	hidden := []any{string(entity.UserTypeSuperAdmin)}
	if !p.permission(acl.PermissionPortal).IsUnrestricted() {
		hidden = append(hidden, string(entity.UserTypePortal))
	}
	return where(query.Or(
		query.IsNull(entity.AttrType),
		query.NotIn(entity.AttrType, hidden...),
	))
}
