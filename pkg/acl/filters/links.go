package filters

import (
	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

// LinkSource lists the link-multiples of an entity type that ownership
// checks read. Repositories load the ids of these links onto records, using
// the same junctions the filters query.
type LinkSource struct {
	Meta Metadata
}

// Links returns the ownership-relevant link-multiples of entityType.
func (s LinkSource) Links(entityType string) []query.Link {
	p := Params{EntityType: entityType, User: &entity.User{}, Meta: s.Meta}

	var links []query.Link
	if s.Meta.HasAssignedUsersField(entityType) {
		links = append(links, multipleLink(p, "assignedUsers", "entityUser", "entityId", "userId"))
	}
	if s.Meta.HasTeamsField(entityType) {
		links = append(links, multipleLink(p, "teams", "entityTeam", "entityId", "teamId"))
	}
	for _, get := range []func(string) (acl.LinkRef, bool){s.Meta.AccountLink, s.Meta.ContactLink} {
		if ref, ok := get(entityType); ok && ref.Kind == acl.LinkMultiple {
			links = append(links, junction(entityType, ref))
		}
	}
	return links
}
