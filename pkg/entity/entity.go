// Package entity defines the minimal view of CRM records that access control
// decisions are made on.
package entity

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("entity not found")

// Common attribute names.
const (
	AttrID               = "id"
	AttrName             = "name"
	AttrDeleted          = "deleted"
	AttrAssignedUserID   = "assignedUserId"
	AttrAssignedUsersIDs = "assignedUsersIds"
	AttrTeamsIDs         = "teamsIds"
	AttrCreatedByID      = "createdById"
	AttrUserID           = "userId"
	AttrAccountID        = "accountId"
	AttrAccountsIDs      = "accountsIds"
	AttrContactID        = "contactId"
	AttrContactsIDs      = "contactsIds"
	AttrStatus           = "status"
	AttrType             = "type"
	AttrDefaultTeamID    = "defaultTeamId"
	AttrPortalID         = "portalId"
)

// Entity is a record of some entity type.
type Entity interface {
	EntityType() string
	GetID() string
	Get(attribute string) any
	Has(attribute string) bool
}

// LinkAttribute returns the attribute holding the ids of a link-multiple.
func LinkAttribute(link string) string {
	return link + "Ids"
}

// IDAttribute returns the attribute holding the id of a belongs-to link.
func IDAttribute(link string) string {
	return link + "Id"
}

// String returns a string attribute, or "" when it is unset or not a string.
func String(e Entity, attribute string) string {
	switch v := e.Get(attribute).(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// IDs returns a string-list attribute, or nil when it is unset.
func IDs(e Entity, attribute string) []string {
	switch v := e.Get(attribute).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// LinkIDs returns the ids of a link-multiple.
func LinkIDs(e Entity, link string) []string {
	return IDs(e, LinkAttribute(link))
}

// Contains reports whether id is among ids.
func Contains(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Intersects reports whether the two id lists share at least one id.
func Intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok && id != "" {
			return true
		}
	}
	return false
}
