package acl

import "github.com/platinummonkey/crmacl/pkg/entity"

// AssignmentChecker decides whether a user may keep a record's assignment
// (assigned user and teams) as it is.
type AssignmentChecker interface {
	Check(user *entity.User, e entity.Entity) bool
}

// AssignmentHelper exposes the assignment predicates of an ownership checker.
type AssignmentHelper struct {
	Ownership OwnershipChecker
}

func (h AssignmentHelper) CheckAssignedUser(user *entity.User, e entity.Entity) bool {
	return h.Ownership.CheckAssignedUser(user, e)
}

func (h AssignmentHelper) CheckTeams(user *entity.User, e entity.Entity) bool {
	return h.Ownership.CheckTeams(user, e)
}

// DefaultAssignmentChecker fails when an assignment part is present and
// its check fails. A record without assigned user and teams passes.
type DefaultAssignmentChecker struct {
	Helper AssignmentHelper
}

// NewDefaultAssignmentChecker creates the assignment checker of a scope.
func NewDefaultAssignmentChecker(ownership OwnershipChecker) *DefaultAssignmentChecker {
	return &DefaultAssignmentChecker{Helper: AssignmentHelper{Ownership: ownership}}
}

func (c *DefaultAssignmentChecker) Check(user *entity.User, e entity.Entity) bool {
	hasAssigned := entity.String(e, entity.AttrAssignedUserID) != "" ||
		len(entity.IDs(e, entity.AttrAssignedUsersIDs)) > 0
	if hasAssigned && !c.Helper.CheckAssignedUser(user, e) {
		return false
	}
	if len(entity.IDs(e, entity.AttrTeamsIDs)) > 0 && !c.Helper.CheckTeams(user, e) {
		return false
	}
	return true
}
