package filters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/metadata"
)

const bundle = `
app:
  acl:
    valuePermissionList: [assignmentPermission, userPermission, portalPermission]
scopes:
  Lead: {entity: true, acl: true}
  Meeting: {entity: true, acl: true}
  Note: {entity: true, acl: true}
  Case: {entity: true, acl: true, aclPortal: true}
  Task: {entity: true, acl: true, aclPortal: true}
  Account: {entity: true, acl: true, aclPortal: true}
  Contact: {entity: true, acl: true, aclPortal: true}
  Import: {entity: true, acl: true}
  User: {entity: true, acl: true}
  Notification: {entity: true, acl: true, aclPortal: true}
  EmailFolder: {entity: true, acl: true}
  KnowledgeBaseArticle: {entity: true, acl: true, aclPortal: true}
  Report: {entity: true}
entityDefs:
  Lead:
    fields:
      assignedUser: {type: link}
      createdBy: {type: link}
      teams: {type: linkMultiple}
    links:
      teams: {type: hasMany, entity: Team, relationName: entityTeam}
  Meeting:
    fields:
      assignedUser: {type: link}
      assignedUsers: {type: linkMultiple}
      teams: {type: linkMultiple}
    links:
      assignedUsers: {type: hasMany, entity: User, relationName: entityUser}
      teams: {type: hasMany, entity: Team, relationName: entityTeam}
  Note:
    fields:
      createdBy: {type: link}
  Case:
    fields:
      createdBy: {type: link}
      teams: {type: linkMultiple}
    links:
      account: {type: belongsTo, entity: Account}
      contacts: {type: hasMany, entity: Contact, relationName: caseContact, midKeys: [caseId, contactId]}
  Task:
    fields:
      createdBy: {type: link}
    links:
      parent: {type: belongsToParent, entityList: [Contact, Account]}
  Account:
    fields:
      createdBy: {type: link}
    links:
      contacts: {type: hasMany, entity: Contact, relationName: accountContact, midKeys: [accountId, contactId]}
  Contact:
    fields:
      createdBy: {type: link}
    links:
      accounts: {type: hasMany, entity: Account}
  User:
    fields:
      teams: {type: linkMultiple}
    links:
      teams: {type: hasMany, entity: Team, relationName: teamUser, midKeys: [userId, teamId]}
  Notification:
    fields:
      user: {type: link}
  Import:
    fields:
      createdBy: {type: link}
  EmailFolder:
    fields:
      assignedUser: {type: link}
  KnowledgeBaseArticle:
    fields:
      status: {type: enum, activeOptions: [Published, Featured]}
aclDefs:
  Task:
    contactLink: parent
`

var (
	regular = &entity.User{ID: "u1", Type: entity.UserTypeRegular, TeamIDs: []string{"t1"}}
	portal  = &entity.User{ID: "p1", Type: entity.UserTypePortal, PortalID: "portal1",
		AccountIDs: []string{"a1"}, ContactID: "c1"}
	admin = &entity.User{ID: "root", Type: entity.UserTypeAdmin}
)

func newDefs(t *testing.T) *metadata.Defs {
	t.Helper()
	data, err := metadata.Parse([]byte(bundle))
	require.NoError(t, err)
	return metadata.NewDefs(metadata.NewStore(data, nil))
}

func params(t *testing.T, scope string, user *entity.User) Params {
	return Params{EntityType: scope, User: user, Meta: newDefs(t)}
}

// fixedTable serves the same read level for every scope and fixed
// permissions.
type fixedTable struct {
	level       acl.Level
	permissions map[string]acl.Level
}

func (t fixedTable) GetScopeData(string) acl.ScopeData {
	if t.level == acl.LevelNo {
		return acl.BoolScope(false)
	}
	return acl.LevelScope(map[acl.Action]acl.Level{acl.ActionRead: t.level})
}

func (t fixedTable) GetLevel(scope string, action acl.Action) acl.Level {
	return t.GetScopeData(scope).Get(action)
}

func (fixedTable) GetFieldData(string, string) acl.FieldData { return acl.FullFieldAccess }

func (fixedTable) GetFieldLevel(string, string, acl.Action) acl.FieldLevel { return acl.FieldYes }

func (t fixedTable) GetPermissionLevel(p string) acl.Level {
	if l, ok := t.permissions[p]; ok {
		return l
	}
	return acl.LevelNo
}

func (fixedTable) GetScopeForbiddenFieldList(string, acl.Action) []string { return nil }

func newManager(t *testing.T, defs *metadata.Defs, tbl acl.Table) *acl.Manager {
	t.Helper()
	registry := acl.NewRegistry(defs, defs)
	m := acl.NewManager(acl.TableProviderFunc(func(context.Context, *entity.User) (acl.Table, error) {
		return tbl, nil
	}), registry)
	require.NoError(t, acl.RegisterBuiltins(registry))
	require.NoError(t, registry.Freeze())
	return m
}
