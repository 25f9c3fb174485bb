package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
)

var (
	regularUser = &entity.User{ID: "u1", Type: entity.UserTypeRegular, TeamIDs: []string{"t1"}}
	portalUser  = &entity.User{ID: "p1", Type: entity.UserTypePortal, PortalID: "portal1"}
	adminUser   = &entity.User{ID: "a1", Type: entity.UserTypeAdmin}
)

func TestBuildCombinesRoles(t *testing.T) {
	r1 := Role{ID: "r1", Data: map[string]acl.ScopeData{
		"Lead": levels("create", "yes", "read", "own", "edit", "no", "delete", "no"),
	}}
	r2 := Role{ID: "r2", Data: map[string]acl.ScopeData{
		"Lead": levels("read", "team", "edit", "own"),
	}}

	tbl := NewBuilder(newStubMeta()).Build(regularUser, []Role{r1, r2})

	assert.Equal(t, acl.LevelYes, tbl.GetLevel("Lead", acl.ActionCreate))
	assert.Equal(t, acl.LevelTeam, tbl.GetLevel("Lead", acl.ActionRead))
	assert.Equal(t, acl.LevelOwn, tbl.GetLevel("Lead", acl.ActionEdit))
	assert.Equal(t, acl.LevelNo, tbl.GetLevel("Lead", acl.ActionDelete))
	assert.Equal(t, acl.LevelNo, tbl.GetLevel("Lead", acl.ActionStream))
	assert.True(t, tbl.GetScopeData("Lead").IsTrue())
}

func TestBuildIsOrderIndependent(t *testing.T) {
	r1 := Role{ID: "r1", Data: map[string]acl.ScopeData{"Lead": levels("read", "own"), "Case": acl.BoolScope(true)}}
	r2 := Role{ID: "r2", Data: map[string]acl.ScopeData{"Lead": levels("read", "all", "edit", "team")}}
	b := NewBuilder(newStubMeta())

	a := b.Build(regularUser, []Role{r1, r2})
	c := b.Build(regularUser, []Role{r2, r1})
	assert.Equal(t, a.Data(), c.Data())
}

func TestBuildNormalizesScopes(t *testing.T) {
	role := Role{ID: "r1", Data: map[string]acl.ScopeData{
		"Lead":    levels("read", "no", "edit", "no"),
		"Case":    levels("read", "account", "edit", "contact"),
		"Account": acl.BoolScope(true),
		"Report":  levels("read", "all"),
	}}
	tbl := NewBuilder(newStubMeta()).Build(regularUser, []Role{role})

	t.Run("all no map is false", func(t *testing.T) {
		assert.True(t, tbl.GetScopeData("Lead").IsFalse())
	})
	t.Run("portal levels clamp to own", func(t *testing.T) {
		assert.Equal(t, acl.LevelOwn, tbl.GetLevel("Case", acl.ActionRead))
		assert.Equal(t, acl.LevelOwn, tbl.GetLevel("Case", acl.ActionEdit))
	})
	t.Run("true expands to levels", func(t *testing.T) {
		d := tbl.GetScopeData("Account")
		assert.False(t, d.IsBoolean())
		assert.Equal(t, acl.LevelYes, d.Get(acl.ActionCreate))
		assert.Equal(t, acl.LevelAll, d.Get(acl.ActionDelete))
	})
	t.Run("boolean scope", func(t *testing.T) {
		assert.True(t, tbl.GetScopeData("Report").IsUnrestricted())
	})
	t.Run("unknown scope", func(t *testing.T) {
		assert.True(t, tbl.GetScopeData("Opportunity").IsFalse())
		assert.Equal(t, acl.LevelNo, tbl.GetLevel("Opportunity", acl.ActionRead))
	})
}

func TestBuildWithoutRoles(t *testing.T) {
	tbl := NewBuilder(newStubMeta()).Build(regularUser, nil)
	for _, scope := range []string{"Lead", "Case", "Account", "Report"} {
		assert.True(t, tbl.GetScopeData(scope).IsFalse(), scope)
	}
	assert.Equal(t, acl.LevelTeam, tbl.GetPermissionLevel("user"))
	assert.Equal(t, acl.LevelNo, tbl.GetPermissionLevel("assignment"))
}

func TestBuildAdmin(t *testing.T) {
	role := Role{ID: "r1", Data: map[string]acl.ScopeData{"Lead": levels("read", "own")}}
	tbl := NewBuilder(newStubMeta()).Build(adminUser, []Role{role})

	assert.True(t, tbl.IsAdmin())
	assert.Equal(t, acl.LevelAll, tbl.GetLevel("Lead", acl.ActionRead))
	assert.Equal(t, acl.LevelYes, tbl.GetLevel("Lead", acl.ActionCreate))
	assert.Equal(t, acl.LevelAll, tbl.GetLevel("Anything", acl.ActionDelete))
	assert.Equal(t, acl.LevelAll, tbl.GetPermissionLevel("assignment"))
	assert.Equal(t, acl.FullFieldAccess, tbl.GetFieldData("Lead", "password"))
	assert.Empty(t, tbl.GetScopeForbiddenFieldList("Lead", acl.ActionRead))
}

func TestBuildPortal(t *testing.T) {
	role := Role{ID: "pr1", Data: map[string]acl.ScopeData{
		"Lead": levels("read", "all"),
		"Case": levels("create", "yes", "read", "account", "edit", "team"),
	}}
	tbl := NewBuilder(newStubMeta()).Build(portalUser, []Role{role})

	assert.True(t, tbl.GetScopeData("Lead").IsFalse(), "not a portal scope")
	assert.Equal(t, acl.LevelAccount, tbl.GetLevel("Case", acl.ActionRead))
	assert.Equal(t, acl.LevelOwn, tbl.GetLevel("Case", acl.ActionEdit))
	assert.Equal(t, acl.LevelYes, tbl.GetLevel("Case", acl.ActionCreate))
}

func TestBuildFields(t *testing.T) {
	r1 := Role{ID: "r1", FieldData: map[string]map[string]acl.FieldData{
		"Lead": {
			"email": {Read: acl.FieldYes, Edit: acl.FieldNo},
			"phone": {Read: acl.FieldNo, Edit: acl.FieldNo},
		},
	}}
	r2 := Role{ID: "r2", FieldData: map[string]map[string]acl.FieldData{
		"Lead": {"phone": {Read: acl.FieldYes, Edit: acl.FieldNo}},
	}}
	b := NewBuilder(newStubMeta())

	t.Run("single role", func(t *testing.T) {
		tbl := b.Build(regularUser, []Role{r1})
		assert.Equal(t, acl.FieldYes, tbl.GetFieldLevel("Lead", "email", acl.ActionRead))
		assert.Equal(t, acl.FieldNo, tbl.GetFieldLevel("Lead", "email", acl.ActionEdit))
		assert.Equal(t, []string{"password", "phone"}, tbl.GetScopeForbiddenFieldList("Lead", acl.ActionRead))
		assert.Equal(t, []string{"email", "password", "phone"}, tbl.GetScopeForbiddenFieldList("Lead", acl.ActionEdit))
	})

	t.Run("unmentioned field is unrestricted for that role", func(t *testing.T) {
		tbl := b.Build(regularUser, []Role{r1, r2})
		assert.Equal(t, acl.FullFieldAccess, tbl.GetFieldData("Lead", "email"))
		assert.Equal(t, acl.FieldData{Read: acl.FieldYes, Edit: acl.FieldNo}, tbl.GetFieldData("Lead", "phone"))
	})

	t.Run("mandatory restrictions win", func(t *testing.T) {
		grant := Role{ID: "r3", FieldData: map[string]map[string]acl.FieldData{
			"Lead": {"password": acl.FullFieldAccess},
		}}
		tbl := b.Build(regularUser, []Role{grant})
		assert.Equal(t, acl.FieldNo, tbl.GetFieldLevel("Lead", "password", acl.ActionRead))
	})
}

func TestBuildPermissions(t *testing.T) {
	r1 := Role{ID: "r1", Permissions: map[string]acl.Level{"assignment": acl.LevelTeam}}
	r2 := Role{ID: "r2", Permissions: map[string]acl.Level{"assignment": acl.LevelOwn, "user": acl.LevelNo}}
	tbl := NewBuilder(newStubMeta()).Build(regularUser, []Role{r1, r2})

	assert.Equal(t, acl.LevelTeam, tbl.GetPermissionLevel("assignment"))
	assert.Equal(t, acl.LevelNo, tbl.GetPermissionLevel("user"), "a role setting it overrides the default")
	assert.Equal(t, acl.LevelNo, tbl.GetPermissionLevel("portal"))
	assert.Equal(t, acl.LevelNo, tbl.GetPermissionLevel("unknown"))
}

func TestTableMap(t *testing.T) {
	role := Role{ID: "r1",
		Data:        map[string]acl.ScopeData{"Lead": levels("read", "own")},
		Permissions: map[string]acl.Level{"assignment": acl.LevelTeam},
	}
	m := NewBuilder(newStubMeta()).Build(regularUser, []Role{role}).Map()

	scopes, ok := m["table"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, scopes["Case"])
	lead, ok := scopes["Lead"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "own", lead["read"])
	assert.Equal(t, "no", lead["create"])
	assert.Equal(t, "team", m["assignmentPermission"])
	assert.Contains(t, m, "fieldTable")
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("r1", "Sales",
		[]byte(`{"Lead":{"read":"team","edit":"own"},"Report":true,"Case":false}`),
		[]byte(`{"Lead":{"email":"read","phone":{"read":"yes","edit":"no"}}}`),
		[]byte(`{"assignmentPermission":"team","userPermission":"bogus"}`),
	)
	require.NoError(t, err)

	assert.Equal(t, "Sales", r.Name)
	assert.Equal(t, acl.LevelTeam, r.Data["Lead"].Get(acl.ActionRead))
	assert.True(t, r.Data["Report"].IsUnrestricted())
	assert.True(t, r.Data["Case"].IsFalse())
	assert.Equal(t, acl.FieldData{Read: acl.FieldYes, Edit: acl.FieldNo}, r.FieldData["Lead"]["email"])
	assert.Equal(t, acl.FieldData{Read: acl.FieldYes, Edit: acl.FieldNo}, r.FieldData["Lead"]["phone"])
	assert.Equal(t, acl.LevelTeam, r.Permissions["assignment"])
	assert.Equal(t, acl.LevelNo, r.Permissions["user"])

	empty, err := ParseRole("r2", "Empty", nil, []byte("null"), nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Data)

	_, err = ParseRole("r3", "Broken", []byte(`{"Lead":`), nil, nil)
	assert.Error(t, err)
}
