package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

func apply(scope string, f Filter) []query.Condition {
	qb := query.NewSelectBuilder().From(scope)
	if f != nil {
		f.Apply(qb)
	}
	return qb.Conditions()
}

var (
	leadTeams = query.Link{Name: "teams", Relation: "entityTeam", NearKey: "entityId", FarKey: "teamId", EntityType: "Lead"}
	userTeams = query.Link{Name: "teams", Relation: "teamUser", NearKey: "userId", FarKey: "teamId"}
)

func TestNo(t *testing.T) {
	assert.Equal(t, []query.Condition{query.IsNull("id")}, apply("Lead", No()))
}

func TestOnlyOwn(t *testing.T) {
	tests := []struct {
		scope string
		want  query.Condition
	}{
		{"Lead", query.Eq("assignedUserId", "u1")},
		{"Meeting", query.HasLinked(query.Link{
			Name: "assignedUsers", Relation: "entityUser", NearKey: "entityId", FarKey: "userId", EntityType: "Meeting",
		}, []string{"u1"})},
		{"Note", query.Eq("createdById", "u1")},
		{"Notification", query.IsNull("id")},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			got := apply(tt.scope, OnlyOwn(DefaultConditions{}, params(t, tt.scope, regular)))
			assert.Equal(t, []query.Condition{tt.want}, got)
		})
	}

	t.Run("user without id", func(t *testing.T) {
		got := apply("Lead", OnlyOwn(DefaultConditions{}, params(t, "Lead", &entity.User{})))
		assert.Equal(t, []query.Condition{query.Nothing()}, got)
	})
}

func TestOnlyTeam(t *testing.T) {
	got := apply("Lead", OnlyTeam(DefaultConditions{}, params(t, "Lead", regular)))
	assert.Equal(t, []query.Condition{query.Or(
		query.Eq("assignedUserId", "u1"),
		query.HasLinked(leadTeams, []string{"t1"}),
	)}, got)

	t.Run("no teams", func(t *testing.T) {
		u := &entity.User{ID: "u1"}
		got := apply("Lead", OnlyTeam(DefaultConditions{}, params(t, "Lead", u)))
		assert.Equal(t, []query.Condition{query.Eq("assignedUserId", "u1")}, got)
	})

	t.Run("junction from metadata", func(t *testing.T) {
		c := UserConditions{DefaultConditions{}}
		got := apply("User", OnlyTeam(c, params(t, "User", regular)))
		assert.Equal(t, []query.Condition{query.Or(
			query.Eq("id", "u1"),
			query.HasLinked(userTeams, []string{"t1"}),
		)}, got)
	})
}

func TestPortalOnlyOwn(t *testing.T) {
	got := apply("Case", PortalOnlyOwn(PortalConditions{}, params(t, "Case", portal)))
	assert.Equal(t, []query.Condition{query.Eq("createdById", "p1")}, got)

	got = apply("KnowledgeBaseArticle", PortalOnlyOwn(PortalConditions{}, params(t, "KnowledgeBaseArticle", portal)))
	assert.Equal(t, []query.Condition{query.IsNull("id")}, got, "no creator field")
}

func TestPortalOnlyContact(t *testing.T) {
	got := apply("Case", PortalOnlyContact(PortalConditions{}, params(t, "Case", portal)))
	require.Len(t, got, 1)
	or, ok := got[0].(query.Group)
	require.True(t, ok)
	assert.True(t, or.Or)
	assert.Equal(t, []query.Condition{
		query.Eq("createdById", "p1"),
		query.HasLinked(query.Link{Name: "contacts", Relation: "caseContact", NearKey: "caseId", FarKey: "contactId"}, []string{"c1"}),
	}, or.Items)

	t.Run("parent link", func(t *testing.T) {
		got := apply("Task", PortalOnlyContact(PortalConditions{}, params(t, "Task", portal)))
		assert.Equal(t, []query.Condition{query.Or(
			query.Eq("createdById", "p1"),
			query.And(query.Eq("parentType", "Contact"), query.InStrings("parentId", []string{"c1"})),
		)}, got)
	})

	t.Run("nothing to match", func(t *testing.T) {
		u := &entity.User{ID: "p2", Type: entity.UserTypePortal}
		got := apply("Notification", PortalOnlyContact(PortalConditions{}, params(t, "Notification", u)))
		assert.Equal(t, []query.Condition{query.IsNull("id")}, got)
	})
}

func TestPortalOnlyAccount(t *testing.T) {
	got := apply("Case", PortalOnlyAccount(PortalConditions{}, params(t, "Case", portal)))
	assert.Equal(t, []query.Condition{query.Or(
		query.Eq("createdById", "p1"),
		query.InStrings("accountId", []string{"a1"}),
		query.HasLinked(query.Link{Name: "contacts", Relation: "caseContact", NearKey: "caseId", FarKey: "contactId"}, []string{"c1"}),
	)}, got)

	t.Run("derived junction", func(t *testing.T) {
		got := apply("Contact", PortalOnlyAccount(PortalConditions{}, params(t, "Contact", portal)))
		assert.Equal(t, []query.Condition{query.Or(
			query.Eq("createdById", "p1"),
			query.HasLinked(query.Link{Name: "accounts", Relation: "accountContact", NearKey: "contactId", FarKey: "accountId"}, []string{"a1"}),
			query.InStrings("id", []string{"c1"}),
		)}, got)
	})

	t.Run("account override", func(t *testing.T) {
		c := AccountConditions{PortalConditions{}}
		got := apply("Account", PortalOnlyAccount(c, params(t, "Account", portal)))
		assert.Equal(t, []query.Condition{query.Or(
			query.Eq("createdById", "p1"),
			query.InStrings("id", []string{"a1"}),
			query.HasLinked(query.Link{Name: "contacts", Relation: "accountContact", NearKey: "accountId", FarKey: "contactId"}, []string{"c1"}),
		)}, got)
	})

	t.Run("nothing to match", func(t *testing.T) {
		u := &entity.User{ID: "p2", Type: entity.UserTypePortal}
		got := apply("Notification", PortalOnlyAccount(PortalConditions{}, params(t, "Notification", u)))
		assert.Equal(t, []query.Condition{query.IsNull("id")}, got)
	})
}

func TestMandatoryFilters(t *testing.T) {
	t.Run("email folder", func(t *testing.T) {
		assert.Equal(t, []query.Condition{query.Eq("assignedUserId", "u1")},
			apply("EmailFolder", EmailFolderFilter(params(t, "EmailFolder", regular))))
		assert.Nil(t, EmailFolderFilter(params(t, "EmailFolder", admin)))
	})

	t.Run("import", func(t *testing.T) {
		assert.Equal(t, []query.Condition{query.Eq("createdById", "u1")},
			apply("Import", CreatorFilter(params(t, "Import", regular))))
		assert.Nil(t, CreatorFilter(params(t, "Import", admin)))
	})

	t.Run("knowledge base", func(t *testing.T) {
		assert.Nil(t, KnowledgeBaseArticleFilter(params(t, "KnowledgeBaseArticle", regular)))

		qb := query.NewSelectBuilder().From("KnowledgeBaseArticle").Select("id")
		KnowledgeBaseArticleFilter(params(t, "KnowledgeBaseArticle", portal)).Apply(qb)
		sql, args, err := query.ToSQL(qb.Build())
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT "knowledge_base_article"."id" FROM "knowledge_base_article" WHERE "knowledge_base_article"."deleted" = FALSE`+
				` AND "knowledge_base_article"."status" IN ($1, $2)`+
				` AND "knowledge_base_article"."id" IN (SELECT "knowledge_base_article_portal"."knowledge_base_article_id"`+
				` FROM "knowledge_base_article_portal" WHERE "knowledge_base_article_portal"."deleted" = FALSE`+
				` AND "knowledge_base_article_portal"."portal_id" = $3)`,
			sql)
		assert.Equal(t, []any{"Published", "Featured", "portal1"}, args)
	})

	t.Run("knowledge base default status", func(t *testing.T) {
		p := params(t, "Article", portal)
		got := apply("Article", KnowledgeBaseArticleFilter(p))
		require.Len(t, got, 2)
		assert.Equal(t, query.InStrings("status", []string{StatusPublished}), got[0])
	})

	t.Run("user", func(t *testing.T) {
		assert.Nil(t, UserFilter(params(t, "User", admin)))

		got := apply("User", UserFilter(params(t, "User", regular)))
		assert.Equal(t, []query.Condition{query.Or(
			query.IsNull("type"),
			query.NotIn("type", "super-admin", "portal"),
		)}, got)

		p := params(t, "User", regular)
		p.Permission = func(string) acl.Level { return acl.LevelAll }
		got = apply("User", UserFilter(p))
		assert.Equal(t, []query.Condition{query.Or(
			query.IsNull("type"),
			query.NotIn("type", "super-admin"),
		)}, got)
	})
}
