//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/acl/table"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/query"
)

func setupPostgres(t *testing.T) *ConnectionManager {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("crmacl_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cm, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  connStr,
		ReplicaURLs: []string{connStr},
		MaxConns:    4,
		MinConns:    1,
		Timeout:     10 * time.Second,
		MaxLifetime: time.Hour,
		MaxIdleTime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })

	require.NoError(t, Migrate(ctx, cm.Primary()))
	_, err = cm.Primary().ExecContext(ctx, `
		CREATE TABLE "case" (
			id TEXT PRIMARY KEY,
			name TEXT,
			account_id TEXT,
			created_by_id TEXT,
			deleted BOOLEAN NOT NULL DEFAULT FALSE
		);
		INSERT INTO "user" (id, user_name, type, portal_id, contact_id) VALUES ('p1', 'portal', 'portal', 'portal1', 'c1');
		INSERT INTO account_portal_user (account_id, user_id) VALUES ('a1', 'p1');
		INSERT INTO portal_role (id, name, data) VALUES ('pr1', 'Customers', '{"Case":{"read":"account"}}');
		INSERT INTO portal_portal_role (portal_id, portal_role_id) VALUES ('portal1', 'pr1');
		INSERT INTO "case" (id, name, account_id, created_by_id) VALUES
			('k1', 'Mine', 'a1', 'x'),
			('k2', 'Theirs', 'a2', 'x');
	`)
	require.NoError(t, err)
	return cm
}

func TestPostgres_PortalAccountFlow(t *testing.T) {
	cm := setupPostgres(t)
	ctx := context.Background()
	repo := NewRepository(cm)
	store := NewRoleStore(cm)

	require.NoError(t, cm.HealthCheck(ctx))

	u, err := repo.GetUser(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, u.AccountIDs)

	ids, err := table.DefaultRoleListProvider{Store: store}.RoleIDs(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"pr1"}, ids)

	roles, err := store.GetRoles(ctx, ids)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, acl.LevelAccount, roles[0].Data["Case"].Get(acl.ActionRead))

	found, err := repo.Find(ctx, query.NewSelectBuilder().
		From("Case").
		Where(query.InStrings(entity.AttrAccountID, u.AccountIDs)).
		Build())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "k1", found[0].GetID())
}
