package table

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "", time.Minute), mr
}

func sampleData() Data {
	return Data{
		Scopes: map[string]acl.ScopeData{
			"Lead":   levels("read", "team", "edit", "own", "create", "yes"),
			"Report": acl.BoolScope(true),
			"Case":   acl.BoolScope(false),
		},
		Fields: map[string]map[string]acl.FieldData{
			"Lead": {"email": {Read: acl.FieldYes, Edit: acl.FieldNo}},
		},
		Permissions: map[string]acl.Level{"assignment": acl.LevelTeam},
	}
}

func TestNewRedisClientInvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "invalid://url"})
	assert.Error(t, err)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	miss, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.Set(ctx, "k", sampleData()))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)

	tbl := NewTable(*got)
	assert.Equal(t, acl.LevelTeam, tbl.GetLevel("Lead", acl.ActionRead))
	assert.Equal(t, acl.LevelYes, tbl.GetLevel("Lead", acl.ActionCreate))
	assert.True(t, tbl.GetScopeData("Report").IsUnrestricted())
	assert.True(t, tbl.GetScopeData("Case").IsFalse())
	assert.Equal(t, acl.FieldNo, tbl.GetFieldLevel("Lead", "email", acl.ActionEdit))
	assert.Equal(t, acl.LevelTeam, tbl.GetPermissionLevel("assignment"))
}

func TestRedisStorePurgeStartsNewEpoch(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", sampleData()))
	require.NoError(t, store.Purge(ctx))

	epoch, err := store.Epoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), epoch)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, mr.Exists(store.tableKey(0, "k")), "old epoch expires by TTL")
}

func TestRedisStoreCorruptEntry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(store.tableKey(0, "k"), "not json"))
	_, err := store.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, mr.Exists(store.tableKey(0, "k")))
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", sampleData()))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheSharesTablesThroughRedis(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	c1 := NewCache(CacheConfig{}, WithRemote(store))
	c2 := NewCache(CacheConfig{}, WithRemote(store))

	var builds atomic.Int64
	build := func(context.Context) (*DefaultTable, error) {
		builds.Add(1)
		return NewTable(sampleData()), nil
	}

	_, err := c1.GetOrBuild(ctx, "k", []string{"r1"}, build)
	require.NoError(t, err)
	tbl, err := c2.GetOrBuild(ctx, "k", []string{"r1"}, build)
	require.NoError(t, err)

	assert.Equal(t, int64(1), builds.Load())
	assert.Equal(t, acl.LevelTeam, tbl.GetLevel("Lead", acl.ActionRead))

	require.NoError(t, c1.InvalidateRole(ctx, "r1"))
	_, err = c1.GetOrBuild(ctx, "k", []string{"r1"}, build)
	require.NoError(t, err)
	assert.Equal(t, int64(2), builds.Load())
}

func TestCacheListensForInvalidations(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c1 := NewCache(CacheConfig{}, WithRemote(store))
	c2 := NewCache(CacheConfig{}, WithRemote(store))

	done := make(chan error, 1)
	go func() { done <- c2.Listen(ctx, store) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(store.channel())[store.channel()] == 1
	}, time.Second, 10*time.Millisecond)

	var builds atomic.Int64
	_, err := c2.GetOrBuild(ctx, "k", []string{"r1"}, staticBuild(&builds))
	require.NoError(t, err)
	require.Equal(t, 1, c2.Len())

	require.NoError(t, c1.InvalidateRole(ctx, "r1"))
	assert.Eventually(t, func() bool { return c2.Len() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestRedisStoreSubscribeSkipsMalformed(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Invalidation, 2)
	go func() { _ = store.Subscribe(ctx, func(inv Invalidation) { got <- inv }) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(store.channel())[store.channel()] == 1
	}, time.Second, 10*time.Millisecond)

	mr.Publish(store.channel(), "garbage")
	require.NoError(t, store.Publish(ctx, Invalidation{Origin: "o", RoleID: "r1"}))

	select {
	case inv := <-got:
		assert.Equal(t, Invalidation{Origin: "o", RoleID: "r1"}, inv)
	case <-time.After(time.Second):
		t.Fatal("no invalidation received")
	}
}
