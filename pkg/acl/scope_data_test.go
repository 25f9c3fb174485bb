package acl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeDataBoolean(t *testing.T) {
	var zero ScopeData
	assert.True(t, zero.IsFalse())
	assert.False(t, zero.IsTrue())

	d := BoolScope(true)
	assert.True(t, d.IsTrue())
	assert.True(t, d.IsUnrestricted())
	assert.Equal(t, LevelAll, d.Get(ActionRead))
	assert.Equal(t, LevelYes, d.Get(ActionCreate))
	assert.Equal(t, LevelNo, BoolScope(false).Get(ActionRead))
}

func TestParseScopeData(t *testing.T) {
	d, err := ParseScopeData(map[string]any{"read": "team", "edit": "own", "unknown": "all"})
	require.NoError(t, err)

	assert.True(t, d.IsTrue())
	assert.False(t, d.IsBoolean())
	assert.Equal(t, LevelTeam, d.Get(ActionRead))
	assert.Equal(t, LevelOwn, d.Get(ActionEdit))
	assert.Equal(t, LevelNo, d.Get(ActionDelete))
	assert.Equal(t, []Action{ActionRead, ActionEdit}, d.Actions())

	_, err = ParseScopeData(map[string]any{"read": 1})
	assert.Error(t, err)

	_, err = ParseScopeData(42)
	assert.Error(t, err)

	d, err = ParseScopeData(nil)
	require.NoError(t, err)
	assert.True(t, d.IsFalse())
}

func TestScopeDataJSON(t *testing.T) {
	var table map[string]ScopeData
	require.NoError(t, json.Unmarshal([]byte(`{"Lead":{"read":"own"},"Import":true,"Case":false}`), &table))

	assert.Equal(t, LevelOwn, table["Lead"].Get(ActionRead))
	assert.True(t, table["Import"].IsUnrestricted())
	assert.True(t, table["Case"].IsFalse())

	b, err := json.Marshal(table["Lead"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"read":"own"}`, string(b))
}

func TestCombineScopeData(t *testing.T) {
	a := levels("read", "own", "edit", "team")
	b := levels("read", "team", "delete", "own")

	c := CombineScopeData(a, b)
	assert.Equal(t, LevelTeam, c.Get(ActionRead))
	assert.Equal(t, LevelTeam, c.Get(ActionEdit))
	assert.Equal(t, LevelOwn, c.Get(ActionDelete))
	assert.Equal(t, c.String(), CombineScopeData(b, a).String())

	assert.True(t, CombineScopeData(a, BoolScope(true)).IsUnrestricted())
	assert.Equal(t, a.String(), CombineScopeData(BoolScope(false), a).String())
}
