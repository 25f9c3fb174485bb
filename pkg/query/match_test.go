package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

func TestMatch(t *testing.T) {
	lead := entity.NewRecord("Lead", "l1", map[string]any{
		"assignedUserId": "u1",
		"status":         "New",
		"teamsIds":       []string{"t1"},
		"accountId":      "",
	})

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq", Eq("assignedUserId", "u1"), true},
		{"eq other", Eq("assignedUserId", "u2"), false},
		{"eq nil is null", Eq("accountId", nil), true},
		{"empty string is null", IsNull("accountId"), true},
		{"not null", IsNotNull("status"), true},
		{"not eq", NotEq("status", "Closed"), true},
		{"in", In("status", "New", "Assigned"), true},
		{"not in", Comparison{Attribute: "status", Operator: OpNotIn, Values: []any{"New"}}, false},
		{"empty in", In("status"), false},
		{"nothing", Nothing(), false},
		{"link", HasLinked(teamsLink, []string{"t9", "t1"}), true},
		{"link miss", HasLinked(teamsLink, []string{"t9"}), false},
		{"or", Or(Eq("assignedUserId", "u2"), HasLinked(teamsLink, []string{"t1"})), true},
		{"empty or", Or(), false},
		{"and", And(Eq("assignedUserId", "u1"), Eq("status", "Closed")), false},
		{"empty and", And(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.cond, lead)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchSubqueryUnsupported(t *testing.T) {
	_, err := Match(InQuery("id", NewSelectBuilder().From("X").Build()), entity.NewRecord("Lead", "l1", nil))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSelectMatchAll(t *testing.T) {
	q := NewSelectBuilder().From("Lead").Where(Eq("status", "New"), IsNotNull("assignedUserId")).Build()

	ok, err := q.MatchAll(entity.NewRecord("Lead", "l1", map[string]any{"status": "New", "assignedUserId": "u1"}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.MatchAll(entity.NewRecord("Lead", "l2", map[string]any{"status": "New"}))
	require.NoError(t, err)
	assert.False(t, ok)
}
