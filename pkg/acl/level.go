package acl

import "strings"

// Level is an access level granted on a scope action or a permission.
type Level string

const (
	LevelNo      Level = "no"
	LevelOwn     Level = "own"
	LevelContact Level = "contact"
	LevelAccount Level = "account"
	LevelTeam    Level = "team"
	LevelAll     Level = "all"
	LevelYes     Level = "yes"
)

// Levels are totally ordered. Regular tables use no < own < team < all and
// portal tables use no < own < contact < account < all, so a single order
// keeps both sub-orders intact.
var levelRank = map[Level]int{
	LevelNo:      0,
	LevelOwn:     1,
	LevelContact: 2,
	LevelAccount: 3,
	LevelTeam:    4,
	LevelAll:     5,
	LevelYes:     6,
}

// ParseLevel parses a level string. Unknown values yield LevelNo.
func ParseLevel(s string) Level {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRank[l]; ok {
		return l
	}
	return LevelNo
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// Rank returns the position of l in the level order.
func (l Level) Rank() int {
	return levelRank[l]
}

// Normalize maps unknown levels to LevelNo.
func (l Level) Normalize() Level {
	if l.Valid() {
		return l
	}
	return LevelNo
}

// Grants reports whether the level grants anything at all.
func (l Level) Grants() bool {
	return l.Rank() > 0
}

// AtLeast reports whether l is at least as permissive as other.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// IsUnrestricted reports whether l needs no ownership check.
func (l Level) IsUnrestricted() bool {
	return l == LevelAll || l == LevelYes
}

func (l Level) String() string { return string(l) }

// Combine returns the more permissive of two levels. It is associative and
// commutative with identity LevelNo.
func Combine(a, b Level) Level {
	a, b = a.Normalize(), b.Normalize()
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// MaxLevel folds levels with Combine.
func MaxLevel(levels ...Level) Level {
	result := LevelNo
	for _, l := range levels {
		result = Combine(result, l)
	}
	return result
}

// Action is an operation on a scope.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionStream Action = "stream"
)

// Actions lists all actions in canonical order.
var Actions = []Action{ActionCreate, ActionRead, ActionEdit, ActionDelete, ActionStream}

// ParseAction parses an action string.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, true
		}
	}
	return "", false
}

func (a Action) String() string { return string(a) }
