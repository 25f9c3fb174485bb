package acl

import (
	"encoding/json"
	"fmt"
	"sort"
)

type scopeKind uint8

const (
	scopeFalse scopeKind = iota
	scopeTrue
	scopeLevels
)

// ScopeData is the effective grant of a scope: either a plain boolean or a
// per-action level map. The zero value is boolean false.
type ScopeData struct {
	kind   scopeKind
	levels map[Action]Level
}

// BoolScope returns boolean scope data.
func BoolScope(v bool) ScopeData {
	if v {
		return ScopeData{kind: scopeTrue}
	}
	return ScopeData{kind: scopeFalse}
}

// LevelScope returns level-map scope data. The map is copied.
func LevelScope(levels map[Action]Level) ScopeData {
	cp := make(map[Action]Level, len(levels))
	for a, l := range levels {
		cp[a] = l.Normalize()
	}
	return ScopeData{kind: scopeLevels, levels: cp}
}

// ParseScopeData converts a decoded JSON/YAML value (bool, nil or a map of
// action to level) to ScopeData.
func ParseScopeData(raw any) (ScopeData, error) {
	switch v := raw.(type) {
	case nil:
		return BoolScope(false), nil
	case bool:
		return BoolScope(v), nil
	case ScopeData:
		return v, nil
	case map[string]string:
		levels := make(map[Action]Level, len(v))
		for k, l := range v {
			if a, ok := ParseAction(k); ok {
				levels[a] = ParseLevel(l)
			}
		}
		return LevelScope(levels), nil
	case map[string]any:
		levels := make(map[Action]Level, len(v))
		for k, l := range v {
			a, ok := ParseAction(k)
			if !ok {
				continue
			}
			s, ok := l.(string)
			if !ok {
				return ScopeData{}, fmt.Errorf("invalid level %v for action %s", l, k)
			}
			levels[a] = ParseLevel(s)
		}
		return LevelScope(levels), nil
	}
	return ScopeData{}, fmt.Errorf("invalid scope data type %T", raw)
}

// IsBoolean reports whether the data is the plain boolean form.
func (d ScopeData) IsBoolean() bool { return d.kind != scopeLevels }

// IsFalse reports whether the data is boolean false.
func (d ScopeData) IsFalse() bool { return d.kind == scopeFalse }

// IsTrue reports whether the scope is accessible at all, i.e. the data is not
// boolean false.
func (d ScopeData) IsTrue() bool { return d.kind != scopeFalse }

// IsUnrestricted reports whether the data is boolean true.
func (d ScopeData) IsUnrestricted() bool { return d.kind == scopeTrue }

// Get returns the level of an action. Boolean true yields LevelAll, boolean
// false and missing actions yield LevelNo.
func (d ScopeData) Get(action Action) Level {
	switch d.kind {
	case scopeTrue:
		if action == ActionCreate {
			return LevelYes
		}
		return LevelAll
	case scopeLevels:
		if l, ok := d.levels[action]; ok {
			return l
		}
	}
	return LevelNo
}

// Has reports whether the level map mentions the action.
func (d ScopeData) Has(action Action) bool {
	if d.kind != scopeLevels {
		return false
	}
	_, ok := d.levels[action]
	return ok
}

// Actions returns the actions mentioned by a level map in canonical order.
func (d ScopeData) Actions() []Action {
	if d.kind != scopeLevels {
		return nil
	}
	out := make([]Action, 0, len(d.levels))
	for _, a := range Actions {
		if _, ok := d.levels[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Levels returns a copy of the level map, nil for boolean data.
func (d ScopeData) Levels() map[Action]Level {
	if d.kind != scopeLevels {
		return nil
	}
	cp := make(map[Action]Level, len(d.levels))
	for a, l := range d.levels {
		cp[a] = l
	}
	return cp
}

// Raw returns the JSON-compatible form of the data.
func (d ScopeData) Raw() any {
	switch d.kind {
	case scopeTrue:
		return true
	case scopeLevels:
		m := make(map[string]string, len(d.levels))
		for a, l := range d.levels {
			m[string(a)] = string(l)
		}
		return m
	}
	return false
}

func (d ScopeData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Raw())
}

func (d *ScopeData) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseScopeData(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d ScopeData) String() string {
	switch d.kind {
	case scopeTrue:
		return "true"
	case scopeFalse:
		return "false"
	}
	keys := make([]string, 0, len(d.levels))
	for a, l := range d.levels {
		keys = append(keys, string(a)+":"+string(l))
	}
	sort.Strings(keys)
	return fmt.Sprint(keys)
}

// CombineScopeData merges two grants of the same scope per action with
// Combine. Boolean true dominates everything, boolean false is the identity.
func CombineScopeData(a, b ScopeData) ScopeData {
	switch {
	case a.kind == scopeTrue || b.kind == scopeTrue:
		return BoolScope(true)
	case a.kind == scopeFalse:
		return b
	case b.kind == scopeFalse:
		return a
	}
	levels := make(map[Action]Level, len(a.levels)+len(b.levels))
	for act, l := range a.levels {
		levels[act] = l
	}
	for act, l := range b.levels {
		levels[act] = Combine(levels[act], l)
	}
	return ScopeData{kind: scopeLevels, levels: levels}
}
