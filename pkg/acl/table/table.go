package table

import (
	"sort"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

// Data is the serializable content of a table.
type Data struct {
	Admin       bool                                `json:"admin,omitempty"`
	Scopes      map[string]acl.ScopeData            `json:"scopes"`
	Fields      map[string]map[string]acl.FieldData `json:"fields,omitempty"`
	Permissions map[string]acl.Level                `json:"permissions"`
}

// DefaultTable is the immutable acl.Table built from a role set. It must not
// be modified after construction since it is shared between users.
type DefaultTable struct {
	data Data
}

var _ acl.Table = (*DefaultTable)(nil)

// NewTable wraps table data.
func NewTable(data Data) *DefaultTable {
	if data.Scopes == nil {
		data.Scopes = map[string]acl.ScopeData{}
	}
	if data.Fields == nil {
		data.Fields = map[string]map[string]acl.FieldData{}
	}
	if data.Permissions == nil {
		data.Permissions = map[string]acl.Level{}
	}
	return &DefaultTable{data: data}
}

// Data returns the table content. Callers must treat it as read-only.
func (t *DefaultTable) Data() Data { return t.data }

// IsAdmin reports whether the table is the unrestricted admin table.
func (t *DefaultTable) IsAdmin() bool { return t.data.Admin }

func (t *DefaultTable) GetScopeData(scope string) acl.ScopeData {
	if t.data.Admin {
		return acl.BoolScope(true)
	}
	return t.data.Scopes[scope]
}

func (t *DefaultTable) GetLevel(scope string, action acl.Action) acl.Level {
	return t.GetScopeData(scope).Get(action)
}

// GetFieldData returns the field grant. Fields without an entry are
// unrestricted.
func (t *DefaultTable) GetFieldData(scope, field string) acl.FieldData {
	if t.data.Admin {
		return acl.FullFieldAccess
	}
	if fd, ok := t.data.Fields[scope][field]; ok {
		return fd
	}
	return acl.FullFieldAccess
}

func (t *DefaultTable) GetFieldLevel(scope, field string, action acl.Action) acl.FieldLevel {
	return t.GetFieldData(scope, field).Get(action)
}

func (t *DefaultTable) GetPermissionLevel(permission string) acl.Level {
	if t.data.Admin {
		return acl.LevelAll
	}
	if l, ok := t.data.Permissions[permission]; ok {
		return l
	}
	return acl.LevelNo
}

// GetScopeForbiddenFieldList returns the sorted fields of a scope the action
// is denied on.
func (t *DefaultTable) GetScopeForbiddenFieldList(scope string, action acl.Action) []string {
	if t.data.Admin {
		return nil
	}
	var out []string
	for field, fd := range t.data.Fields[scope] {
		if fd.Get(action) == acl.FieldNo {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

// Map returns the form served to clients: the scope table, the field table
// and one "<name>Permission" key per permission.
func (t *DefaultTable) Map() map[string]any {
	scopes := make(map[string]any, len(t.data.Scopes))
	for scope, d := range t.data.Scopes {
		scopes[scope] = d.Raw()
	}
	fields := make(map[string]any, len(t.data.Fields))
	for scope, fs := range t.data.Fields {
		m := make(map[string]acl.FieldData, len(fs))
		for f, fd := range fs {
			m[f] = fd
		}
		fields[scope] = m
	}
	out := map[string]any{
		"table":      scopes,
		"fieldTable": fields,
	}
	for name, l := range t.data.Permissions {
		out[name+"Permission"] = string(l)
	}
	if t.data.Admin {
		out["admin"] = true
	}
	return out
}
