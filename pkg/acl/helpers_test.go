package acl

import (
	"context"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

type stubFields struct {
	assignedUsers map[string]bool
	assignedUser  map[string]bool
	createdBy     map[string]bool
	teams         map[string]bool
	accountLinks  map[string]LinkRef
	contactLinks  map[string]LinkRef
}

func newStubFields() *stubFields {
	return &stubFields{
		assignedUsers: map[string]bool{"Meeting": true},
		assignedUser:  map[string]bool{"Lead": true, "Email": true, "Case": true, "Meeting": true},
		createdBy:     map[string]bool{"Lead": true, "Import": true, "Case": true, "Note": true, "Email": true},
		teams:         map[string]bool{"Lead": true, "Case": true, "Email": true, "Meeting": true, "User": true},
		accountLinks: map[string]LinkRef{
			"Case":    {Name: "account", Kind: LinkBelongsTo},
			"Account": {Name: "id", Kind: LinkSelf},
			"Contact": {Name: "accounts", Kind: LinkMultiple},
		},
		contactLinks: map[string]LinkRef{
			"Case":    {Name: "contacts", Kind: LinkMultiple},
			"Contact": {Name: "id", Kind: LinkSelf},
		},
	}
}

func (f *stubFields) HasAssignedUsersField(t string) bool { return f.assignedUsers[t] }
func (f *stubFields) HasAssignedUserField(t string) bool  { return f.assignedUser[t] }
func (f *stubFields) HasCreatedByField(t string) bool     { return f.createdBy[t] }
func (f *stubFields) HasTeamsField(t string) bool         { return f.teams[t] }

func (f *stubFields) AccountLink(t string) (LinkRef, bool) {
	l, ok := f.accountLinks[t]
	return l, ok
}

func (f *stubFields) ContactLink(t string) (LinkRef, bool) {
	l, ok := f.contactLinks[t]
	return l, ok
}

type stubCatalog []string

func (c stubCatalog) HasScope(scope string) bool {
	for _, s := range c {
		if s == scope {
			return true
		}
	}
	return false
}

func (c stubCatalog) ScopeList() []string { return c }

var testScopes = stubCatalog{"Lead", "Case", "Account", "Contact", "Email", "Import", "User", "Notification", "Meeting"}

type stubTable struct {
	admin       bool
	scopes      map[string]ScopeData
	fields      map[string]map[string]FieldData
	permissions map[string]Level
}

func (t *stubTable) GetScopeData(scope string) ScopeData {
	if t.admin {
		return BoolScope(true)
	}
	return t.scopes[scope]
}

func (t *stubTable) GetLevel(scope string, action Action) Level {
	return t.GetScopeData(scope).Get(action)
}

func (t *stubTable) GetFieldData(scope, field string) FieldData {
	if fd, ok := t.fields[scope][field]; ok && !t.admin {
		return fd
	}
	return FullFieldAccess
}

func (t *stubTable) GetFieldLevel(scope, field string, action Action) FieldLevel {
	return t.GetFieldData(scope, field).Get(action)
}

func (t *stubTable) GetPermissionLevel(permission string) Level {
	if t.admin {
		return LevelAll
	}
	if l, ok := t.permissions[permission]; ok {
		return l
	}
	return LevelNo
}

func (t *stubTable) GetScopeForbiddenFieldList(scope string, action Action) []string {
	var out []string
	for field, fd := range t.fields[scope] {
		if fd.Get(action) == FieldNo {
			out = append(out, field)
		}
	}
	return out
}

func (t *stubTable) Map() map[string]any {
	return map[string]any{"scopes": len(t.scopes)}
}

// tablesByUser serves a fixed table per user id, and an admin table for
// admins.
type tablesByUser map[string]*stubTable

func (p tablesByUser) Table(_ context.Context, user *entity.User) (Table, error) {
	if user.IsAdmin() {
		return &stubTable{admin: true}, nil
	}
	if t, ok := p[user.ID]; ok {
		return t, nil
	}
	return &stubTable{}, nil
}

func newTestManager(t interface{ Fatalf(string, ...any) }, tables TableProvider) *Manager {
	registry := NewRegistry(testScopes, newStubFields())
	m := NewManager(tables, registry)
	if err := RegisterBuiltins(registry); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if err := registry.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	return m
}

func levels(pairs ...string) ScopeData {
	m := make(map[Action]Level)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[Action(pairs[i])] = Level(pairs[i+1])
	}
	return LevelScope(m)
}
