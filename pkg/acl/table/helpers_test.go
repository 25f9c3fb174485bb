package table

import (
	"context"
	"errors"
	"sync"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

type stubMeta struct {
	scopes       []string
	portalScopes []string
	boolean      map[string]bool
	actions      map[string][]acl.Action
	permissions  []string
	defaults     map[string]acl.Level
	restrictions map[string]map[string]acl.FieldData
}

func newStubMeta() *stubMeta {
	return &stubMeta{
		scopes:       []string{"Lead", "Case", "Account", "Report"},
		portalScopes: []string{"Case", "Account"},
		boolean:      map[string]bool{"Report": true},
		actions: map[string][]acl.Action{
			"Lead": {acl.ActionCreate, acl.ActionRead, acl.ActionEdit, acl.ActionDelete, acl.ActionStream},
		},
		permissions: []string{"assignment", "user", "portal"},
		defaults:    map[string]acl.Level{"user": acl.LevelTeam},
		restrictions: map[string]map[string]acl.FieldData{
			"Lead": {"password": {Read: acl.FieldNo, Edit: acl.FieldNo}},
		},
	}
}

func (m *stubMeta) ScopeList() []string              { return m.scopes }
func (m *stubMeta) PortalScopeList() []string        { return m.portalScopes }
func (m *stubMeta) IsBooleanScope(scope string) bool { return m.boolean[scope] }
func (m *stubMeta) PermissionList() []string         { return m.permissions }

func (m *stubMeta) ActionList(scope string) []acl.Action {
	if a, ok := m.actions[scope]; ok {
		return a
	}
	return []acl.Action{acl.ActionCreate, acl.ActionRead, acl.ActionEdit, acl.ActionDelete}
}

func (m *stubMeta) PermissionDefault(p string) acl.Level {
	if l, ok := m.defaults[p]; ok {
		return l
	}
	return acl.LevelNo
}

func (m *stubMeta) MandatoryFieldRestrictions(scope string) map[string]acl.FieldData {
	return m.restrictions[scope]
}

func levels(pairs ...string) acl.ScopeData {
	out := map[acl.Action]acl.Level{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[acl.Action(pairs[i])] = acl.Level(pairs[i+1])
	}
	return acl.LevelScope(out)
}

var errBoom = errors.New("boom")

type stubStore struct {
	mu          sync.Mutex
	roles       map[string]Role
	userRoles   map[string][]string
	teamRoles   map[string][]string
	portalUser  map[string][]string
	portalRoles map[string][]string
	failures    int
	getCalls    int
	listCalls   int
}

func newStubStore(roles ...Role) *stubStore {
	s := &stubStore{
		roles:       map[string]Role{},
		userRoles:   map[string][]string{},
		teamRoles:   map[string][]string{},
		portalUser:  map[string][]string{},
		portalRoles: map[string][]string{},
	}
	for _, r := range roles {
		s.roles[r.ID] = r
	}
	return s
}

func (s *stubStore) fail() error {
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return errBoom
	}
	return nil
}

func (s *stubStore) GetRoles(_ context.Context, ids []string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	var out []Role
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) ListUserRoleIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if err := s.fail(); err != nil {
		return nil, err
	}
	return s.userRoles[userID], nil
}

func (s *stubStore) ListTeamRoleIDs(_ context.Context, teamIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range teamIDs {
		out = append(out, s.teamRoles[t]...)
	}
	return out, nil
}

func (s *stubStore) ListUserPortalRoleIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portalUser[userID], nil
}

func (s *stubStore) ListPortalRoleIDs(_ context.Context, portalID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portalRoles[portalID], nil
}

func (s *stubStore) calls() (get, list int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls, s.listCalls
}
