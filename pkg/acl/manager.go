package acl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// DecisionRecorder observes access decisions.
type DecisionRecorder interface {
	RecordDecision(scope string, action Action, allowed bool)
}

// Mapper is implemented by tables that can be exported to clients.
type Mapper interface {
	Map() map[string]any
}

// Manager answers access questions for any user. Checks are pure functions
// of the user's table, the registered checkers and the record.
type Manager struct {
	tables   TableProvider
	registry *Registry
	recorder DecisionRecorder
	log      *logrus.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDecisionRecorder sets the decision observer.
func WithDecisionRecorder(r DecisionRecorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a manager.
func NewManager(tables TableProvider, registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{tables: tables, registry: registry}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.New()
	}
	return m
}

// Registry returns the checker registry.
func (m *Manager) Registry() *Registry { return m.registry }

// ForUser binds the manager to a user.
func (m *Manager) ForUser(user *entity.User) *ACL {
	return &ACL{manager: m, user: user, scope: &requestScope{tables: map[memoKey]Table{}}}
}

// GetTable returns the permission table of the user. Under a request scope
// (see WithRequestScope) the table is resolved once per user.
func (m *Manager) GetTable(ctx context.Context, user *entity.User) (Table, error) {
	if s := scopeFrom(ctx); s != nil {
		return s.table(ctx, m, user)
	}
	return m.resolveTable(ctx, user)
}

func (m *Manager) resolveTable(ctx context.Context, user *entity.User) (Table, error) {
	t, err := m.tables.Table(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get acl table for user %s: %w", user.ID, err)
	}
	return t, nil
}

// GetMap returns the exportable form of the user's table.
func (m *Manager) GetMap(ctx context.Context, user *entity.User) (map[string]any, error) {
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return nil, err
	}
	if mp, ok := t.(Mapper); ok {
		return mp.Map(), nil
	}
	return map[string]any{}, nil
}

func (m *Manager) GetScopeData(ctx context.Context, user *entity.User, scope string) (ScopeData, error) {
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return ScopeData{}, err
	}
	return t.GetScopeData(scope), nil
}

// GetLevel returns the level of an action on a scope.
func (m *Manager) GetLevel(ctx context.Context, user *entity.User, scope string, action Action) (Level, error) {
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return LevelNo, err
	}
	return t.GetLevel(scope, action), nil
}

// GetPermissionLevel returns the level of a named permission.
func (m *Manager) GetPermissionLevel(ctx context.Context, user *entity.User, permission string) (Level, error) {
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return LevelNo, err
	}
	return t.GetPermissionLevel(permission), nil
}

// CheckScope checks an action on a scope without a record. An empty action
// checks that the scope is accessible at all.
func (m *Manager) CheckScope(ctx context.Context, user *entity.User, scope string, action Action) (bool, error) {
	res, err := m.registry.Resolve(scope)
	if err != nil {
		return false, err
	}
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return false, err
	}
	data := t.GetScopeData(scope)

	checker, fallback := res.AccessFor(user)
	allowed, ok := CheckScopeAction(checker, user, data, action)
	if !ok {
		allowed, _ = CheckScopeAction(fallback, user, data, action)
	}

	m.record(user, scope, action, "", allowed)
	return allowed, nil
}

// CheckEntity checks an action on a record.
func (m *Manager) CheckEntity(ctx context.Context, user *entity.User, e entity.Entity, action Action) (bool, error) {
	scope := e.EntityType()
	res, err := m.registry.Resolve(scope)
	if err != nil {
		return false, err
	}
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return false, err
	}
	data := t.GetScopeData(scope)
	ctx = withTable(ctx, t)

	checker, fallback := res.AccessFor(user)
	allowed, ok := CheckEntityAction(ctx, checker, user, e, data, action)
	if !ok {
		allowed, ok = CheckEntityAction(ctx, fallback, user, e, data, action)
	}
	if !ok {
		return false, &ConfigurationError{Scope: scope, Reason: fmt.Sprintf("no checker for action %q", action)}
	}

	m.record(user, scope, action, e.GetID(), allowed)
	return allowed, nil
}

func (m *Manager) CheckEntityCreate(ctx context.Context, user *entity.User, e entity.Entity) (bool, error) {
	return m.CheckEntity(ctx, user, e, ActionCreate)
}

func (m *Manager) CheckEntityRead(ctx context.Context, user *entity.User, e entity.Entity) (bool, error) {
	return m.CheckEntity(ctx, user, e, ActionRead)
}

func (m *Manager) CheckEntityEdit(ctx context.Context, user *entity.User, e entity.Entity) (bool, error) {
	return m.CheckEntity(ctx, user, e, ActionEdit)
}

func (m *Manager) CheckEntityDelete(ctx context.Context, user *entity.User, e entity.Entity) (bool, error) {
	return m.CheckEntity(ctx, user, e, ActionDelete)
}

func (m *Manager) CheckEntityStream(ctx context.Context, user *entity.User, e entity.Entity) (bool, error) {
	return m.CheckEntity(ctx, user, e, ActionStream)
}

// CheckField checks an action on a field of a scope.
func (m *Manager) CheckField(ctx context.Context, user *entity.User, scope, field string, action Action) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return false, err
	}
	return t.GetFieldLevel(scope, field, action) == FieldYes, nil
}

// GetScopeForbiddenFieldList returns the fields of a scope the user may not
// perform the action on.
func (m *Manager) GetScopeForbiddenFieldList(ctx context.Context, user *entity.User, scope string, action Action) ([]string, error) {
	if user.IsAdmin() {
		return nil, nil
	}
	t, err := m.GetTable(ctx, user)
	if err != nil {
		return nil, err
	}
	return t.GetScopeForbiddenFieldList(scope, action), nil
}

// CheckAssignment checks that the user may keep the record's assignment.
// Admins and users with the assignment permission at level all pass.
func (m *Manager) CheckAssignment(ctx context.Context, user *entity.User, e entity.Entity) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}
	res, err := m.registry.Resolve(e.EntityType())
	if err != nil {
		return false, err
	}
	level, err := m.GetPermissionLevel(ctx, user, PermissionAssignment)
	if err != nil {
		return false, err
	}
	if level.IsUnrestricted() {
		return true, nil
	}
	return res.Assignment.Check(user, e), nil
}

func (m *Manager) ownership(user *entity.User, e entity.Entity) (OwnershipChecker, error) {
	res, err := m.registry.Resolve(e.EntityType())
	if err != nil {
		return nil, err
	}
	return res.OwnershipFor(user), nil
}

// CheckOwnershipOwn reports whether the record is the user's own.
func (m *Manager) CheckOwnershipOwn(user *entity.User, e entity.Entity) (bool, error) {
	o, err := m.ownership(user, e)
	if err != nil {
		return false, err
	}
	return o.CheckOwn(user, e), nil
}

// CheckOwnershipTeam reports whether the record shares a team with the user.
func (m *Manager) CheckOwnershipTeam(user *entity.User, e entity.Entity) (bool, error) {
	o, err := m.ownership(user, e)
	if err != nil {
		return false, err
	}
	return o.CheckTeams(user, e), nil
}

// CheckOwnershipAccount reports whether the record belongs to one of the
// portal user's accounts.
func (m *Manager) CheckOwnershipAccount(user *entity.User, e entity.Entity) (bool, error) {
	o, err := m.ownership(user, e)
	if err != nil {
		return false, err
	}
	return o.CheckAccount(user, e), nil
}

// CheckOwnershipContact reports whether the record belongs to the portal
// user's contact.
func (m *Manager) CheckOwnershipContact(user *entity.User, e entity.Entity) (bool, error) {
	o, err := m.ownership(user, e)
	if err != nil {
		return false, err
	}
	return o.CheckContact(user, e), nil
}

// EnsureScope returns a ForbiddenError when the scope check fails.
func (m *Manager) EnsureScope(ctx context.Context, user *entity.User, scope string, action Action) error {
	ok, err := m.CheckScope(ctx, user, scope, action)
	if err != nil {
		return err
	}
	if !ok {
		return &ForbiddenError{Scope: scope, Action: action}
	}
	return nil
}

// EnsureEntity returns a ForbiddenError when the record check fails.
func (m *Manager) EnsureEntity(ctx context.Context, user *entity.User, e entity.Entity, action Action) error {
	ok, err := m.CheckEntity(ctx, user, e, action)
	if err != nil {
		return err
	}
	if !ok {
		return &ForbiddenError{Scope: e.EntityType(), Action: action, EntityID: e.GetID()}
	}
	return nil
}

func (m *Manager) record(user *entity.User, scope string, action Action, id string, allowed bool) {
	if m.recorder != nil {
		m.recorder.RecordDecision(scope, action, allowed)
	}
	if !allowed && m.log.IsLevelEnabled(logrus.DebugLevel) {
		m.log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"scope":   scope,
			"action":  string(action),
			"id":      id,
		}).Debug("access denied")
	}
}
