package acl

import (
	"context"
	"sync"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

type ctxKey int

const (
	scopeKey ctxKey = iota
	tableKey
)

type memoKey struct {
	manager *Manager
	userID  string
}

// requestScope remembers the tables resolved during one request.
type requestScope struct {
	mu     sync.Mutex
	tables map[memoKey]Table
}

func (s *requestScope) table(ctx context.Context, m *Manager, user *entity.User) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoKey{manager: m, userID: user.ID}
	if t, ok := s.tables[key]; ok {
		return t, nil
	}
	t, err := m.resolveTable(ctx, user)
	if err != nil {
		return nil, err
	}
	s.tables[key] = t
	return t, nil
}

// WithRequestScope returns a context under which each user's table is
// resolved at most once. Failed resolutions are not remembered. Contexts that
// already carry a scope are returned unchanged.
func WithRequestScope(ctx context.Context) context.Context {
	if scopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey, &requestScope{tables: map[memoKey]Table{}})
}

func scopeFrom(ctx context.Context) *requestScope {
	s, _ := ctx.Value(scopeKey).(*requestScope)
	return s
}

// withTable hands the table of the current check to the checkers.
func withTable(ctx context.Context, t Table) context.Context {
	return context.WithValue(ctx, tableKey, t)
}

func tableFrom(ctx context.Context) Table {
	t, _ := ctx.Value(tableKey).(Table)
	return t
}
