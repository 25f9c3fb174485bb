package acl

import (
	"context"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// Table is the immutable effective permission table of a role set.
type Table interface {
	GetScopeData(scope string) ScopeData
	GetLevel(scope string, action Action) Level
	GetFieldData(scope, field string) FieldData
	GetFieldLevel(scope, field string, action Action) FieldLevel
	GetPermissionLevel(permission string) Level
	GetScopeForbiddenFieldList(scope string, action Action) []string
}

// TableProvider returns the table of a user.
type TableProvider interface {
	Table(ctx context.Context, user *entity.User) (Table, error)
}

// TableProviderFunc adapts a function to TableProvider.
type TableProviderFunc func(ctx context.Context, user *entity.User) (Table, error)

func (f TableProviderFunc) Table(ctx context.Context, user *entity.User) (Table, error) {
	return f(ctx, user)
}
