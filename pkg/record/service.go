package record

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/acl/table"
	"github.com/platinummonkey/crmacl/pkg/entity"
)

// Repository loads records and removes links.
type Repository interface {
	GetByID(ctx context.Context, entityType, id string) (entity.Entity, error)
	Unlink(ctx context.Context, entityType, id, link, foreignID string) error
}

// RoleSaver persists roles.
type RoleSaver interface {
	SaveRole(ctx context.Context, role table.Role) error
}

// Guard decides record access.
type Guard interface {
	EnsureEntity(ctx context.Context, user *entity.User, e entity.Entity, action acl.Action) error
}

// Service performs record operations on behalf of a user.
type Service struct {
	repo  Repository
	roles RoleSaver
	guard Guard
	hooks *HookManager
	log   *logrus.Logger
}

// NewService creates a service. roles may be nil when roles are not edited
// through this service.
func NewService(repo Repository, roles RoleSaver, guard Guard, hooks *HookManager, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	if hooks == nil {
		hooks = NewHookManager(log)
	}
	return &Service{repo: repo, roles: roles, guard: guard, hooks: hooks, log: log}
}

// Unlink removes foreignID from the link of a record. The user needs edit
// access to the record. Hooks run after the link is gone; their failures are
// logged and returned but the unlink stands.
func (s *Service) Unlink(ctx context.Context, user *entity.User, entityType, id, link, foreignID string) error {
	e, err := s.repo.GetByID(ctx, entityType, id)
	if err != nil {
		return err
	}
	if err := s.guard.EnsureEntity(ctx, user, e, acl.ActionEdit); err != nil {
		return err
	}
	if err := s.repo.Unlink(ctx, entityType, id, link, foreignID); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"entity_type": entityType,
		"id":          id,
		"link":        link,
		"foreign_id":  foreignID,
	}).Info("Records unlinked")

	return s.hooks.RunAfterUnlink(ctx, e, link, foreignID)
}

// SaveRole stores a role and runs the role hooks. Only admins edit roles.
func (s *Service) SaveRole(ctx context.Context, user *entity.User, role table.Role) error {
	if !user.IsAdmin() {
		return &acl.ForbiddenError{Scope: EntityTypeRole, Action: acl.ActionEdit, EntityID: role.ID}
	}
	if s.roles == nil {
		return fmt.Errorf("roles cannot be saved: no role store")
	}
	if err := s.roles.SaveRole(ctx, role); err != nil {
		return err
	}
	return s.hooks.RunAfterSave(ctx, entity.NewRecord(EntityTypeRole, role.ID, map[string]any{
		entity.AttrName: role.Name,
	}))
}
