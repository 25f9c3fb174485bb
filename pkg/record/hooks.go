package record

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// AfterSaveHook runs after a record was saved.
type AfterSaveHook func(ctx context.Context, e entity.Entity) error

// AfterUnlinkHook runs after foreignID was unlinked from e through link.
type AfterUnlinkHook func(ctx context.Context, e entity.Entity, link, foreignID string) error

// HookManager holds hooks per entity type. Hooks of one type run in
// registration order.
type HookManager struct {
	mu          sync.RWMutex
	afterSave   map[string][]AfterSaveHook
	afterUnlink map[string][]AfterUnlinkHook
	log         *logrus.Logger
}

// NewHookManager creates an empty hook manager.
func NewHookManager(log *logrus.Logger) *HookManager {
	if log == nil {
		log = logrus.New()
	}
	return &HookManager{
		afterSave:   make(map[string][]AfterSaveHook),
		afterUnlink: make(map[string][]AfterUnlinkHook),
		log:         log,
	}
}

func (h *HookManager) RegisterAfterSave(entityType string, hook AfterSaveHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterSave[entityType] = append(h.afterSave[entityType], hook)
}

func (h *HookManager) RegisterAfterUnlink(entityType string, hook AfterUnlinkHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterUnlink[entityType] = append(h.afterUnlink[entityType], hook)
}

// RunAfterSave runs every after-save hook of the record's type. A failing
// hook does not stop the others; all failures are returned joined.
func (h *HookManager) RunAfterSave(ctx context.Context, e entity.Entity) error {
	h.mu.RLock()
	hooks := h.afterSave[e.EntityType()]
	h.mu.RUnlock()

	var errs []error
	for i, hook := range hooks {
		if err := hook(ctx, e); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"entity_type": e.EntityType(),
				"id":          e.GetID(),
				"hook":        i,
			}).Error("After-save hook failed")
			errs = append(errs, fmt.Errorf("after-save hook %d of %s: %w", i, e.EntityType(), err))
		}
	}
	return errors.Join(errs...)
}

// RunAfterUnlink runs every after-unlink hook of the record's type.
func (h *HookManager) RunAfterUnlink(ctx context.Context, e entity.Entity, link, foreignID string) error {
	h.mu.RLock()
	hooks := h.afterUnlink[e.EntityType()]
	h.mu.RUnlock()

	var errs []error
	for i, hook := range hooks {
		if err := hook(ctx, e, link, foreignID); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"entity_type": e.EntityType(),
				"id":          e.GetID(),
				"link":        link,
				"foreign_id":  foreignID,
			}).Error("After-unlink hook failed")
			errs = append(errs, fmt.Errorf("after-unlink hook %d of %s: %w", i, e.EntityType(), err))
		}
	}
	return errors.Join(errs...)
}
