package acl

import (
	"fmt"
	"sort"
	"sync"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// ScopeCatalog lists the scopes known to metadata.
type ScopeCatalog interface {
	HasScope(scope string) bool
	ScopeList() []string
}

// Defaults are the checkers a scope gets when nothing is registered for it.
type Defaults struct {
	Ownership OwnershipChecker
	Access    *DefaultAccessChecker
}

// Definition overrides checkers of one entity type. Nil members keep the
// defaults.
type Definition struct {
	Access          func(Defaults) any
	PortalAccess    func(Defaults) any
	Ownership       func(base OwnershipChecker) OwnershipChecker
	PortalOwnership func(base OwnershipChecker) OwnershipChecker
	Assignment      func(ownership OwnershipChecker) AssignmentChecker
}

// Resolved holds the checkers of a scope.
type Resolved struct {
	Scope           string
	Access          any
	PortalAccess    any
	Ownership       OwnershipChecker
	PortalOwnership OwnershipChecker
	Assignment      AssignmentChecker

	defaultAccess       *DefaultAccessChecker
	defaultPortalAccess *DefaultAccessChecker
}

// AccessFor returns the access checker of the user kind along with the
// default checker used for capabilities it lacks.
func (r *Resolved) AccessFor(user *entity.User) (any, *DefaultAccessChecker) {
	if user.IsPortal() {
		return r.PortalAccess, r.defaultPortalAccess
	}
	return r.Access, r.defaultAccess
}

// OwnershipFor returns the ownership checker of the user kind.
func (r *Resolved) OwnershipFor(user *entity.User) OwnershipChecker {
	if user.IsPortal() {
		return r.PortalOwnership
	}
	return r.Ownership
}

// Registry maps entity types to their checkers. Definitions are registered
// at startup, then Freeze resolves every scope once so that lookups on the
// request path are plain map reads.
type Registry struct {
	catalog ScopeCatalog
	fields  FieldHelper

	mu       sync.RWMutex
	defs     map[string]Definition
	resolved map[string]*Resolved
	frozen   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(catalog ScopeCatalog, fields FieldHelper) *Registry {
	return &Registry{
		catalog: catalog,
		fields:  fields,
		defs:    make(map[string]Definition),
	}
}

// Register adds the definition of an entity type. It fails once the
// registry is frozen.
func (r *Registry) Register(scope string, def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &ConfigurationError{Scope: scope, Reason: "registry is frozen"}
	}
	if _, exists := r.defs[scope]; exists {
		return &ConfigurationError{Scope: scope, Reason: "already registered"}
	}
	r.defs[scope] = def
	return nil
}

// Freeze validates the definitions against metadata and resolves every
// scope.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolved, err := r.resolveAll()
	if err != nil {
		return err
	}
	r.resolved = resolved
	r.frozen = true
	return nil
}

// Rebuild re-resolves every scope after a metadata change.
func (r *Registry) Rebuild() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolved, err := r.resolveAll()
	if err != nil {
		return err
	}
	r.resolved = resolved
	return nil
}

func (r *Registry) resolveAll() (map[string]*Resolved, error) {
	for scope := range r.defs {
		if !r.catalog.HasScope(scope) {
			return nil, &ConfigurationError{Scope: scope, Reason: "registered checkers for a scope missing from metadata"}
		}
	}

	resolved := make(map[string]*Resolved)
	for _, scope := range r.catalog.ScopeList() {
		res, err := r.resolve(scope, r.defs[scope])
		if err != nil {
			return nil, err
		}
		resolved[scope] = res
	}
	return resolved, nil
}

func (r *Registry) resolve(scope string, def Definition) (*Resolved, error) {
	var ownership OwnershipChecker = NewDefaultOwnershipChecker(r.fields)
	var portalOwnership OwnershipChecker = NewPortalOwnershipChecker(r.fields)
	if def.Ownership != nil {
		ownership = def.Ownership(ownership)
	}
	if def.PortalOwnership != nil {
		portalOwnership = def.PortalOwnership(portalOwnership)
	}
	if ownership == nil || portalOwnership == nil {
		return nil, &ConfigurationError{Scope: scope, Reason: "ownership checker factory returned nil"}
	}

	res := &Resolved{
		Scope:               scope,
		Ownership:           ownership,
		PortalOwnership:     portalOwnership,
		defaultAccess:       NewDefaultAccessChecker(ownership),
		defaultPortalAccess: NewPortalAccessChecker(portalOwnership),
	}

	res.Access = res.defaultAccess
	if def.Access != nil {
		res.Access = def.Access(Defaults{Ownership: ownership, Access: res.defaultAccess})
	}
	res.PortalAccess = res.defaultPortalAccess
	if def.PortalAccess != nil {
		res.PortalAccess = def.PortalAccess(Defaults{Ownership: portalOwnership, Access: res.defaultPortalAccess})
	}
	if res.Access == nil || res.PortalAccess == nil {
		return nil, &ConfigurationError{Scope: scope, Reason: "access checker factory returned nil"}
	}

	if def.Assignment != nil {
		res.Assignment = def.Assignment(ownership)
	} else {
		res.Assignment = NewDefaultAssignmentChecker(ownership)
	}
	return res, nil
}

// Resolve returns the checkers of a scope.
func (r *Registry) Resolve(scope string) (*Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.frozen {
		return nil, &ConfigurationError{Scope: scope, Reason: "registry is not frozen"}
	}
	res, ok := r.resolved[scope]
	if !ok {
		return nil, &ConfigurationError{Scope: scope, Reason: "unknown scope"}
	}
	return res, nil
}

// Scopes returns the resolved scopes in sorted order.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.resolved))
	for scope := range r.resolved {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// MustRegister registers a definition and panics on error.
func (r *Registry) MustRegister(scope string, def Definition) {
	if err := r.Register(scope, def); err != nil {
		panic(fmt.Sprintf("acl: %v", err))
	}
}
