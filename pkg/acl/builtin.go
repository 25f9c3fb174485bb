package acl

// Entity types with dedicated checkers.
const (
	ScopeImport       = "Import"
	ScopeUser         = "User"
	ScopeNotification = "Notification"
	ScopeAccount      = "Account"
	ScopeEmail        = "Email"
)

// RegisterBuiltins registers the checkers of the standard entity types that
// metadata defines.
func RegisterBuiltins(r *Registry) error {
	defs := map[string]Definition{
		ScopeImport: {
			Access: func(d Defaults) any {
				return NewCreatorAccessChecker(d.Access, true, ActionRead, ActionDelete)
			},
		},
		ScopeUser: {
			Access: func(d Defaults) any {
				return NewUserAccessChecker(d.Access)
			},
			Ownership: func(base OwnershipChecker) OwnershipChecker {
				return UserOwnershipChecker{OwnershipChecker: base}
			},
		},
		ScopeNotification: {
			Ownership: func(base OwnershipChecker) OwnershipChecker {
				return UserIDOwnershipChecker{OwnershipChecker: base}
			},
			PortalOwnership: func(base OwnershipChecker) OwnershipChecker {
				return UserIDOwnershipChecker{OwnershipChecker: base}
			},
		},
		ScopeAccount: {
			PortalOwnership: func(base OwnershipChecker) OwnershipChecker {
				return AccountOwnershipChecker{OwnershipChecker: base}
			},
		},
		ScopeEmail: {
			Assignment: func(ownership OwnershipChecker) AssignmentChecker {
				return NewDefaultAssignmentChecker(ownership)
			},
		},
	}

	for _, scope := range []string{ScopeImport, ScopeUser, ScopeNotification, ScopeAccount, ScopeEmail} {
		if !r.catalog.HasScope(scope) {
			continue
		}
		if err := r.Register(scope, defs[scope]); err != nil {
			return err
		}
	}
	return nil
}
