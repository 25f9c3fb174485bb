package acl

import (
	"errors"
	"fmt"
)

// ErrForbidden is the sentinel matched by every access denial.
var ErrForbidden = errors.New("forbidden")

// ForbiddenError describes a denied operation.
type ForbiddenError struct {
	Scope    string
	Action   Action
	EntityID string
}

func (e *ForbiddenError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("forbidden: %s on %s %s", e.Action, e.Scope, e.EntityID)
	}
	if e.Action != "" {
		return fmt.Sprintf("forbidden: %s on %s", e.Action, e.Scope)
	}
	return fmt.Sprintf("forbidden: %s", e.Scope)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// ErrConfiguration is the sentinel matched by every ConfigurationError.
var ErrConfiguration = errors.New("acl configuration error")

// ConfigurationError reports a wiring problem such as an unknown scope or a
// registration that does not fit its scope. It is never a denial.
type ConfigurationError struct {
	Scope  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("acl configuration error for scope %q: %s", e.Scope, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// IsForbidden reports whether err is an access denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
