package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/contextkeys"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/httputil"
)

// UserHeader names the acting user. The upstream authentication layer sets it.
const UserHeader = "X-User-Id"

// UserLoader loads users with their team, account and portal memberships.
type UserLoader interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
}

// UserMiddleware puts the acting user into the request context.
type UserMiddleware struct {
	loader   UserLoader
	optional bool // If true, allow requests without a user
}

// NewUserMiddleware creates a new user middleware
func NewUserMiddleware(loader UserLoader, optional bool) *UserMiddleware {
	return &UserMiddleware{
		loader:   loader,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with user loading
func (m *UserMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing "+UserHeader+" header")
			return
		}

		user, err := m.loader.GetUser(r.Context(), userID)
		if errors.Is(err, entity.ErrNotFound) {
			httputil.WriteUnauthorized(w, "unknown user")
			return
		}
		if err != nil {
			if entry := contextkeys.GetLogger(r.Context()); entry != nil {
				entry.WithError(err).WithField("user_id", userID).Error("Failed to load user")
			}
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		if entry := contextkeys.GetLogger(ctx); entry != nil {
			ctx = contextkeys.WithLogger(ctx, entry.WithFields(logrus.Fields{
				"user_id":   user.ID,
				"user_type": string(user.Type),
			}))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests that carry no user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contextkeys.GetUser(r.Context()) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
