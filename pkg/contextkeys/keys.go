// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that the
// middleware setting a value and the handlers reading it agree on its type.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithUser(ctx, user)
//	user := contextkeys.GetUser(ctx)
package contextkeys

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, error responses
	RequestIDKey Key = "request_id"

	// UserKey contains the acting *entity.User
	// Set by: middleware.User
	// Required by: every ACL endpoint
	UserKey Key = "user"

	// LoggerKey contains a *logrus.Entry carrying request fields
	// Set by: middleware.Logging
	LoggerKey Key = "logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUser adds the acting user to the context
func WithUser(ctx context.Context, user *entity.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the acting user, or nil.
func GetUser(ctx context.Context) *entity.User {
	if user, ok := ctx.Value(UserKey).(*entity.User); ok {
		return user
	}
	return nil
}

// GetUserID returns the id of the acting user, or "".
func GetUserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.ID
	}
	return ""
}

// WithLogger adds a request logger to the context
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger retrieves the request logger, or nil.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(LoggerKey).(*logrus.Entry); ok {
		return logger
	}
	return nil
}
