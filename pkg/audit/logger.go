package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/crmacl/pkg/acl"
	"github.com/platinummonkey/crmacl/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}

// NewEvent starts an event carrying the request id and acting user of ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  map[string]any{},
	}
	if user := contextkeys.GetUser(ctx); user != nil {
		event.UserID = user.ID
		event.UserType = string(user.Type)
	}
	return event
}

// DenialEvent turns a denial into an access-denied event. It returns nil for
// errors that are not denials.
func DenialEvent(ctx context.Context, err error) *Event {
	var forbidden *acl.ForbiddenError
	if !errors.As(err, &forbidden) {
		return nil
	}
	event := NewEvent(ctx, EventTypeAccessDenied, EventStatusDenied)
	event.Scope = forbidden.Scope
	event.Action = string(forbidden.Action)
	event.ResourceID = forbidden.EntityID
	event.Message = err.Error()
	return event
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }

func (NopLogger) Close() error { return nil }
