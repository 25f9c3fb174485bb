package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeAccessDenied EventType = "acl.access_denied"
	EventTypeRoleSave     EventType = "acl.role_save"
	EventTypeCachePurge   EventType = "acl.cache_purge"
	EventTypeUnlink       EventType = "record.unlink"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry.
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID   string `json:"user_id,omitempty"`
	UserType string `json:"user_type,omitempty"`

	// Target
	Scope      string `json:"scope,omitempty"`
	Action     string `json:"action,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`

	RequestID    string         `json:"request_id,omitempty"`
	Message      string         `json:"message,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SearchFilter narrows DBLogger.Search.
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID     string
	EventTypes []EventType
	Status     EventStatus
	Scope      string

	Limit  int
	Offset int
}
