package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const auditTableDDL = `
CREATE TABLE IF NOT EXISTS acl_audit_log (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
	event_type VARCHAR(64) NOT NULL,
	status VARCHAR(16) NOT NULL,
	user_id VARCHAR(64),
	user_type VARCHAR(16),
	scope VARCHAR(100),
	action VARCHAR(16),
	resource_id VARCHAR(64),
	request_id VARCHAR(64),
	message TEXT,
	error_message TEXT,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_acl_audit_log_timestamp ON acl_audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_acl_audit_log_user ON acl_audit_log(user_id);
CREATE INDEX IF NOT EXISTS idx_acl_audit_log_type ON acl_audit_log(event_type);
`

const defaultSearchLimit = 100

// DBLogger writes audit events to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database logger. Call EnsureTable once before use
// on a fresh database.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// EnsureTable creates the acl_audit_log table if it doesn't exist
func (l *DBLogger) EnsureTable(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, auditTableDDL); err != nil {
		return fmt.Errorf("failed to ensure acl_audit_log table: %w", err)
	}
	return nil
}

// Log inserts the event and sets its ID.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO acl_audit_log (
			timestamp, event_type, status,
			user_id, user_type,
			scope, action, resource_id,
			request_id, message, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		event.Timestamp, event.EventType, event.Status,
		event.UserID, event.UserType,
		event.Scope, event.Action, event.ResourceID,
		event.RequestID, event.Message, event.ErrorMessage, metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search returns matching events, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.StartTime != nil {
		add("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("timestamp <= $%d", *filter.EndTime)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}
		add("event_type = ANY($%d)", pq.Array(types))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Scope != "" {
		add("scope = $%d", filter.Scope)
	}

	stmt := `SELECT id, timestamp, event_type, status, user_id, user_type, scope, action,
		resource_id, request_id, message, error_message, metadata FROM acl_audit_log`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	args = append(args, limit, filter.Offset)
	stmt += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := l.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit log: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event                                   Event
			userID, userType, scope, action         sql.NullString
			resourceID, requestID, message, errText sql.NullString
			metadata                                []byte
		)
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.EventType, &event.Status,
			&userID, &userType, &scope, &action, &resourceID, &requestID, &message, &errText, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		event.UserID = userID.String
		event.UserType = userType.String
		event.Scope = scope.String
		event.Action = action.String
		event.ResourceID = resourceID.String
		event.RequestID = requestID.String
		event.Message = message.String
		event.ErrorMessage = errText.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// Close is a no-op; the connection pool belongs to the caller.
func (l *DBLogger) Close() error {
	return nil
}

// Prune deletes events older than before and returns how many were removed.
func (l *DBLogger) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM acl_audit_log WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return res.RowsAffected()
}
