package api

import (
	"encoding/json"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

// ScopeCheckResponse answers GET /api/v1/acl/{scope}.
type ScopeCheckResponse struct {
	Scope           string     `json:"scope"`
	Action          acl.Action `json:"action,omitempty"`
	Allowed         bool       `json:"allowed"`
	ForbiddenFields []string   `json:"forbiddenFields"`
}

// RecordCheckResponse answers GET /api/v1/{scope}/{id}/access.
type RecordCheckResponse struct {
	Scope   string     `json:"scope"`
	ID      string     `json:"id"`
	Action  acl.Action `json:"action"`
	Allowed bool       `json:"allowed"`
}

// ListResponse answers GET /api/v1/{scope}.
type ListResponse struct {
	Scope   string           `json:"scope"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
	Records []map[string]any `json:"records"`
}

// RoleRequest is the body of PUT /api/v1/Role/{id}. The grant columns keep
// their stored JSON form.
type RoleRequest struct {
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data"`
	FieldData   json.RawMessage `json:"fieldData"`
	Permissions json.RawMessage `json:"permissions"`
}
