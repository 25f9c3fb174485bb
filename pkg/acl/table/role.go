package table

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platinummonkey/crmacl/pkg/acl"
)

// Role is a stored set of grants. Data maps scopes to grants, FieldData maps
// scope and field to field grants and Permissions holds value permissions
// such as assignment.
type Role struct {
	ID          string                              `json:"id"`
	Name        string                              `json:"name"`
	Data        map[string]acl.ScopeData            `json:"data"`
	FieldData   map[string]map[string]acl.FieldData `json:"fieldData"`
	Permissions map[string]acl.Level                `json:"permissions"`
}

// ParseRole decodes the JSON columns of a stored role. Empty columns are
// treated as no grants. Permission names may carry the "Permission" suffix.
func ParseRole(id, name string, data, fieldData, permissions []byte) (Role, error) {
	r := Role{ID: id, Name: name}

	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &r.Data); err != nil {
			return Role{}, fmt.Errorf("failed to decode data of role %s: %w", id, err)
		}
	}
	if len(fieldData) > 0 && string(fieldData) != "null" {
		if err := json.Unmarshal(fieldData, &r.FieldData); err != nil {
			return Role{}, fmt.Errorf("failed to decode field data of role %s: %w", id, err)
		}
	}
	if len(permissions) > 0 && string(permissions) != "null" {
		var raw map[string]string
		if err := json.Unmarshal(permissions, &raw); err != nil {
			return Role{}, fmt.Errorf("failed to decode permissions of role %s: %w", id, err)
		}
		r.Permissions = make(map[string]acl.Level, len(raw))
		for k, v := range raw {
			r.Permissions[strings.TrimSuffix(k, "Permission")] = acl.ParseLevel(v)
		}
	}
	return r, nil
}
