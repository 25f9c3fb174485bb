package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/crmacl/pkg/acl/table"
)

// RoleStore reads roles, portal roles and their assignments.
//
// Regular roles live in role, portal roles in portal_role. Both share the
// data, field_data and permissions JSON columns.
//
// All reads go to the primary. A table built from a lagging replica would be
// cached again right after the invalidation that follows a role change.
type RoleStore struct {
	conns *ConnectionManager
}

// NewRoleStore creates a role store.
func NewRoleStore(conns *ConnectionManager) *RoleStore {
	return &RoleStore{conns: conns}
}

// GetRoles loads regular and portal roles by id. Unknown ids are skipped.
func (s *RoleStore) GetRoles(ctx context.Context, ids []string) ([]table.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ph := placeholders(len(ids), 1)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.conns.Primary().QueryContext(ctx, `
		SELECT id, name, data, field_data, permissions FROM role
		WHERE id IN (`+ph+`) AND deleted = FALSE
		UNION ALL
		SELECT id, name, data, field_data, permissions FROM portal_role
		WHERE id IN (`+ph+`) AND deleted = FALSE
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []table.Role
	for rows.Next() {
		var (
			id, name                     string
			data, fieldData, permissions []byte
		)
		if err := rows.Scan(&id, &name, &data, &fieldData, &permissions); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role, err := table.ParseRole(id, name, data, fieldData, permissions)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

func (s *RoleStore) ListUserRoleIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := queryIDs(ctx, s.conns.Primary(), `
		SELECT role_id FROM role_user
		WHERE user_id = $1 AND deleted = FALSE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles of user %s: %w", userID, err)
	}
	return ids, nil
}

func (s *RoleStore) ListTeamRoleIDs(ctx context.Context, teamIDs []string) ([]string, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(teamIDs))
	for i, id := range teamIDs {
		args[i] = id
	}
	ids, err := queryIDs(ctx, s.conns.Primary(), `
		SELECT DISTINCT role_id FROM role_team
		WHERE team_id IN (`+placeholders(len(teamIDs), 1)+`) AND deleted = FALSE
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team roles: %w", err)
	}
	return ids, nil
}

func (s *RoleStore) ListUserPortalRoleIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := queryIDs(ctx, s.conns.Primary(), `
		SELECT portal_role_id FROM portal_role_user
		WHERE user_id = $1 AND deleted = FALSE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portal roles of user %s: %w", userID, err)
	}
	return ids, nil
}

func (s *RoleStore) ListPortalRoleIDs(ctx context.Context, portalID string) ([]string, error) {
	ids, err := queryIDs(ctx, s.conns.Primary(), `
		SELECT portal_role_id FROM portal_portal_role
		WHERE portal_id = $1 AND deleted = FALSE
	`, portalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles of portal %s: %w", portalID, err)
	}
	return ids, nil
}

// SaveRole inserts or replaces a regular role.
func (s *RoleStore) SaveRole(ctx context.Context, role table.Role) error {
	data, err := json.Marshal(role.Data)
	if err != nil {
		return fmt.Errorf("failed to encode data of role %s: %w", role.ID, err)
	}
	fieldData, err := json.Marshal(role.FieldData)
	if err != nil {
		return fmt.Errorf("failed to encode field data of role %s: %w", role.ID, err)
	}
	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions of role %s: %w", role.ID, err)
	}

	_, err = s.conns.Primary().ExecContext(ctx, `
		INSERT INTO role (id, name, data, field_data, permissions, deleted)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, data = excluded.data, field_data = excluded.field_data,
			permissions = excluded.permissions, deleted = FALSE
	`, role.ID, role.Name, string(data), string(fieldData), string(permissions))
	if err != nil {
		return fmt.Errorf("failed to save role %s: %w", role.ID, err)
	}
	return nil
}

var _ table.RoleStore = (*RoleStore)(nil)
