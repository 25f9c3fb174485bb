package table

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// RoleStore reads roles and role assignments.
type RoleStore interface {
	GetRoles(ctx context.Context, ids []string) ([]Role, error)
	ListUserRoleIDs(ctx context.Context, userID string) ([]string, error)
	ListTeamRoleIDs(ctx context.Context, teamIDs []string) ([]string, error)
	ListUserPortalRoleIDs(ctx context.Context, userID string) ([]string, error)
	ListPortalRoleIDs(ctx context.Context, portalID string) ([]string, error)
}

// RoleListProvider returns the ids of the roles a user holds.
type RoleListProvider interface {
	RoleIDs(ctx context.Context, user *entity.User) ([]string, error)
}

// CacheKeyProvider returns the key tables are shared under. Users with equal
// keys must get equal tables.
type CacheKeyProvider interface {
	CacheKey(user *entity.User, roleIDs []string) string
}

// DefaultRoleListProvider collects direct and team roles for regular users,
// and the user's portal roles plus the portal's roles for portal users.
type DefaultRoleListProvider struct {
	Store RoleStore
}

func (p DefaultRoleListProvider) RoleIDs(ctx context.Context, user *entity.User) ([]string, error) {
	var ids []string
	if user.IsPortal() {
		direct, err := p.Store.ListUserPortalRoleIDs(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list portal roles of user %s: %w", user.ID, err)
		}
		ids = append(ids, direct...)
		if user.PortalID != "" {
			portal, err := p.Store.ListPortalRoleIDs(ctx, user.PortalID)
			if err != nil {
				return nil, fmt.Errorf("failed to list roles of portal %s: %w", user.PortalID, err)
			}
			ids = append(ids, portal...)
		}
		return dedupe(ids), nil
	}

	direct, err := p.Store.ListUserRoleIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles of user %s: %w", user.ID, err)
	}
	ids = append(ids, direct...)
	if len(user.TeamIDs) > 0 {
		team, err := p.Store.ListTeamRoleIDs(ctx, user.TeamIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to list team roles of user %s: %w", user.ID, err)
		}
		ids = append(ids, team...)
	}
	return dedupe(ids), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AdminCacheKey is the key of the admin table.
const AdminCacheKey = "admin"

// DefaultCacheKeyProvider keys tables by user kind, portal and role set.
type DefaultCacheKeyProvider struct{}

func (DefaultCacheKeyProvider) CacheKey(user *entity.User, roleIDs []string) string {
	if user.IsAdmin() {
		return AdminCacheKey
	}
	kind, portal := "regular", ""
	if user.IsPortal() {
		kind, portal = "portal", user.PortalID
	}
	ids := append([]string(nil), roleIDs...)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(kind + "|" + portal + "|" + strings.Join(ids, ",")))
	return kind + ":" + hex.EncodeToString(sum[:])
}
