package record

import (
	"context"
	"fmt"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// Entity types with built-in hooks.
const (
	EntityTypeTeam = "Team"
	EntityTypeUser = "User"
	EntityTypeRole = "Role"

	LinkUsers = "users"
	LinkTeams = "teams"
)

// UserStore loads and saves users.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
	SaveUser(ctx context.Context, u *entity.User) error
}

// RoleInvalidator drops cached permission tables built from a role.
type RoleInvalidator interface {
	InvalidateRole(ctx context.Context, roleID string) error
}

// UnsetUserDefaultTeam clears the default team of a user removed from that
// team through the team's users link.
func UnsetUserDefaultTeam(users UserStore) AfterUnlinkHook {
	return func(ctx context.Context, team entity.Entity, link, userID string) error {
		if link != LinkUsers {
			return nil
		}
		return clearDefaultTeam(ctx, users, userID, team.GetID())
	}
}

// UnsetDefaultTeamOfUser is UnsetUserDefaultTeam for teams removed through
// the user's teams link.
func UnsetDefaultTeamOfUser(users UserStore) AfterUnlinkHook {
	return func(ctx context.Context, user entity.Entity, link, teamID string) error {
		if link != LinkTeams {
			return nil
		}
		return clearDefaultTeam(ctx, users, user.GetID(), teamID)
	}
}

func clearDefaultTeam(ctx context.Context, users UserStore, userID, teamID string) error {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user.DefaultTeamID == "" || user.DefaultTeamID != teamID {
		return nil
	}
	user.DefaultTeamID = ""
	if err := users.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to unset default team of user %s: %w", userID, err)
	}
	return nil
}

// InvalidateRoleCache drops the cached tables of a saved role.
func InvalidateRoleCache(cache RoleInvalidator) AfterSaveHook {
	return func(ctx context.Context, role entity.Entity) error {
		return cache.InvalidateRole(ctx, role.GetID())
	}
}

// RegisterBuiltins registers the default-team and role cache hooks.
func RegisterBuiltins(h *HookManager, users UserStore, cache RoleInvalidator) {
	h.RegisterAfterUnlink(EntityTypeTeam, UnsetUserDefaultTeam(users))
	h.RegisterAfterUnlink(EntityTypeUser, UnsetDefaultTeamOfUser(users))
	h.RegisterAfterSave(EntityTypeRole, InvalidateRoleCache(cache))
}
