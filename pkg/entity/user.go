package entity

// EntityTypeUser is the entity type of users.
const EntityTypeUser = "User"

// UserType classifies users.
type UserType string

const (
	UserTypeRegular    UserType = "regular"
	UserTypeAdmin      UserType = "admin"
	UserTypePortal     UserType = "portal"
	UserTypeAPI        UserType = "api"
	UserTypeSuperAdmin UserType = "super-admin"
	UserTypeSystem     UserType = "system"
)

// User is the acting principal of an access decision. It is also an Entity
// of type User so that access to user records is decided the same way.
type User struct {
	ID            string
	UserName      string
	Type          UserType
	PortalID      string
	TeamIDs       []string
	DefaultTeamID string
	AccountIDs    []string
	ContactID     string
	CreatedByID   string
}

// IsAdmin reports whether the user bypasses role-based restrictions.
func (u *User) IsAdmin() bool {
	switch u.Type {
	case UserTypeAdmin, UserTypeSuperAdmin, UserTypeSystem:
		return true
	}
	return false
}

func (u *User) IsSuperAdmin() bool { return u.Type == UserTypeSuperAdmin }

func (u *User) IsSystem() bool { return u.Type == UserTypeSystem }

func (u *User) IsPortal() bool { return u.Type == UserTypePortal }

func (u *User) IsAPI() bool { return u.Type == UserTypeAPI }

// IsRegular reports whether the user is an internal non-admin user.
func (u *User) IsRegular() bool {
	return u.Type == UserTypeRegular || u.Type == ""
}

// HasTeam reports whether the user is a member of the team.
func (u *User) HasTeam(teamID string) bool {
	return Contains(u.TeamIDs, teamID)
}

func (u *User) EntityType() string { return EntityTypeUser }

func (u *User) GetID() string { return u.ID }

func (u *User) Get(attribute string) any {
	switch attribute {
	case AttrID:
		return u.ID
	case "userName", AttrName:
		return u.UserName
	case AttrType:
		return string(u.Type)
	case AttrPortalID:
		return u.PortalID
	case AttrTeamsIDs:
		return u.TeamIDs
	case AttrDefaultTeamID:
		if u.DefaultTeamID == "" {
			return nil
		}
		return u.DefaultTeamID
	case AttrAccountsIDs:
		return u.AccountIDs
	case AttrContactID:
		if u.ContactID == "" {
			return nil
		}
		return u.ContactID
	case AttrCreatedByID:
		if u.CreatedByID == "" {
			return nil
		}
		return u.CreatedByID
	}
	return nil
}

func (u *User) Has(attribute string) bool {
	switch attribute {
	case AttrID, "userName", AttrName, AttrType, AttrPortalID, AttrTeamsIDs,
		AttrDefaultTeamID, AttrAccountsIDs, AttrContactID, AttrCreatedByID:
		return true
	}
	return false
}
