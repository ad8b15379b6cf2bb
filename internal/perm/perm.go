// Package perm implements the layered authorization model: a user's
// effective role on a resource is resolved from direct grants, grants to
// the groups the user belongs to, and account shares, with user-level
// overrides winning outright.
package perm

import "time"

type Role string
type Action string

const (
	RoleNone    Role = "none"
	RoleViewer  Role = "viewer"
	RoleEditor  Role = "editor"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
	ActionAdmin  Action = "admin"
)

const (
	SubjectUser  = "user"
	SubjectGroup = "group"
)

// Grant is one permission row as it participates in resolution. Account
// shares are presented to Resolve as user-subject grants by the caller.
type Grant struct {
	SubjectType string
	SubjectID   string
	Role        Role
	Override    bool
	ExpiresAt   *time.Time
}

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action == ActionRead || action == ActionWrite || action == ActionManage
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleNone, RoleViewer, RoleEditor, RoleManager, RoleAdmin:
		return Role(role)
	default:
		return RoleNone
	}
}

// GrantableRoles are the roles accepted on grant/share endpoints. RoleNone
// is only valid on overrides, where it denies access.
func GrantableRole(role string) bool {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

func rank(role Role) int {
	switch role {
	case RoleAdmin:
		return 4
	case RoleManager:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Max returns the stronger of two roles.
func Max(a, b Role) Role {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Resolve computes the effective role of userID given its group memberships
// and the grants on one resource. Expired grants are ignored. A non-expired
// user-level override short-circuits everything, including other grants that
// would allow more: overrides may lower access or deny it (RoleNone). When
// several overrides exist the strongest one applies.
func Resolve(userID string, groupIDs []string, grants []Grant, now time.Time) Role {
	groups := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = struct{}{}
	}

	effective := RoleNone
	override := false
	overrideRole := RoleNone

	for _, grant := range grants {
		if grant.ExpiresAt != nil && !grant.ExpiresAt.After(now) {
			continue
		}
		switch grant.SubjectType {
		case SubjectUser:
			if grant.SubjectID != userID {
				continue
			}
			if grant.Override {
				if !override || rank(grant.Role) > rank(overrideRole) {
					overrideRole = grant.Role
				}
				override = true
				continue
			}
			effective = Max(effective, grant.Role)
		case SubjectGroup:
			if _, ok := groups[grant.SubjectID]; !ok {
				continue
			}
			effective = Max(effective, grant.Role)
		}
	}

	if override {
		return overrideRole
	}
	return effective
}
