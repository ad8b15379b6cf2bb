package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"atrium/api/internal/cache"
	"atrium/api/internal/perm"
	"atrium/api/internal/search"
	"atrium/api/internal/store"
	"atrium/api/internal/util"
	"golang.org/x/crypto/bcrypt"
)

const (
	ResourceAccount = "account"
	ResourceFolder  = "folder"
	ResourceMedia   = "media"
)

func validResourceType(rt string) bool {
	return rt == ResourceAccount || rt == ResourceFolder || rt == ResourceMedia
}

func permKey(userID, resourceType, resourceID string) string {
	return cache.Key("perm", "user", userID, resourceType, resourceID)
}

// EffectiveRole resolves the caller's role on a resource. Superusers get
// admin without touching the cache, so a poisoned or stale entry can never
// lock out the superuser. Everyone else goes through the permission cache;
// force bypasses a fresh cached value and re-resolves from the database.
func (s *Service) EffectiveRole(ctx context.Context, session Session, resourceType, resourceID string, force bool) (perm.Role, error) {
	if !validResourceType(resourceType) {
		return perm.RoleNone, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown resource type", nil)
	}
	if session.Superuser {
		return perm.RoleAdmin, nil
	}

	value, err := s.cache.GetOrSet(ctx, permKey(session.UserID, resourceType, resourceID), cache.TTLMedium, force,
		func(ctx context.Context) ([]byte, error) {
			role, err := s.resolveRole(ctx, session.UserID, resourceType, resourceID)
			if err != nil {
				return nil, err
			}
			return []byte(role), nil
		})
	if err != nil {
		return perm.RoleNone, err
	}
	return perm.Normalize(string(value)), nil
}

// resolveRole is the uncached resolution path: ownership, then direct and
// group grants plus any account share, folded through perm.Resolve.
func (s *Service) resolveRole(ctx context.Context, userID, resourceType, resourceID string) (perm.Role, error) {
	ownerID, err := s.resourceOwner(ctx, resourceType, resourceID)
	if err != nil {
		return perm.RoleNone, err
	}
	if ownerID == userID {
		return perm.RoleAdmin, nil
	}

	groupIDs, err := s.store.ListUserGroupIDs(ctx, userID)
	if err != nil {
		return perm.RoleNone, err
	}

	rows, err := s.store.ListResourceGrants(ctx, resourceType, resourceID)
	if err != nil {
		return perm.RoleNone, err
	}
	grants := make([]perm.Grant, 0, len(rows)+1)
	for _, row := range rows {
		grants = append(grants, perm.Grant{
			SubjectType: row.SubjectType,
			SubjectID:   row.SubjectID,
			Role:        perm.Normalize(row.Role),
			Override:    row.IsOverride,
			ExpiresAt:   row.ExpiresAt,
		})
	}

	// An account share extends to everything the owner owns, expressed as
	// one more user-subject grant so overrides still win.
	if ownerID != "" {
		shareRole, err := s.store.GetShareRole(ctx, ownerID, userID)
		if err != nil && !isNotFound(err) {
			return perm.RoleNone, err
		}
		if shareRole != "" {
			grants = append(grants, perm.Grant{
				SubjectType: perm.SubjectUser,
				SubjectID:   userID,
				Role:        perm.Normalize(shareRole),
			})
		}
	}

	return perm.Resolve(userID, groupIDs, grants, time.Now()), nil
}

// resourceOwner returns the owning user of a resource, or "" when the
// resource type has no single owner. Missing resources surface not-found.
func (s *Service) resourceOwner(ctx context.Context, resourceType, resourceID string) (string, error) {
	switch resourceType {
	case ResourceAccount:
		return resourceID, nil
	case ResourceFolder:
		folder, err := s.store.GetFolder(ctx, resourceID)
		if err != nil {
			if isNotFound(err) {
				return "", domainError(http.StatusNotFound, "NOT_FOUND", "folder not found", nil)
			}
			return "", err
		}
		return folder.OwnerID, nil
	case ResourceMedia:
		file, err := s.store.GetMediaFile(ctx, resourceID)
		if err != nil {
			if isNotFound(err) {
				return "", domainError(http.StatusNotFound, "NOT_FOUND", "media file not found", nil)
			}
			return "", err
		}
		return file.OwnerID, nil
	}
	return "", nil
}

// Authorize checks that the session may perform action on a resource.
func (s *Service) Authorize(ctx context.Context, session Session, resourceType, resourceID string, action perm.Action) error {
	role, err := s.EffectiveRole(ctx, session, resourceType, resourceID, false)
	if err != nil {
		return err
	}
	if !perm.Can(role, action) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
	}
	return nil
}

// IsAdmin reports whether the session may use the admin surface.
func (s *Service) IsAdmin(session Session) bool {
	return session.Superuser || session.Role == "admin"
}

func (s *Service) requireAdmin(session Session) error {
	if !s.IsAdmin(session) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
	}
	return nil
}

// --- cache invalidation -----------------------------------------------------

func (s *Service) invalidateUserPerms(ctx context.Context, userID string) {
	if err := s.cache.DeletePattern(ctx, cache.Key("perm", "user", userID, "*")); err != nil {
		log.Printf("cache: invalidate perms for user %s: %v", userID, err)
	}
}

func (s *Service) invalidateResourcePerms(ctx context.Context, resourceType, resourceID string) {
	pattern := cache.Key("perm", "user", "*", resourceType, resourceID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		log.Printf("cache: invalidate perms for %s %s: %v", resourceType, resourceID, err)
	}
}

func (s *Service) invalidateUserLists(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, "users:list*"); err != nil {
		log.Printf("cache: invalidate user lists: %v", err)
	}
	_ = s.cache.Delete(ctx, keySummary)
}

// invalidateGroupPerms drops the cached permissions of every member of a
// group. Called when a group or one of its grants changes.
func (s *Service) invalidateGroupPerms(ctx context.Context, groupID string) {
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		log.Printf("cache: list members of group %s: %v", groupID, err)
		return
	}
	for _, member := range members {
		s.invalidateUserPerms(ctx, member.UserID)
	}
}

// --- permissions ------------------------------------------------------------

type GrantRequest struct {
	SubjectType  string
	SubjectID    string
	ResourceType string
	ResourceID   string
	Role         string
	IsOverride   bool
	ExpiresAt    *time.Time
}

// GrantPermission creates or updates a grant. Only managers and above on
// the target resource (or admins) may grant, and nobody grants a role
// stronger than their own.
func (s *Service) GrantPermission(ctx context.Context, session Session, req GrantRequest) (store.Permission, error) {
	if req.SubjectType != perm.SubjectUser && req.SubjectType != perm.SubjectGroup {
		return store.Permission{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subjectType must be user or group", nil)
	}
	if !validResourceType(req.ResourceType) {
		return store.Permission{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown resource type", nil)
	}
	if !perm.GrantableRole(req.Role) && !(req.IsOverride && perm.Normalize(req.Role) == perm.RoleNone) {
		return store.Permission{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", nil)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return store.Permission{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "expiresAt must be in the future", nil)
	}

	if err := s.Authorize(ctx, session, req.ResourceType, req.ResourceID, perm.ActionManage); err != nil {
		return store.Permission{}, err
	}
	if !session.Superuser {
		granterRole, err := s.EffectiveRole(ctx, session, req.ResourceType, req.ResourceID, false)
		if err != nil {
			return store.Permission{}, err
		}
		if perm.Max(granterRole, perm.Normalize(req.Role)) != granterRole {
			return store.Permission{}, domainError(http.StatusForbidden, "FORBIDDEN", "cannot grant a role above your own", nil)
		}
	}

	switch req.SubjectType {
	case perm.SubjectUser:
		if _, err := s.store.GetUserByID(ctx, req.SubjectID); err != nil {
			if isNotFound(err) {
				return store.Permission{}, domainError(http.StatusNotFound, "NOT_FOUND", "subject user not found", nil)
			}
			return store.Permission{}, err
		}
	case perm.SubjectGroup:
		if _, err := s.store.GetGroup(ctx, req.SubjectID); err != nil {
			if isNotFound(err) {
				return store.Permission{}, domainError(http.StatusNotFound, "NOT_FOUND", "subject group not found", nil)
			}
			return store.Permission{}, err
		}
	}

	grant := store.Permission{
		ID:           util.NewID("prm"),
		SubjectType:  req.SubjectType,
		SubjectID:    req.SubjectID,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Role:         req.Role,
		IsOverride:   req.IsOverride,
		GrantedBy:    session.UserID,
		ExpiresAt:    req.ExpiresAt,
	}
	if err := s.store.UpsertPermission(ctx, grant); err != nil {
		return store.Permission{}, err
	}

	if req.SubjectType == perm.SubjectUser {
		s.invalidateUserPerms(ctx, req.SubjectID)
	} else {
		s.invalidateGroupPerms(ctx, req.SubjectID)
	}

	if req.SubjectType == perm.SubjectUser && req.SubjectID != session.UserID {
		s.Notify(ctx, req.SubjectID, "permission_granted", "Access granted",
			fmt.Sprintf("You were granted %s access on a %s.", req.Role, req.ResourceType))
	}
	return grant, nil
}

// RevokePermission deletes a grant and invalidates its subject.
func (s *Service) RevokePermission(ctx context.Context, session Session, permissionID string) error {
	grant, err := s.store.GetPermission(ctx, permissionID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "permission not found", nil)
		}
		return err
	}
	if err := s.Authorize(ctx, session, grant.ResourceType, grant.ResourceID, perm.ActionManage); err != nil {
		return err
	}
	if err := s.store.DeletePermission(ctx, permissionID); err != nil {
		return err
	}

	if grant.SubjectType == perm.SubjectUser {
		s.invalidateUserPerms(ctx, grant.SubjectID)
	} else {
		s.invalidateGroupPerms(ctx, grant.SubjectID)
	}
	return nil
}

// ListResourcePermissions returns the grants on one resource with subject
// details joined in, for the permission management UI.
func (s *Service) ListResourcePermissions(ctx context.Context, session Session, resourceType, resourceID string) ([]store.PermissionWithDetails, error) {
	if !validResourceType(resourceType) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown resource type", nil)
	}
	if err := s.Authorize(ctx, session, resourceType, resourceID, perm.ActionManage); err != nil {
		return nil, err
	}
	return s.store.ListPermissions(ctx, resourceType, resourceID)
}

// --- groups -----------------------------------------------------------------

func (s *Service) CreateGroup(ctx context.Context, session Session, name, description string) (store.Group, error) {
	if err := s.requireAdmin(session); err != nil {
		return store.Group{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Group{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	group := store.Group{
		ID:          util.NewID("grp"),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertGroup(ctx, group); err != nil {
		return store.Group{}, err
	}
	s.search.IndexGroup(search.GroupRecord{ID: group.ID, Name: group.Name, Description: group.Description})
	return group, nil
}

func (s *Service) GetGroup(ctx context.Context, session Session, groupID string) (store.Group, []store.GroupMember, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if isNotFound(err) {
			return store.Group{}, nil, domainError(http.StatusNotFound, "NOT_FOUND", "group not found", nil)
		}
		return store.Group{}, nil, err
	}
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return store.Group{}, nil, err
	}
	return group, members, nil
}

func (s *Service) ListGroups(ctx context.Context, session Session) ([]store.Group, error) {
	return s.store.ListGroups(ctx)
}

// MyGroups lists the groups the caller belongs to. A membership row whose
// group was deleted underneath it is skipped.
func (s *Service) MyGroups(ctx context.Context, session Session) ([]store.Group, error) {
	ids, err := s.store.ListUserGroupIDs(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	groups := make([]store.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.store.GetGroup(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *Service) UpdateGroup(ctx context.Context, session Session, groupID, name, description string) (store.Group, error) {
	if err := s.requireAdmin(session); err != nil {
		return store.Group{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Group{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.store.UpdateGroup(ctx, groupID, name, strings.TrimSpace(description)); err != nil {
		if isNotFound(err) {
			return store.Group{}, domainError(http.StatusNotFound, "NOT_FOUND", "group not found", nil)
		}
		return store.Group{}, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return store.Group{}, err
	}
	s.search.IndexGroup(search.GroupRecord{ID: group.ID, Name: group.Name, Description: group.Description})
	return group, nil
}

// DeleteGroup removes a group. Member permission caches are invalidated
// first, while the membership rows still exist to enumerate.
func (s *Service) DeleteGroup(ctx context.Context, session Session, groupID string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "group not found", nil)
		}
		return err
	}
	s.invalidateGroupPerms(ctx, groupID)
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	s.search.DeleteGroup(groupID)
	return nil
}

func (s *Service) AddGroupMember(ctx context.Context, session Session, groupID, userID string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "group not found", nil)
		}
		return err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		}
		return err
	}
	if err := s.store.AddGroupMember(ctx, groupID, userID, session.UserID); err != nil {
		return err
	}
	s.invalidateUserPerms(ctx, userID)
	s.Notify(ctx, user.ID, "group_added", "Added to group", "You were added to a group.")
	return nil
}

func (s *Service) RemoveGroupMember(ctx context.Context, session Session, groupID, userID string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if err := s.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "membership not found", nil)
		}
		return err
	}
	s.invalidateUserPerms(ctx, userID)
	return nil
}

// --- account shares ---------------------------------------------------------

type ShareRequest struct {
	GranteeEmail string
	Role         string
	ExpiresAt    *time.Time
}

// CreateShare grants another user a role over the caller's whole account,
// including every folder and file the caller owns.
func (s *Service) CreateShare(ctx context.Context, session Session, req ShareRequest) (store.AccountShare, error) {
	if !perm.GrantableRole(req.Role) {
		return store.AccountShare{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", nil)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return store.AccountShare{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "expiresAt must be in the future", nil)
	}

	grantee, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(req.GranteeEmail)))
	if err != nil {
		if isNotFound(err) {
			return store.AccountShare{}, domainError(http.StatusNotFound, "NOT_FOUND", "no account with that email", nil)
		}
		return store.AccountShare{}, err
	}
	if grantee.ID == session.UserID {
		return store.AccountShare{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot share an account with yourself", nil)
	}

	share := store.AccountShare{
		ID:        util.NewID("shr"),
		OwnerID:   session.UserID,
		GranteeID: grantee.ID,
		Role:      req.Role,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.store.UpsertAccountShare(ctx, share); err != nil {
		return store.AccountShare{}, err
	}

	// The grantee's cached roles on the owner's resources are all stale now.
	s.invalidateUserPerms(ctx, grantee.ID)

	s.Notify(ctx, grantee.ID, "share_received", "Account shared with you",
		fmt.Sprintf("%s shared their account with you as %s.", session.UserName, req.Role))
	if s.SMTPConfigured() {
		if err := s.email.SendShareInviteEmail(grantee.Email, session.UserName, req.Role, s.cfg.PublicBaseURL); err != nil {
			log.Printf("email: share invite to %s: %v", grantee.Email, err)
		}
	}
	return share, nil
}

// DeleteShare revokes a share. The owner, the grantee, or an admin may do it.
func (s *Service) DeleteShare(ctx context.Context, session Session, shareID string) error {
	share, err := s.store.GetAccountShare(ctx, shareID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "share not found", nil)
		}
		return err
	}
	if share.OwnerID != session.UserID && share.GranteeID != session.UserID && !s.IsAdmin(session) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "not your share", nil)
	}
	if err := s.store.DeleteAccountShare(ctx, shareID); err != nil {
		return err
	}
	s.invalidateUserPerms(ctx, share.GranteeID)
	return nil
}

// ListShares returns the caller's shares in both directions.
func (s *Service) ListShares(ctx context.Context, session Session) (owned []store.AccountShare, received []store.AccountShare, err error) {
	owned, err = s.store.ListSharesByOwner(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	received, err = s.store.ListSharesForGrantee(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	return owned, received, nil
}

// --- admin user management --------------------------------------------------

type UserSummary struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	IsSuperuser     bool       `json:"isSuperuser"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	DeactivatedAt   *time.Time `json:"deactivatedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type UserList struct {
	Users []UserSummary `json:"users"`
	Total int           `json:"total"`
}

func summarizeUser(user store.User) UserSummary {
	return UserSummary{
		ID:              user.ID,
		DisplayName:     user.DisplayName,
		Email:           user.Email,
		Role:            user.Role,
		IsSuperuser:     user.IsSuperuser,
		IsEmailVerified: user.IsEmailVerified,
		DeactivatedAt:   user.DeactivatedAt,
		CreatedAt:       user.CreatedAt,
	}
}

// ListUsers is the admin user listing. Results are cached per filter set
// with the short TTL; any user mutation invalidates the whole family.
func (s *Service) ListUsers(ctx context.Context, session Session, searchTerm string, limit, offset int, force bool) (UserList, error) {
	if err := s.requireAdmin(session); err != nil {
		return UserList{}, err
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	key := cache.FilterKey("users:list", map[string]any{
		"search": strings.TrimSpace(searchTerm),
		"limit":  limit,
		"offset": offset,
	})
	value, err := s.cache.GetOrSet(ctx, key, cache.TTLShort, force, func(ctx context.Context) ([]byte, error) {
		users, total, err := s.store.ListUsers(ctx, strings.TrimSpace(searchTerm), limit, offset)
		if err != nil {
			return nil, err
		}
		list := UserList{Users: make([]UserSummary, 0, len(users)), Total: total}
		for _, user := range users {
			list.Users = append(list.Users, summarizeUser(user))
		}
		return json.Marshal(list)
	})
	if err != nil {
		return UserList{}, err
	}

	var list UserList
	if err := json.Unmarshal(value, &list); err != nil {
		return UserList{}, fmt.Errorf("decode cached user list: %w", err)
	}
	return list, nil
}

// CreateUser provisions an account directly, already verified, skipping
// the self-service sign-up flow.
func (s *Service) CreateUser(ctx context.Context, session Session, name, userEmail, password, role string) (store.User, error) {
	if err := s.requireAdmin(session); err != nil {
		return store.User{}, err
	}
	name = strings.TrimSpace(name)
	userEmail = strings.TrimSpace(strings.ToLower(userEmail))
	if name == "" || userEmail == "" {
		return store.User{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name and email are required", nil)
	}
	if len(password) < 8 {
		return store.User{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "password must be at least 8 characters", nil)
	}
	if role == "" {
		role = "member"
	}
	if role != "member" && role != "admin" {
		return store.User{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be member or admin", nil)
	}
	if _, err := s.store.GetUserByEmail(ctx, userEmail); err == nil {
		return store.User{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now()
	user := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     name,
		Email:           userEmail,
		PasswordHash:    string(hash),
		Role:            role,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, err
	}
	s.invalidateUserLists(ctx)
	s.search.IndexUser(search.UserRecord{ID: user.ID, DisplayName: user.DisplayName, Email: user.Email})
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, session Session, userID string) (store.User, error) {
	if err := s.requireAdmin(session); err != nil {
		return store.User{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return store.User{}, domainError(http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		}
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) SetUserRole(ctx context.Context, session Session, userID, role string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if role != "member" && role != "admin" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be member or admin", nil)
	}
	if userID == session.UserID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot change your own role", nil)
	}
	if err := s.store.UpdateUserRole(ctx, userID, role); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		}
		return err
	}
	s.invalidateUserLists(ctx)
	s.invalidateUserPerms(ctx, userID)
	return nil
}

// SetUserSuperuser toggles the superuser flag. Only another superuser may
// do this, and never on themselves.
func (s *Service) SetUserSuperuser(ctx context.Context, session Session, userID string, superuser bool) error {
	if !session.Superuser {
		return domainError(http.StatusForbidden, "FORBIDDEN", "superuser access required", nil)
	}
	if userID == session.UserID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot change your own superuser flag", nil)
	}
	if err := s.store.SetUserSuperuser(ctx, userID, superuser); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		}
		return err
	}
	s.invalidateUserLists(ctx)
	return nil
}

// SetUserDeactivated suspends or restores an account. Deactivation takes
// effect on the next token check; existing refresh tokens stop working
// because the user row is re-read on refresh.
func (s *Service) SetUserDeactivated(ctx context.Context, session Session, userID string, deactivated bool) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if userID == session.UserID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot deactivate yourself", nil)
	}
	target, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		}
		return err
	}
	if target.IsSuperuser && !session.Superuser {
		return domainError(http.StatusForbidden, "FORBIDDEN", "superuser access required", nil)
	}
	if err := s.store.SetUserDeactivated(ctx, userID, deactivated); err != nil {
		return err
	}
	s.invalidateUserLists(ctx)
	s.invalidateUserPerms(ctx, userID)
	return nil
}

// DeleteUser removes an account and everything that cascades from it.
func (s *Service) DeleteUser(ctx context.Context, session Session, userID string) error {
	if err := s.requireAdmin(session); err != nil {
		return err
	}
	if userID == session.UserID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot delete yourself", nil)
	}
	target, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		}
		return err
	}
	if target.IsSuperuser && !session.Superuser {
		return domainError(http.StatusForbidden, "FORBIDDEN", "superuser access required", nil)
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.invalidateUserLists(ctx)
	s.invalidateUserPerms(ctx, userID)
	s.invalidateResourcePerms(ctx, ResourceAccount, userID)
	s.search.DeleteUser(userID)
	return nil
}

const keySummary = "admin:summary"

// Summary returns the dashboard counters, cached with the medium TTL.
func (s *Service) Summary(ctx context.Context, session Session, force bool) (store.SummaryCounts, error) {
	if err := s.requireAdmin(session); err != nil {
		return store.SummaryCounts{}, err
	}
	value, err := s.cache.GetOrSet(ctx, keySummary, cache.TTLMedium, force, func(ctx context.Context) ([]byte, error) {
		counts, err := s.store.Summary(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(counts)
	})
	if err != nil {
		return store.SummaryCounts{}, err
	}
	var counts store.SummaryCounts
	if err := json.Unmarshal(value, &counts); err != nil {
		return store.SummaryCounts{}, fmt.Errorf("decode cached summary: %w", err)
	}
	return counts, nil
}
