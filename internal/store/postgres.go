package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- Users ----

const userColumns = `id, display_name, email, password_hash, role, is_superuser,
	is_email_verified, COALESCE(verification_token, ''), verification_expires_at,
	deactivated_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsSuperuser, &user.IsEmailVerified, &user.VerificationToken,
		&user.VerificationExpiresAt, &user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_superuser, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, NULLIF($8, ''), $9)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role,
		user.IsSuperuser, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) ListUsers(ctx context.Context, search string, limit, offset int) ([]User, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE $1 = '' OR display_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
	`, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE $1 = '' OR display_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, displayName string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name=$2, updated_at=NOW() WHERE id=$1
	`, userID, displayName)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`, userID, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) SetUserSuperuser(ctx context.Context, userID string, superuser bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_superuser=$2, updated_at=NOW() WHERE id=$1`, userID, superuser)
	if err != nil {
		return fmt.Errorf("set superuser: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error {
	query := `UPDATE users SET deactivated_at=NOW(), updated_at=NOW() WHERE id=$1`
	if !deactivated {
		query = `UPDATE users SET deactivated_at=NULL, updated_at=NOW() WHERE id=$1`
	}
	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("set deactivated: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// ---- Refresh sessions (Postgres fallback when Redis is not configured) ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession returns the user ID behind a live refresh token hash.
func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())
	`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

// ---- Groups ----

func (s *PostgresStore) InsertGroup(ctx context.Context, group Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, created_by) VALUES ($1, $2, $3, $4)
	`, group.ID, group.Name, group.Description, nullable(group.CreatedBy))
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (Group, error) {
	var group Group
	var createdBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id, g.name, g.description, g.created_by, g.created_at, g.updated_at,
			(SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = g.id)
		FROM groups g WHERE g.id=$1
	`, groupID).Scan(&group.ID, &group.Name, &group.Description, &createdBy,
		&group.CreatedAt, &group.UpdatedAt, &group.MemberCount)
	if err != nil {
		return Group{}, err
	}
	group.CreatedBy = createdBy.String
	return group, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.description, COALESCE(g.created_by, ''), g.created_at, g.updated_at,
			(SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = g.id)
		FROM groups g ORDER BY g.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedBy,
			&group.CreatedAt, &group.UpdatedAt, &group.MemberCount); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (s *PostgresStore) UpdateGroup(ctx context.Context, groupID, name, description string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE groups SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, groupID, name, description)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteGroup(ctx context.Context, groupID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) AddGroupMember(ctx context.Context, groupID, userID, addedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_memberships (group_id, user_id, added_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, userID, nullable(addedBy))
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM group_memberships WHERE group_id=$1 AND user_id=$2
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.display_name, u.email, COALESCE(gm.added_by, ''), gm.created_at
		FROM group_memberships gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id=$1
		ORDER BY u.display_name
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	var members []GroupMember
	for rows.Next() {
		var member GroupMember
		if err := rows.Scan(&member.UserID, &member.DisplayName, &member.Email,
			&member.AddedBy, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// ListUserGroupIDs returns the IDs of every group the user belongs to. This
// feeds permission resolution.
func (s *PostgresStore) ListUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM group_memberships WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- Permissions ----

func (s *PostgresStore) UpsertPermission(ctx context.Context, p Permission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO permissions (id, subject_type, subject_id, resource_type, resource_id, role, is_override, granted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject_type, subject_id, resource_type, resource_id, is_override)
		DO UPDATE SET role=EXCLUDED.role, granted_by=EXCLUDED.granted_by, granted_at=NOW(), expires_at=EXCLUDED.expires_at
	`, p.ID, p.SubjectType, p.SubjectID, p.ResourceType, p.ResourceID, p.Role,
		p.IsOverride, nullable(p.GrantedBy), p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPermission(ctx context.Context, permissionID string) (Permission, error) {
	var p Permission
	var grantedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject_type, subject_id, resource_type, resource_id, role, is_override, granted_by, granted_at, expires_at
		FROM permissions WHERE id=$1
	`, permissionID).Scan(&p.ID, &p.SubjectType, &p.SubjectID, &p.ResourceType,
		&p.ResourceID, &p.Role, &p.IsOverride, &grantedBy, &p.GrantedAt, &p.ExpiresAt)
	if err != nil {
		return Permission{}, err
	}
	p.GrantedBy = grantedBy.String
	return p, nil
}

func (s *PostgresStore) DeletePermission(ctx context.Context, permissionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE id=$1`, permissionID)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	return requireRow(result)
}

// ListResourceGrants returns the raw grant rows on one resource, including
// expired ones; the resolver filters by expiry itself.
func (s *PostgresStore) ListResourceGrants(ctx context.Context, resourceType, resourceID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_type, subject_id, resource_type, resource_id, role, is_override, COALESCE(granted_by, ''), granted_at, expires_at
		FROM permissions
		WHERE resource_type=$1 AND resource_id=$2
	`, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list resource grants: %w", err)
	}
	defer rows.Close()

	var grants []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.SubjectType, &p.SubjectID, &p.ResourceType,
			&p.ResourceID, &p.Role, &p.IsOverride, &p.GrantedBy, &p.GrantedAt, &p.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, p)
	}
	return grants, rows.Err()
}

// ListPermissions returns the grants on a resource joined with subject
// details for the admin API.
func (s *PostgresStore) ListPermissions(ctx context.Context, resourceType, resourceID string) ([]PermissionWithDetails, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.subject_type, p.subject_id, p.resource_type, p.resource_id,
			p.role, p.is_override, COALESCE(p.granted_by, ''), p.granted_at, p.expires_at,
			u.email, u.display_name, g.name,
			(SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = g.id)
		FROM permissions p
		LEFT JOIN users u ON p.subject_type = 'user' AND u.id = p.subject_id
		LEFT JOIN groups g ON p.subject_type = 'group' AND g.id = p.subject_id
		WHERE p.resource_type=$1 AND p.resource_id=$2
		ORDER BY p.granted_at DESC
	`, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var perms []PermissionWithDetails
	for rows.Next() {
		var p PermissionWithDetails
		var memberCount sql.NullInt64
		if err := rows.Scan(&p.ID, &p.SubjectType, &p.SubjectID, &p.ResourceType,
			&p.ResourceID, &p.Role, &p.IsOverride, &p.GrantedBy, &p.GrantedAt, &p.ExpiresAt,
			&p.UserEmail, &p.UserName, &p.GroupName, &memberCount); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		if memberCount.Valid {
			count := int(memberCount.Int64)
			p.MemberCount = &count
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ---- Account shares ----

func (s *PostgresStore) UpsertAccountShare(ctx context.Context, share AccountShare) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_shares (id, owner_id, grantee_id, role, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, grantee_id) DO UPDATE SET role=EXCLUDED.role, expires_at=EXCLUDED.expires_at, created_at=NOW()
	`, share.ID, share.OwnerID, share.GranteeID, share.Role, share.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert account share: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccountShare(ctx context.Context, shareID string) (AccountShare, error) {
	var share AccountShare
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, grantee_id, role, created_at, expires_at
		FROM account_shares WHERE id=$1
	`, shareID).Scan(&share.ID, &share.OwnerID, &share.GranteeID, &share.Role,
		&share.CreatedAt, &share.ExpiresAt)
	if err != nil {
		return AccountShare{}, err
	}
	return share, nil
}

func (s *PostgresStore) DeleteAccountShare(ctx context.Context, shareID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM account_shares WHERE id=$1`, shareID)
	if err != nil {
		return fmt.Errorf("delete account share: %w", err)
	}
	return requireRow(result)
}

const shareColumns = `s.id, s.owner_id, s.grantee_id, s.role, s.created_at, s.expires_at,
	o.display_name, o.email, g.display_name, g.email`

func (s *PostgresStore) listShares(ctx context.Context, where, param string) ([]AccountShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shareColumns+`
		FROM account_shares s
		JOIN users o ON o.id = s.owner_id
		JOIN users g ON g.id = s.grantee_id
		WHERE `+where+`
		ORDER BY s.created_at DESC
	`, param)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var shares []AccountShare
	for rows.Next() {
		var share AccountShare
		if err := rows.Scan(&share.ID, &share.OwnerID, &share.GranteeID, &share.Role,
			&share.CreatedAt, &share.ExpiresAt, &share.OwnerName, &share.OwnerEmail,
			&share.GranteeName, &share.GranteeEmail); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func (s *PostgresStore) ListSharesByOwner(ctx context.Context, ownerID string) ([]AccountShare, error) {
	return s.listShares(ctx, "s.owner_id=$1", ownerID)
}

func (s *PostgresStore) ListSharesForGrantee(ctx context.Context, granteeID string) ([]AccountShare, error) {
	return s.listShares(ctx, "s.grantee_id=$1", granteeID)
}

// GetShareRole returns the non-expired share role granted to granteeID on
// ownerID's account, or sql.ErrNoRows.
func (s *PostgresStore) GetShareRole(ctx context.Context, ownerID, granteeID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM account_shares
		WHERE owner_id=$1 AND grantee_id=$2 AND (expires_at IS NULL OR expires_at > NOW())
	`, ownerID, granteeID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

// ---- Media ----

func (s *PostgresStore) InsertFolder(ctx context.Context, folder MediaFolder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_folders (id, owner_id, parent_id, name) VALUES ($1, $2, $3, $4)
	`, folder.ID, folder.OwnerID, folder.ParentID, folder.Name)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, folderID string) (MediaFolder, error) {
	var folder MediaFolder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, parent_id, name, created_at, updated_at
		FROM media_folders WHERE id=$1
	`, folderID).Scan(&folder.ID, &folder.OwnerID, &folder.ParentID, &folder.Name,
		&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return MediaFolder{}, err
	}
	return folder, nil
}

func (s *PostgresStore) UpdateFolder(ctx context.Context, folderID, name string, parentID *string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE media_folders SET name=$2, parent_id=$3, updated_at=NOW() WHERE id=$1
	`, folderID, name, parentID)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteFolder(ctx context.Context, folderID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM media_folders WHERE id=$1`, folderID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ListFolders(ctx context.Context, ownerID string, parentID *string) ([]MediaFolder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, parent_id, name, created_at, updated_at
		FROM media_folders
		WHERE owner_id=$1 AND (($2::text IS NULL AND parent_id IS NULL) OR parent_id=$2)
		ORDER BY name
	`, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []MediaFolder
	for rows.Next() {
		var folder MediaFolder
		if err := rows.Scan(&folder.ID, &folder.OwnerID, &folder.ParentID, &folder.Name,
			&folder.CreatedAt, &folder.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

func (s *PostgresStore) InsertMediaFile(ctx context.Context, file MediaFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_files (id, owner_id, folder_id, name, object_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, file.ID, file.OwnerID, file.FolderID, file.Name, file.ObjectKey, file.ContentType, file.SizeBytes)
	if err != nil {
		return fmt.Errorf("insert media file: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMediaFile(ctx context.Context, fileID string) (MediaFile, error) {
	var file MediaFile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, folder_id, name, object_key, content_type, size_bytes, created_at
		FROM media_files WHERE id=$1
	`, fileID).Scan(&file.ID, &file.OwnerID, &file.FolderID, &file.Name,
		&file.ObjectKey, &file.ContentType, &file.SizeBytes, &file.CreatedAt)
	if err != nil {
		return MediaFile{}, err
	}
	return file, nil
}

func (s *PostgresStore) DeleteMediaFile(ctx context.Context, fileID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM media_files WHERE id=$1`, fileID)
	if err != nil {
		return fmt.Errorf("delete media file: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ListMediaFiles(ctx context.Context, ownerID string, folderID *string) ([]MediaFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, folder_id, name, object_key, content_type, size_bytes, created_at
		FROM media_files
		WHERE owner_id=$1 AND (($2::text IS NULL AND folder_id IS NULL) OR folder_id=$2)
		ORDER BY created_at DESC
	`, ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	defer rows.Close()

	var files []MediaFile
	for rows.Next() {
		var file MediaFile
		if err := rows.Scan(&file.ID, &file.OwnerID, &file.FolderID, &file.Name,
			&file.ObjectKey, &file.ContentType, &file.SizeBytes, &file.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media file: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// ---- Notifications ----

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body) VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Body)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, title, body, is_read, created_at
		FROM notifications
		WHERE user_id=$1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, notificationID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read=FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// ---- Admin dashboard ----

func (s *PostgresStore) Summary(ctx context.Context) (SummaryCounts, error) {
	var counts SummaryCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE deactivated_at IS NULL),
			(SELECT COUNT(*) FROM groups),
			(SELECT COUNT(*) FROM media_files),
			(SELECT COUNT(*) FROM notifications)
	`).Scan(&counts.Users, &counts.ActiveUsers, &counts.Groups, &counts.MediaFiles, &counts.Notifications)
	if err != nil {
		return SummaryCounts{}, fmt.Errorf("summary counts: %w", err)
	}
	return counts, nil
}

// SearchDirectory is the Postgres fallback for the admin directory search.
func (s *PostgresStore) SearchDirectory(ctx context.Context, query string, limit int) ([]DirectoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT 'user', id, display_name, email, 0
		FROM users
		WHERE display_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		UNION ALL
		SELECT 'group', g.id, g.name, '', (SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = g.id)
		FROM groups g
		WHERE g.name ILIKE '%' || $1 || '%'
		ORDER BY 3
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search directory: %w", err)
	}
	defer rows.Close()

	var entries []DirectoryEntry
	for rows.Next() {
		var entry DirectoryEntry
		if err := rows.Scan(&entry.Kind, &entry.ID, &entry.Name, &entry.Email, &entry.MemberCount); err != nil {
			return nil, fmt.Errorf("scan directory entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ---- helpers ----

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
