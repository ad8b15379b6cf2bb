package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsSuperuser           bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Group represents a user group for permission management
type Group struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	MemberCount int
}

// GroupMembership links users to groups
type GroupMembership struct {
	GroupID   string
	UserID    string
	AddedBy   string
	CreatedAt time.Time
}

// GroupMember is a membership row joined with user details for API responses
type GroupMember struct {
	UserID      string
	DisplayName string
	Email       string
	AddedBy     string
	CreatedAt   time.Time
}

// Permission is a single grant of a role to a subject (user or group) on a
// resource. Override rows trump every other grant during resolution.
type Permission struct {
	ID           string
	SubjectType  string
	SubjectID    string
	ResourceType string
	ResourceID   string
	Role         string
	IsOverride   bool
	GrantedBy    string
	GrantedAt    time.Time
	ExpiresAt    *time.Time
}

// PermissionWithDetails includes joined user/group info for API responses
type PermissionWithDetails struct {
	Permission
	UserEmail   *string
	UserName    *string
	GroupName   *string
	MemberCount *int
}

// AccountShare grants one user a role on another user's whole account.
type AccountShare struct {
	ID          string
	OwnerID     string
	GranteeID   string
	Role        string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	OwnerName   string
	OwnerEmail  string
	GranteeName string
	GranteeEmail string
}

type MediaFolder struct {
	ID        string
	OwnerID   string
	ParentID  *string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MediaFile struct {
	ID          string
	OwnerID     string
	FolderID    *string
	Name        string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	IsRead    bool
	CreatedAt time.Time
}

// DirectoryEntry is one hit from the admin directory search, either a user
// or a group.
type DirectoryEntry struct {
	Kind        string
	ID          string
	Name        string
	Email       string
	MemberCount int
}

// SummaryCounts backs the admin dashboard stats endpoint.
type SummaryCounts struct {
	Users         int
	ActiveUsers   int
	Groups        int
	MediaFiles    int
	Notifications int
}
