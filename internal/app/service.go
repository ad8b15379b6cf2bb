package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"atrium/api/internal/auth"
	"atrium/api/internal/authpw"
	"atrium/api/internal/cache"
	"atrium/api/internal/config"
	"atrium/api/internal/email"
	"atrium/api/internal/notify"
	"atrium/api/internal/search"
	"atrium/api/internal/store"
	"atrium/api/internal/util"
	"golang.org/x/crypto/bcrypt"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	Superuser    bool
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	// users
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context, string, int, int) ([]store.User, int, error)
	UpdateUserProfile(context.Context, string, string) error
	UpdateUserRole(context.Context, string, string) error
	SetUserSuperuser(context.Context, string, bool) error
	SetUserDeactivated(context.Context, string, bool) error
	DeleteUser(context.Context, string) error
	UpdateUserPassword(context.Context, string, string) error
	UpdateUserVerificationToken(context.Context, string, string, time.Time) error
	VerifyUserEmail(context.Context, string) error
	CreatePasswordReset(context.Context, string, string, time.Time) error
	GetPasswordReset(context.Context, string) (string, error)
	MarkPasswordResetUsed(context.Context, string) error
	// token revocation
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	// groups
	InsertGroup(context.Context, store.Group) error
	GetGroup(context.Context, string) (store.Group, error)
	ListGroups(context.Context) ([]store.Group, error)
	UpdateGroup(context.Context, string, string, string) error
	DeleteGroup(context.Context, string) error
	AddGroupMember(context.Context, string, string, string) error
	RemoveGroupMember(context.Context, string, string) error
	ListGroupMembers(context.Context, string) ([]store.GroupMember, error)
	ListUserGroupIDs(context.Context, string) ([]string, error)
	// permissions
	UpsertPermission(context.Context, store.Permission) error
	GetPermission(context.Context, string) (store.Permission, error)
	DeletePermission(context.Context, string) error
	ListResourceGrants(context.Context, string, string) ([]store.Permission, error)
	ListPermissions(context.Context, string, string) ([]store.PermissionWithDetails, error)
	// shares
	UpsertAccountShare(context.Context, store.AccountShare) error
	GetAccountShare(context.Context, string) (store.AccountShare, error)
	DeleteAccountShare(context.Context, string) error
	ListSharesByOwner(context.Context, string) ([]store.AccountShare, error)
	ListSharesForGrantee(context.Context, string) ([]store.AccountShare, error)
	GetShareRole(context.Context, string, string) (string, error)
	// media
	InsertFolder(context.Context, store.MediaFolder) error
	GetFolder(context.Context, string) (store.MediaFolder, error)
	UpdateFolder(context.Context, string, string, *string) error
	DeleteFolder(context.Context, string) error
	ListFolders(context.Context, string, *string) ([]store.MediaFolder, error)
	InsertMediaFile(context.Context, store.MediaFile) error
	GetMediaFile(context.Context, string) (store.MediaFile, error)
	DeleteMediaFile(context.Context, string) error
	ListMediaFiles(context.Context, string, *string) ([]store.MediaFile, error)
	// notifications
	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string, bool, int, int) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) error
	MarkAllNotificationsRead(context.Context, string) error
	DeleteNotification(context.Context, string, string) error
	UnreadNotificationCount(context.Context, string) (int, error)
	// admin
	Summary(context.Context) (store.SummaryCounts, error)
	Ping(ctx context.Context) error
}

// SessionStore holds refresh tokens; Redis in production, Postgres as the
// fallback when Redis is not configured.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// ObjectStore is the slice of the media object store the service uses.
// A nil ObjectStore means media uploads are disabled.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key, downloadName string) (string, error)
	Remove(ctx context.Context, key string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions SessionStore
	cache    *cache.Cache
	search   *search.Service
	hub      *notify.Hub
	email    *email.Service
	objects  ObjectStore
	authpw   *authpw.Service
}

// New wires the service. email may be an unconfigured service and objects
// may be nil (media uploads disabled).
func New(cfg config.Config, dataStore dataStore, sessions SessionStore, permCache *cache.Cache, searchService *search.Service, hub *notify.Hub, emailService *email.Service, objects ObjectStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		cache:    permCache,
		search:   searchService,
		hub:      hub,
		email:    emailService,
		objects:  objects,
		authpw:   authpw.NewService(asUserStore(dataStore)),
	}
}

// userStoreAdapter narrows the dataStore to the authpw.UserStore interface.
type userStoreAdapter struct {
	dataStore
}

func asUserStore(s dataStore) authpw.UserStore {
	return userStoreAdapter{s}
}

// AuthPasswordService exposes the email/password auth flows to the HTTP layer.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SMTPConfigured reports whether outbound email is available.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// SendVerificationEmail mails a verification link for the given token.
func (s *Service) SendVerificationEmail(to, token string) error {
	url := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.PublicBaseURL, token)
	return s.email.SendVerificationEmail(to, displayNameFor(to), url)
}

// SendPasswordResetEmail mails a password reset link for the given token.
func (s *Service) SendPasswordResetEmail(to, token string) error {
	url := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.PublicBaseURL, token)
	return s.email.SendPasswordResetEmail(to, displayNameFor(to), url)
}

// displayNameFor derives a salutation from an email address. The auth
// flows deliberately avoid a user lookup here so unknown addresses behave
// exactly like known ones.
func displayNameFor(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "there"
}

// Hub exposes the WebSocket hub to the HTTP layer.
func (s *Service) Hub() *notify.Hub {
	return s.hub
}

// MediaEnabled reports whether an object store is wired.
func (s *Service) MediaEnabled() bool {
	return s.objects != nil
}

// MaxUploadBytes is the configured per-file upload limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// Bootstrap seeds the initial superuser account when the user table is
// empty, so a fresh deployment can be administered.
func (s *Service) Bootstrap(ctx context.Context) error {
	_, total, err := s.store.ListUsers(ctx, "", 1, 0)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	password := envOr("ATRIUM_ADMIN_PASSWORD", "atrium-admin")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     "Administrator",
		Email:           "admin@atrium.local",
		PasswordHash:    string(hash),
		Role:            "admin",
		IsSuperuser:     true,
		IsEmailVerified: true,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Printf("bootstrap: created initial superuser %s", admin.Email)
	return nil
}

// CreateSession issues an access/refresh token pair for a user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked before a
// new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:       user.ID,
		Name:      user.DisplayName,
		Role:      user.Role,
		Superuser: user.IsSuperuser,
		JTI:       jti,
		Exp:       expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := "rft_" + util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		Superuser:    user.IsSuperuser,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		Superuser: user.IsSuperuser,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) CachePing(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// GetProfile returns the caller's own profile.
func (s *Service) GetProfile(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

// UpdateProfile changes the caller's display name.
func (s *Service) UpdateProfile(ctx context.Context, session Session, displayName string) (map[string]any, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName is required", nil)
	}
	if err := s.store.UpdateUserProfile(ctx, session.UserID, displayName); err != nil {
		return nil, err
	}
	s.invalidateUserLists(ctx)

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	s.search.IndexUser(search.UserRecord{ID: user.ID, DisplayName: user.DisplayName, Email: user.Email})
	return userPayload(user), nil
}

// ChangePassword verifies the current password and replaces it.
func (s *Service) ChangePassword(ctx context.Context, session Session, currentPassword, newPassword string) error {
	if err := s.authpw.ChangePassword(ctx, session.UserID, currentPassword, newPassword); err != nil {
		return domainError(http.StatusBadRequest, "PASSWORD_CHANGE_FAILED", err.Error(), nil)
	}
	return nil
}

// SearchDirectory runs the admin user/group search.
func (s *Service) SearchDirectory(ctx context.Context, query string, filterType string, limit int) search.Response {
	return s.search.Search(ctx, search.Query{
		Text:       strings.TrimSpace(query),
		FilterType: search.ResultType(filterType),
		Limit:      limit,
	})
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":              user.ID,
		"displayName":     user.DisplayName,
		"email":           user.Email,
		"role":            user.Role,
		"isSuperuser":     user.IsSuperuser,
		"isEmailVerified": user.IsEmailVerified,
		"deactivatedAt":   user.DeactivatedAt,
		"createdAt":       user.CreatedAt,
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
