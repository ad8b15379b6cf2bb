package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"atrium/api/internal/auth"
	"atrium/api/internal/store"
)

// newMultipartBody writes a single-file multipart form into buf and
// returns the Content-Type header value for the request.
func newMultipartBody(t *testing.T, buf *bytes.Buffer, filename, contentType string, data []byte) string {
	t.Helper()
	writer := multipart.NewWriter(buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return writer.FormDataContentType()
}

func signedBearer(t *testing.T, userID, role string, superuser bool) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:       userID,
		Name:      "User",
		Role:      role,
		Superuser: superuser,
		JTI:       "jti-" + userID,
		Exp:       time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + token
}

// userStore returns a fake whose GetUserByID reflects the given role, so
// requireSession sees the same role the token claims.
func userStore(role string, superuser bool) *fakeStore {
	return &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "User", Role: role, IsSuperuser: superuser}, nil
		},
	}
}

func TestAdminUsersForbiddenForMember(t *testing.T) {
	server := NewHTTPServer(newTestService(t, userStore("member", false)), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "member", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminUsersListsForAdmin(t *testing.T) {
	fs := userStore("admin", false)
	fs.listUsersFn = func(context.Context, string, int, int) ([]store.User, int, error) {
		return []store.User{
			{ID: "usr_a", DisplayName: "Avery", Email: "avery@example.com", Role: "admin"},
			{ID: "usr_b", DisplayName: "Blake", Email: "blake@example.com", Role: "member"},
		}, 2, nil
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users?limit=10", nil)
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "admin", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload UserList
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Total != 2 || len(payload.Users) != 2 {
		t.Fatalf("expected 2 users, got total=%d len=%d", payload.Total, len(payload.Users))
	}
}

func TestGrantPermissionEndpoint(t *testing.T) {
	fs := userStore("admin", true)
	var granted *store.Permission
	fs.upsertPermissionFn = func(_ context.Context, p store.Permission) error {
		granted = &p
		return nil
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	body := `{"subjectType":"user","subjectId":"usr_b","resourceType":"account","resourceId":"usr_owner","role":"editor"}`
	req := httptest.NewRequest(http.MethodPost, "/api/permissions", bytes.NewBufferString(body))
	req.Header.Set("Authorization", signedBearer(t, "usr_root", "admin", true))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if granted == nil {
		t.Fatal("expected a grant to be stored")
	}
	if granted.Role != "editor" || granted.GrantedBy != "usr_root" {
		t.Fatalf("unexpected grant %+v", granted)
	}
}

func TestGrantPermissionRejectsUnknownRole(t *testing.T) {
	server := NewHTTPServer(newTestService(t, userStore("admin", true)), "*")

	body := `{"subjectType":"user","subjectId":"usr_b","resourceType":"account","resourceId":"usr_owner","role":"owner"}`
	req := httptest.NewRequest(http.MethodPost, "/api/permissions", bytes.NewBufferString(body))
	req.Header.Set("Authorization", signedBearer(t, "usr_root", "admin", true))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestEffectiveRoleEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(t, userStore("member", false)), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/permissions/effective?resourceType=account&resourceId=usr_a", nil)
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "member", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["role"] != "admin" {
		t.Fatalf("expected own account role admin, got %v", payload["role"])
	}
}

func TestMediaUploadDisabledWithoutObjectStore(t *testing.T) {
	server := NewHTTPServer(newTestService(t, userStore("member", false)), "*")

	var buf bytes.Buffer
	mw := newMultipartBody(t, &buf, "note.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/media", &buf)
	req.Header.Set("Content-Type", mw)
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "member", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 with no object store, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateShareEndpoint(t *testing.T) {
	fs := userStore("member", false)
	fs.getUserByEmailFn = func(_ context.Context, email string) (store.User, error) {
		return store.User{ID: "usr_grantee", Email: email, DisplayName: "Blake", Role: "member"}, nil
	}
	var saved *store.AccountShare
	fs.upsertAccountShareFn = func(_ context.Context, share store.AccountShare) error {
		saved = &share
		return nil
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	body := `{"granteeEmail":"blake@example.com","role":"viewer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/shares", bytes.NewBufferString(body))
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "member", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if saved == nil {
		t.Fatal("expected share to be stored")
	}
	if saved.OwnerID != "usr_a" || saved.GranteeID != "usr_grantee" || saved.Role != "viewer" {
		t.Fatalf("unexpected share %+v", saved)
	}
}

func TestCreateShareRejectsSelf(t *testing.T) {
	fs := userStore("member", false)
	fs.getUserByEmailFn = func(_ context.Context, email string) (store.User, error) {
		return store.User{ID: "usr_a", Email: email, Role: "member"}, nil
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	body := `{"granteeEmail":"me@example.com","role":"viewer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/shares", bytes.NewBufferString(body))
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "member", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for self-share, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSuperuserToggleRequiresSuperuser(t *testing.T) {
	server := NewHTTPServer(newTestService(t, userStore("admin", false)), "*")

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/usr_b/superuser",
		bytes.NewBufferString(`{"superuser":true}`))
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "admin", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for non-superuser admin, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdminCreateUserEndpoint(t *testing.T) {
	fs := userStore("admin", false)
	var created store.User
	fs.createUserFn = func(_ context.Context, user store.User) error {
		created = user
		return nil
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	body := bytes.NewBufferString(`{"name":"New User","email":"new@example.com","password":"password123","role":"member"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users", body)
	req.Header.Set("Authorization", signedBearer(t, "usr_admin", "admin", false))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if created.Email != "new@example.com" || !created.IsEmailVerified {
		t.Fatalf("unexpected created user %+v", created)
	}
	var summary UserSummary
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.ID != created.ID {
		t.Fatalf("expected response for %s, got %s", created.ID, summary.ID)
	}
}

func TestMeGroupsListsMembership(t *testing.T) {
	fs := userStore("member", false)
	fs.listUserGroupIDsFn = func(context.Context, string) ([]string, error) {
		return []string{"grp_a"}, nil
	}
	fs.getGroupFn = func(_ context.Context, groupID string) (store.Group, error) {
		return store.Group{ID: groupID, Name: "Ops"}, nil
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/me/groups", nil)
	req.Header.Set("Authorization", signedBearer(t, "usr_a", "member", false))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Groups []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"groups"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Groups) != 1 || payload.Groups[0].ID != "grp_a" {
		t.Fatalf("unexpected groups payload %+v", payload.Groups)
	}
}
