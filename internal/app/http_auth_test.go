package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atrium/api/internal/auth"
	"atrium/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthSignUpReturnsDevVerificationToken(t *testing.T) {
	var created *store.User
	fs := &fakeStore{
		createUserFn: func(_ context.Context, user store.User) error {
			created = &user
			return nil
		},
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		bytes.NewBufferString(`{"email":"Avery@Example.com","password":"hunter2hunter2","displayName":"Avery"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if token, _ := payload["devVerificationToken"].(string); token == "" {
		t.Fatal("expected devVerificationToken when SMTP is not configured")
	}
	if created == nil {
		t.Fatal("expected user to be created")
	}
	if created.Email != "avery@example.com" {
		t.Fatalf("expected lowercased email, got %q", created.Email)
	}
	if created.IsEmailVerified {
		t.Fatal("expected new account to be unverified")
	}
}

func TestAuthSignInUnverifiedReturnsForbidden(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{
				ID:           "usr_a",
				Email:        "avery@example.com",
				PasswordHash: string(hash),
				Role:         "member",
			}, nil
		},
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"avery@example.com","password":"hunter2hunter2"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("expected code EMAIL_NOT_VERIFIED, got %v", payload["code"])
	}
}

func TestAuthSignInDeactivatedReturnsForbidden(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	now := time.Now()
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{
				ID:              "usr_a",
				Email:           "avery@example.com",
				PasswordHash:    string(hash),
				Role:            "member",
				IsEmailVerified: true,
				DeactivatedAt:   &now,
			}, nil
		},
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"avery@example.com","password":"hunter2hunter2"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "ACCOUNT_DEACTIVATED" {
		t.Fatalf("expected code ACCOUNT_DEACTIVATED, got %v", payload["code"])
	}
}

func TestAuthSignInWrongPasswordReturnsUnauthorized(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{
				ID:              "usr_a",
				PasswordHash:    string(hash),
				IsEmailVerified: true,
				Role:            "member",
			}, nil
		},
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"avery@example.com","password":"wrong"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAuthSignInSuccessReturnsTokenPair(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	user := store.User{
		ID:              "usr_a",
		DisplayName:     "Avery",
		Email:           "avery@example.com",
		PasswordHash:    string(hash),
		Role:            "member",
		IsEmailVerified: true,
	}
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) { return user, nil },
		getUserByIDFn:    func(context.Context, string) (store.User, error) { return user, nil },
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"avery@example.com","password":"hunter2hunter2"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	accessToken, _ := payload["accessToken"].(string)
	refreshToken, _ := payload["refreshToken"].(string)
	if accessToken == "" || refreshToken == "" {
		t.Fatalf("expected token pair, got %v", payload)
	}
	claims, err := auth.ParseToken([]byte("test-secret"), accessToken)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Sub != "usr_a" {
		t.Fatalf("expected sub usr_a, got %q", claims.Sub)
	}
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(t, &fakeStore{}), "*")
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProtectedRouteWithExpiredBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(t, &fakeStore{}), "*")

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "usr_a",
		Name: "Avery",
		Role: "member",
		JTI:  "jti-expired",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSessionEndpointReportsUnauthenticatedOnBadToken(t *testing.T) {
	server := NewHTTPServer(newTestService(t, &fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", payload["authenticated"])
	}
}

func TestRefreshEndpointRejectsUnknownToken(t *testing.T) {
	server := NewHTTPServer(newTestService(t, &fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/session/refresh",
		bytes.NewBufferString(`{"refreshToken":"rft_bogus"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestResetPasswordRequestHidesAccountExistence(t *testing.T) {
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{}, sql.ErrNoRows
		},
	}
	server := NewHTTPServer(newTestService(t, fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/reset-password/request",
		bytes.NewBufferString(`{"email":"nobody@example.com"}`))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for unknown email, got %d", rr.Code)
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if _, ok := payload["devResetToken"]; ok {
		t.Fatal("expected no reset token for an unknown account")
	}
}
