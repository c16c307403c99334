package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"todo_service/internal/auth"
	"todo_service/internal/middleware/metrics"
	"todo_service/internal/models"
	"todo_service/internal/todos"
	"todo_service/internal/users"

	"github.com/stretchr/testify/assert"
)

const (
	userUUID = "1c6f0d7e-2b3a-4c5d-8e9f-0a1b2c3d4e5f"
	rootUUID = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"
)

type stubAuth struct{}

func (stubAuth) Signup(context.Context, string, string, string) (models.User, models.TokenPair, error) {
	return models.User{UUID: userUUID}, models.TokenPair{AccessToken: "user", RefreshToken: "r"}, nil
}

func (stubAuth) Login(context.Context, string, string) (models.TokenPair, error) {
	return models.TokenPair{}, auth.ErrInvalidCredentials
}

func (stubAuth) Refresh(context.Context, string) (models.TokenPair, error) {
	return models.TokenPair{}, auth.ErrUnauthorized
}

func (stubAuth) Logout(context.Context, string) error {
	return nil
}

func (stubAuth) VerifyToken(_ context.Context, token string) (string, error) {
	if token == "user" {
		return userUUID, nil
	}
	return "", auth.ErrUnauthorized
}

func (stubAuth) ChangePassword(context.Context, models.User, string, string) error {
	return nil
}

func (stubAuth) Authenticate(_ context.Context, token string) (models.User, error) {
	switch token {
	case "user":
		return models.User{UUID: userUUID, IsActive: true}, nil
	case "root":
		return models.User{UUID: rootUUID, IsActive: true, IsSuperuser: true}, nil
	default:
		return models.User{}, auth.ErrUnauthorized
	}
}

type stubDB struct{}

func (stubDB) Ping(context.Context) error { return nil }

func newTestRouter() http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	usersSvc := users.New(log, nil, nil)
	todosSvc := todos.New(log, nil)

	return New(log, Deps{
		Auth:    stubAuth{},
		Users:   usersSvc,
		Todos:   todosSvc,
		DB:      stubDB{},
		Metrics: metrics.New(),
	})
}

func TestRoutes(t *testing.T) {
	h := newTestRouter()

	tests := []struct {
		name       string
		method     string
		target     string
		token      string
		body       string
		wantStatus int
	}{
		{name: "Health", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "Metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK},
		{name: "Signup is public", method: http.MethodPost, target: "/api/v1/users/signup",
			body: `{"username":"alice","email":"alice@example.com","password":"password123"}`, wantStatus: http.StatusCreated},
		{name: "JSON login with bad credentials", method: http.MethodPost, target: "/api/v1/auth/auth_token",
			body: `{"email":"alice@example.com","password":"wrong"}`, wantStatus: http.StatusUnauthorized},
		{name: "Verify token", method: http.MethodPost, target: "/api/v1/auth/verify_token", token: "user", wantStatus: http.StatusOK},
		{name: "Me requires token", method: http.MethodGet, target: "/api/v1/auth/me", wantStatus: http.StatusUnauthorized},
		{name: "Me", method: http.MethodGet, target: "/api/v1/auth/me", token: "user", wantStatus: http.StatusOK},
		{name: "Todos require token", method: http.MethodGet, target: "/api/v1/todos", wantStatus: http.StatusUnauthorized},
		{name: "All users for regular user", method: http.MethodGet, target: "/api/v1/users/all_user", token: "user", wantStatus: http.StatusForbidden},
		{name: "Upload for regular user", method: http.MethodPost, target: "/api/v1/user/upload_users", token: "user", wantStatus: http.StatusForbidden},
		{name: "Other user's profile", method: http.MethodGet, target: "/api/v1/user/" + rootUUID, token: "user", wantStatus: http.StatusForbidden},
		{name: "Other user's todos", method: http.MethodGet, target: "/api/v1/todos/" + rootUUID, token: "user", wantStatus: http.StatusForbidden},
		{name: "Malformed user id", method: http.MethodGet, target: "/api/v1/user/not-a-uuid", token: "user", wantStatus: http.StatusNotFound},
		{name: "Malformed todo id", method: http.MethodGet, target: "/api/v1/todo/not-a-uuid", token: "user", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}

			req := httptest.NewRequest(tt.method, tt.target, body)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(log, Deps{
		Auth:        stubAuth{},
		Users:       users.New(log, nil, nil),
		Todos:       todos.New(log, nil),
		DB:          stubDB{},
		CORSOrigins: []string{"http://localhost:3000"},
	})

	t.Run("Allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/todos", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("Foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Disabled without origins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()

		newTestRouter().ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
