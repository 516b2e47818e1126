package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleetmasterpro/internal/auth"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService("middleware-test-secret", 0)
	require.NoError(t, err)
	return svc
}

func newAuthenticator(t *testing.T) (*Authenticator, *auth.Service) {
	t.Helper()
	svc := newAuthService(t)
	logger, _ := test.NewNullLogger()
	return NewAuthenticator(svc, logger), svc
}

func tokenFor(t *testing.T, svc *auth.Service, role models.Role) string {
	t.Helper()
	token, err := svc.GenerateToken(&models.User{ID: uuid.NewString(), Username: string(role), Role: role})
	require.NoError(t, err)
	return token
}

// recordClaims returns a handler that captures the request's claims.
func recordClaims(got **models.Claims, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*got, _ = GetUserFromContext(r.Context())
	})
}

func TestAuthenticator_Authenticate(t *testing.T) {
	a, svc := newAuthenticator(t)
	viewer := tokenFor(t, svc, models.RoleViewer)

	tests := []struct {
		name       string
		path       string
		prepare    func(r *http.Request)
		wantCalled bool
		wantUser   string
	}{
		{"bearer token", "/api/cars", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+viewer) }, true, "viewer"},
		{"lowercase scheme", "/api/cars", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+viewer) }, true, "viewer"},
		{"hand-off cookie", "/api/cars", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: viewer}) }, true, "viewer"},
		{"missing token", "/api/cars", func(r *http.Request) {}, false, ""},
		{"invalid token", "/api/cars", func(r *http.Request) { r.Header.Set("Authorization", "Bearer invalid-token") }, false, ""},
		{"basic scheme", "/api/cars", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+viewer) }, false, ""},
		{"public login", "/api/auth/login", func(r *http.Request) {}, true, ""},
		{"public health", "/health", func(r *http.Request) {}, true, ""},
		{"lookalike path is not public", "/api/auth/login-as-admin", func(r *http.Request) {}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			var claims *models.Claims
			called := false
			a.Authenticate(recordClaims(&claims, &called)).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCalled, called)
			if !tt.wantCalled {
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.Contains(t, w.Body.String(), `"error"`)
				return
			}
			if tt.wantUser != "" {
				require.NotNil(t, claims)
				assert.Equal(t, tt.wantUser, claims.Username)
			}
		})
	}
}

func TestAuthenticator_RequirePermission(t *testing.T) {
	a, svc := newAuthenticator(t)

	tests := []struct {
		role       models.Role
		permission models.Permission
		wantStatus int
	}{
		{models.RoleAdmin, models.PermManageUsers, http.StatusOK},
		{models.RoleManager, models.PermManageShops, http.StatusOK},
		{models.RoleOperator, models.PermManageShops, http.StatusForbidden},
		{models.RoleViewer, models.PermViewCars, http.StatusOK},
		{models.RoleViewer, models.PermReportAlerts, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.permission), func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/cars", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, tt.role))
			w := httptest.NewRecorder()

			ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			a.Authenticate(a.RequirePermission(tt.permission)(ok)).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("without Authenticate", func(t *testing.T) {
		w := httptest.NewRecorder()
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		a.RequirePermission(models.PermViewCars)(ok).ServeHTTP(w, httptest.NewRequest("GET", "/api/cars", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/cars", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("192.168.1.1:12345").Code)
	assert.Equal(t, http.StatusOK, hit("192.168.1.1:23456").Code)

	w := hit("192.168.1.1:34567")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, hit("192.168.1.2:12345").Code, "other clients keep their own budget")

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, hit("192.168.1.1:12345").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestGetUserFromContext(t *testing.T) {
	claims := &models.Claims{UserID: "test-id", Username: "testuser", Role: models.RoleAdmin}

	got, ok := GetUserFromContext(WithUser(context.Background(), claims))
	assert.True(t, ok)
	assert.Same(t, claims, got)

	_, ok = GetUserFromContext(context.Background())
	assert.False(t, ok)
}
