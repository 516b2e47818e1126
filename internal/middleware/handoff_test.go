package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleetmasterpro/internal/models"
)

func TestHandoff(t *testing.T) {
	authService := newAuthService(t)
	logger, hook := test.NewNullLogger()
	token, err := authService.GenerateToken(&models.User{ID: "u-1", Username: "driver", Role: models.RoleOperator})
	require.NoError(t, err)

	called := false
	handler := Handoff(authService, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("valid token sets cookie and redirects", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/?auth_token="+token+"&redirect=%2Fcars%2F42", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/cars/42", w.Header().Get("Location"))
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, AuthCookieName, cookies[0].Name)
		assert.Equal(t, token, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("foreign redirect falls back to stripped url", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/cars?tab=plans&auth_token="+token+"&redirect=https://evil.example.com", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/cars?tab=plans", w.Header().Get("Location"))
	})

	t.Run("invalid token goes to login", func(t *testing.T) {
		hook.Reset()
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/?auth_token=garbage", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, LoginPath, w.Header().Get("Location"))
		assert.Empty(t, w.Result().Cookies())
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "Rejected hand-off token", hook.LastEntry().Message)
	})

	t.Run("page without session goes to login", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/cars/42", nil))

		assert.False(t, called)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, LoginPath, w.Header().Get("Location"))
	})

	t.Run("page with cookie passes", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("GET", "/cars/42", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.True(t, called)
	})

	t.Run("api and login paths pass through", func(t *testing.T) {
		for _, path := range []string{"/api/cars", LoginPath, "/health"} {
			called = false
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
			assert.True(t, called, path)
		}
	})
}
