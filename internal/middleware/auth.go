package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/auth"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

type claimsKey struct{}

// publicPaths are served without a token.
var publicPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/health",
	LoginPath,
}

// Authenticator resolves the caller from a bearer token, or from the
// hand-off cookie for browser sessions.
type Authenticator struct {
	tokens *auth.Service
	logger log.FieldLogger
}

// NewAuthenticator creates the middleware. Rejected tokens are logged at
// debug level, denied permissions at info.
func NewAuthenticator(tokens *auth.Service, logger log.FieldLogger) *Authenticator {
	return &Authenticator{tokens: tokens, logger: logger}
}

// Authenticate rejects requests without a valid token and stores the
// claims in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw := requestToken(r)
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		claims, err := a.tokens.ValidateToken(raw)
		if err != nil {
			a.logger.WithError(err).WithField("path", r.URL.Path).Debug("Rejected token")
			jsonError(w, http.StatusUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
	})
}

// RequirePermission lets the request through only when the caller's role
// grants p. It must run after Authenticate.
func (a *Authenticator) RequirePermission(p models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				jsonError(w, http.StatusUnauthorized, "authorization required")
				return
			}
			if !claims.Can(p) {
				a.logger.WithFields(log.Fields{
					"username":   claims.Username,
					"role":       claims.Role,
					"permission": p,
				}).Info("Permission denied")
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a context carrying claims.
func WithUser(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetUserFromContext returns the claims stored by Authenticate.
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*models.Claims)
	return claims, ok && claims != nil
}

// requestToken prefers the Authorization header. Only the Bearer scheme is
// accepted there.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
