package middleware

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/auth"
)

const (
	AuthCookieName = "auth_token"
	LoginPath      = "/login"
)

// Handoff accepts a session passed from another app as
// ?auth_token=<jwt>&redirect=<path>. A valid token is stored in the
// auth_token cookie and the browser is sent to the redirect target with the
// parameters stripped. Page requests (anything outside /api and the skip
// paths) without a token or cookie are sent to the login page.
func Handoff(authService *auth.Service, logger log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if token := q.Get("auth_token"); token != "" {
				if _, err := authService.ValidateToken(token); err != nil {
					logger.WithError(err).Warn("Rejected hand-off token")
					http.Redirect(w, r, LoginPath, http.StatusFound)
					return
				}

				http.SetCookie(w, &http.Cookie{
					Name:     AuthCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})

				target := q.Get("redirect")
				if !auth.IsLocalRedirect(target) {
					q.Del("auth_token")
					q.Del("redirect")
					u := *r.URL
					u.RawQuery = q.Encode()
					target = u.RequestURI()
				}
				http.Redirect(w, r, target, http.StatusFound)
				return
			}

			if isPageRequest(r.URL.Path) {
				if c, err := r.Cookie(AuthCookieName); err != nil || c.Value == "" {
					http.Redirect(w, r, LoginPath, http.StatusFound)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPageRequest(path string) bool {
	return !strings.HasPrefix(path, "/api/") && !isPublicPath(path)
}
