package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF implements the double-submit cookie check. Safe requests get a
// csrf_token cookie when they lack one; unsafe requests must echo that
// cookie in the X-CSRF-Token header.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CSRFCookieName)
		hasCookie := err == nil && cookie.Value != ""

		if isSafeMethod(r.Method) {
			if !hasCookie {
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    uuid.NewString(),
					Path:     "/",
					SameSite: http.SameSiteStrictMode,
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(CSRFHeaderName)
		if !hasCookie || header == "" ||
			subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
			jsonError(w, http.StatusForbidden, "csrf token missing or invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
