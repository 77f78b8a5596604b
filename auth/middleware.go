// Package auth implements password login, database backed sessions and the
// middleware that puts the signed in user on the request context.
package auth

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/respond"
)

// Authenticator holds what the auth handlers and middleware share.
type Authenticator struct {
	Sessions     *SessionService
	Limiter      *LoginLimiter
	CookieName   string
	SecureCookie bool
}

// RequireUser rejects requests without a valid session. Page requests are
// redirected to the login page; API requests get 401.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(a.CookieName); err == nil {
			token = c.Value
		}

		u, sess, renewed, err := a.Sessions.Resolve(r.Context(), token)
		if err != nil {
			if apperr.ErrorCode(err) == apperr.EUnauthorized {
				if token != "" {
					a.clearCookie(w)
				}
				if WantsJSON(r) {
					respond.Error(w, r, err)
					return
				}
				redirectToLogin(w, r)
				return
			}
			respond.Error(w, r, err)
			return
		}
		if renewed {
			a.setCookie(w, token, sess.ExpiresAt)
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u, sess)))
	})
}

// RequireSuperadmin only lets platform administrators through. It must run
// after RequireUser.
func RequireSuperadmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFrom(r.Context()).IsSuperadmin() {
			respond.Error(w, r, apperr.New(apperr.EForbidden, "platform administrators only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WantsJSON reports whether r should be answered with the JSON envelope
// rather than a page or redirect.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// ClientIP returns the remote address of r without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *Authenticator) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authenticator) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
