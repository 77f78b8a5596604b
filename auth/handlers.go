package auth

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/respond"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// LoginHandler accepts JSON or form credentials. Form posts are redirected:
// to next on success, back to the login page with an error code otherwise.
func (a *Authenticator) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonReq := WantsJSON(r)
		fail := func(err error) {
			if jsonReq {
				respond.Error(w, r, err)
				return
			}
			http.Redirect(w, r, "/login?error="+url.QueryEscape(loginErrorKey(err)), http.StatusSeeOther)
		}

		ip := ClientIP(r)
		if a.Limiter != nil && !a.Limiter.Allow(ip) {
			zap.L().Warn("login rate limited", zap.String("ip", ip))
			fail(apperr.New(apperr.ETooManyRequests, "too many login attempts, try again in a minute"))
			return
		}

		var req loginRequest
		if jsonReq {
			if err := respond.Decode(w, r, &req); err != nil {
				fail(err)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				fail(apperr.Wrap(err, apperr.EInvalid, "invalid form"))
				return
			}
			req.Email = r.PostForm.Get("email")
			req.Password = r.PostForm.Get("password")
			req.Next = r.PostForm.Get("next")
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			fail(apperr.Invalid("email and password are required", map[string]string{
				"email":    "required",
				"password": "required",
			}))
			return
		}

		token, sess, u, err := a.Sessions.Login(r.Context(), req.Email, req.Password, ip, r.UserAgent())
		if err != nil {
			if code := apperr.ErrorCode(err); code == apperr.EUnauthorized || code == apperr.EForbidden {
				zap.L().Info("login failed", zap.String("ip", ip), zap.String("reason", apperr.ErrorMessage(err)))
			}
			fail(err)
			return
		}
		a.setCookie(w, token, sess.ExpiresAt)
		zap.L().Info("user logged in", zap.String("user", u.ID), zap.String("ip", ip))

		if jsonReq {
			respond.OK(w, u)
			return
		}
		http.Redirect(w, r, safeNext(req.Next), http.StatusSeeOther)
	}
}

// LogoutHandler ends the current session.
func (a *Authenticator) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(a.CookieName); err == nil {
			if err := a.Sessions.Logout(r.Context(), c.Value); err != nil {
				respond.Error(w, r, err)
				return
			}
		}
		a.clearCookie(w)
		if WantsJSON(r) {
			respond.OK(w, nil)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

func loginErrorKey(err error) string {
	switch apperr.ErrorCode(err) {
	case apperr.ETooManyRequests:
		return "rate"
	case apperr.EForbidden:
		return "disabled"
	case apperr.EInvalid:
		return "missing"
	case apperr.EUnauthorized:
		return "credentials"
	}
	return "internal"
}

// safeNext only allows local absolute paths as redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
