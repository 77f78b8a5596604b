// Package web serves the server-rendered dashboard pages. Mutations go
// through the JSON API; pages only read.
package web

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/dashboard"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/render"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

var loginErrors = map[string]string{
	"rate":        "Too many sign in attempts. Wait a minute and try again.",
	"disabled":    "This account has been disabled.",
	"missing":     "Enter your email and password.",
	"credentials": "Your email or password is incorrect.",
	"internal":    "Something went wrong. Please try again.",
}

type Pages struct {
	DB           *sqlx.DB
	Render       *render.Renderer
	Tables       datatable.Options
	Clock        clock.Clock
	SecureCookie bool
}

type loginData struct {
	Next string
}

// view fills the parts of a View every signed in page shares.
func (p *Pages) view(r *http.Request, title, nav string) *render.View {
	v := &render.View{
		Title:  title,
		Nav:    nav,
		User:   auth.UserFrom(r.Context()),
		Tenant: tenant.From(r.Context()),
		Theme:  Theme(r),
	}
	if v.Tenant == nil {
		v.Tenant = &tenant.Tenant{}
	}
	if v.User.IsSuperadmin() {
		companies, err := database.ListCompanies(r.Context(), p.DB)
		if err != nil {
			zap.L().Warn("listing companies for switcher", zap.Error(err))
		}
		for _, c := range companies {
			if c.Status == model.CompanyActive || c.ID == v.Tenant.CompanyID() {
				v.Companies = append(v.Companies, c)
			}
		}
	}
	return v
}

// Theme returns the theme chosen with the toggle.
func Theme(r *http.Request) string {
	if c, err := r.Cookie(render.ThemeCookie); err == nil && c.Value == render.ThemeDark {
		return render.ThemeDark
	}
	return render.ThemeLight
}

func (p *Pages) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := &render.View{Title: "Sign in", Theme: Theme(r), Data: loginData{Next: r.URL.Query().Get("next")}}
		status := http.StatusOK
		if key := r.URL.Query().Get("error"); key != "" {
			msg, ok := loginErrors[key]
			if !ok {
				msg = loginErrors["internal"]
			}
			v.Error = msg
			status = http.StatusUnauthorized
		}
		p.Render.HTML(w, status, "login", v)
	}
}

func (p *Pages) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			p.NotFound(w, r)
			return
		}
		v := p.view(r, "Dashboard", "dashboard")
		s, err := dashboard.Load(r.Context(), p.DB, v.Tenant.CompanyID(), p.Clock.Now())
		if err != nil {
			p.fail(w, r, err)
			return
		}
		v.Data = s
		p.Render.HTML(w, http.StatusOK, "dashboard", v)
	}
}

func (p *Pages) NoCompany() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := p.view(r, "No company", "")
		if v.Tenant.CompanyID() != "" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		p.Render.HTML(w, http.StatusOK, "no_company", v)
	}
}

func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	v := p.view(r, "Page not found", "")
	p.Render.HTML(w, http.StatusNotFound, "error", v)
}

func (p *Pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("rendering page failed", zap.String("path", r.URL.Path), zap.Error(err))
	v := p.view(r, "Something went wrong", "")
	p.Render.HTML(w, http.StatusInternalServerError, "error", v)
}

// ThemeHandler flips the theme cookie and returns to the referring page.
func (p *Pages) ThemeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := render.ThemeDark
		if Theme(r) == render.ThemeDark {
			next = render.ThemeLight
		}
		http.SetCookie(w, &http.Cookie{
			Name:     render.ThemeCookie,
			Value:    next,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			Secure:   p.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, backTo(r), http.StatusSeeOther)
	}
}

// backTo returns the local path of the Referer, or "/".
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

// queryProblem turns a table validation error into one line for the page.
func queryProblem(err error) (string, bool) {
	var verr *datatable.ValidationError
	if !errors.As(err, &verr) {
		return "", false
	}
	keys := make([]string, 0, len(verr.Fields))
	for k := range verr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + verr.Fields[k]
	}
	return "Some table settings were ignored (" + strings.Join(parts, "; ") + ").", true
}
