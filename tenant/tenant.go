// Package tenant resolves the active company of a request and guards
// company scoped handlers by membership role.
package tenant

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
)

// CookieName holds the id of the company picked with the switcher.
const CookieName = "stockly_company"

// NoCompanyPath is the empty state page for users without a company.
const NoCompanyPath = "/no-company"

// Tenant is the company a request acts on and the caller's role in it.
// Company is nil when the user belongs to no active company.
type Tenant struct {
	Company     *model.Company
	Role        string
	Memberships []model.Membership
}

// CompanyID returns the active company id, or "".
func (t *Tenant) CompanyID() string {
	if t == nil || t.Company == nil {
		return ""
	}
	return t.Company.ID
}

// Can reports whether the caller holds at least role min.
func (t *Tenant) Can(min string) bool {
	return t != nil && t.Company != nil && model.RoleAtLeast(t.Role, min)
}

type contextKey struct{}

// WithTenant returns a copy of ctx carrying t.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// From returns the tenant resolved for ctx, or nil.
func From(ctx context.Context) *Tenant {
	t, _ := ctx.Value(contextKey{}).(*Tenant)
	return t
}

// Scope returns the data table scope of the active company. It is empty, and
// so rejected by scoped tables, when no company is active.
func Scope(ctx context.Context) datatable.Scope {
	return datatable.Scope{CompanyID: From(ctx).CompanyID()}
}

// Resolver picks the active company from the switcher cookie or the user's
// first membership.
type Resolver struct {
	DB           *sqlx.DB
	SecureCookie bool
}

// Resolve loads the tenant for the signed in user. It must run after
// auth.RequireUser.
func (res *Resolver) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFrom(r.Context())
		if u == nil {
			respond.Error(w, r, apperr.New(apperr.EUnauthorized, "not signed in"))
			return
		}
		var wanted string
		if c, err := r.Cookie(CookieName); err == nil {
			wanted = c.Value
		}
		t, err := res.resolve(r.Context(), u, wanted)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
	})
}

func (res *Resolver) resolve(ctx context.Context, u *model.User, wanted string) (*Tenant, error) {
	ms, err := database.ListUserMemberships(ctx, res.DB, u.ID)
	if err != nil {
		return nil, err
	}
	t := &Tenant{Memberships: ms}

	if wanted != "" {
		if c, role, err := res.access(ctx, u, ms, wanted); err == nil {
			t.Company, t.Role = c, role
			return t, nil
		} else if code := apperr.ErrorCode(err); code != apperr.ENotFound && code != apperr.EForbidden {
			return nil, err
		}
	}

	if len(ms) > 0 {
		c, err := database.GetCompany(ctx, res.DB, ms[0].CompanyID)
		if err != nil {
			return nil, err
		}
		t.Company, t.Role = c, ms[0].Role
		if u.IsSuperadmin() {
			t.Role = model.MemberOwner
		}
		return t, nil
	}

	if u.IsSuperadmin() {
		companies, err := database.ListCompanies(ctx, res.DB)
		if err != nil {
			return nil, err
		}
		for i := range companies {
			if companies[i].Status == model.CompanyActive {
				t.Company, t.Role = &companies[i], model.MemberOwner
				break
			}
		}
	}
	return t, nil
}

// access checks that u may act on companyID and returns the role to act
// with. Superadmins act as owners of every company.
func (res *Resolver) access(ctx context.Context, u *model.User, ms []model.Membership, companyID string) (*model.Company, string, error) {
	if u.IsSuperadmin() {
		c, err := database.GetCompany(ctx, res.DB, companyID)
		if err != nil {
			return nil, "", err
		}
		return c, model.MemberOwner, nil
	}
	for _, m := range ms {
		if m.CompanyID == companyID {
			c, err := database.GetCompany(ctx, res.DB, companyID)
			if err != nil {
				return nil, "", err
			}
			return c, m.Role, nil
		}
	}
	return nil, "", apperr.New(apperr.EForbidden, "you are not a member of this company")
}

// RequireCompany rejects requests without an active company. Pages are sent
// to the empty state page.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if From(r.Context()).CompanyID() == "" {
			if auth.WantsJSON(r) {
				respond.Error(w, r, apperr.New(apperr.EForbidden, "no company selected"))
				return
			}
			http.Redirect(w, r, NoCompanyPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole only lets members holding at least role min through. The
// hierarchy is VIEWER < STAFF < ADMIN < OWNER.
func RequireRole(min string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireCompany(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !From(r.Context()).Can(min) {
				respond.Error(w, r, apperr.Newf(apperr.EForbidden, "this action requires the %s role", strings.ToLower(min)))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

type switchRequest struct {
	CompanyID string `json:"companyId"`
}

// SwitchHandler makes another company the active one.
func (res *Resolver) SwitchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFrom(r.Context())
		var req switchRequest
		if auth.WantsJSON(r) {
			if err := respond.Decode(w, r, &req); err != nil {
				respond.Error(w, r, err)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				respond.Error(w, r, apperr.Wrap(err, apperr.EInvalid, "invalid form"))
				return
			}
			req.CompanyID = r.PostForm.Get("company_id")
		}
		if req.CompanyID == "" {
			respond.Error(w, r, apperr.Invalid("company is required", map[string]string{"companyId": "required"}))
			return
		}

		var ms []model.Membership
		if t := From(r.Context()); t != nil {
			ms = t.Memberships
		}
		c, role, err := res.access(r.Context(), u, ms, req.CompanyID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if c.Status != model.CompanyActive && !u.IsSuperadmin() {
			respond.Error(w, r, apperr.New(apperr.EForbidden, "this company is inactive"))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    c.ID,
			Path:     "/",
			Expires:  time.Now().Add(365 * 24 * time.Hour),
			HttpOnly: true,
			Secure:   res.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		if auth.WantsJSON(r) {
			respond.OK(w, map[string]string{"companyId": c.ID, "role": role})
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
