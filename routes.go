package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/company"
	"github.com/danielzuhad/stocking-app-sub001/dashboard"
	"github.com/danielzuhad/stocking-app-sub001/inventory"
	"github.com/danielzuhad/stocking-app-sub001/member"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/product"
	"github.com/danielzuhad/stocking-app-sub001/render"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
	"github.com/danielzuhad/stocking-app-sub001/user"
)

// SetupRoutes registers the pages and the JSON API on mux.
func SetupRoutes(mux *http.ServeMux, a *App) {
	db, tables := a.DB, a.Tables

	// signedIn resolves the user and the active company.
	signedIn := func(h http.HandlerFunc) http.Handler {
		return a.Auth.RequireUser(a.Tenants.Resolve(h))
	}
	// withRole additionally requires a company role.
	withRole := func(role string, h http.HandlerFunc) http.Handler {
		return a.Auth.RequireUser(a.Tenants.Resolve(tenant.RequireRole(role)(h)))
	}
	superadmin := func(h http.HandlerFunc) http.Handler {
		return a.Auth.RequireUser(auth.RequireSuperadmin(a.Tenants.Resolve(h)))
	}

	mux.Handle("GET /static/", render.Static())
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", healthHandler(a))

	mux.HandleFunc("GET /login", a.Pages.Login())
	mux.HandleFunc("POST /login", a.Auth.LoginHandler())
	mux.HandleFunc("POST /logout", a.Auth.LogoutHandler())
	mux.HandleFunc("POST /theme", a.Pages.ThemeHandler())
	mux.Handle("POST /company/switch", a.Auth.RequireUser(a.Tenants.Resolve(a.Tenants.SwitchHandler())))

	// Pages
	mux.Handle("GET /{$}", withRole(model.MemberViewer, a.Pages.Dashboard()))
	mux.Handle("GET "+tenant.NoCompanyPath, signedIn(a.Pages.NoCompany()))
	mux.Handle("GET /products", withRole(model.MemberViewer, a.Pages.Products()))
	mux.Handle("GET /inventory", withRole(model.MemberViewer, a.Pages.Inventory()))
	mux.Handle("GET /activity", withRole(model.MemberAdmin, a.Pages.Activity()))
	mux.Handle("GET /members", withRole(model.MemberAdmin, a.Pages.Members()))
	mux.Handle("GET /companies", superadmin(a.Pages.Companies()))
	mux.Handle("GET /users", superadmin(a.Pages.Users()))
	mux.HandleFunc("/", a.Pages.NotFound)

	// Products
	mux.Handle("GET /api/products/table", withRole(model.MemberViewer, product.TableHandler(db, tables)))
	mux.Handle("GET /api/products/export", withRole(model.MemberViewer, product.ExportHandler(db, tables)))
	mux.Handle("GET /api/products/sku/{sku}", withRole(model.MemberViewer, product.LookupHandler(db)))
	mux.Handle("GET /api/products/{id}", withRole(model.MemberViewer, product.GetHandler(db)))
	mux.Handle("POST /api/products", withRole(model.MemberAdmin, product.CreateHandler(db)))
	mux.Handle("POST /api/products/import", withRole(model.MemberAdmin, product.ImportHandler(db)))
	mux.Handle("PUT /api/products/{id}", withRole(model.MemberAdmin, product.UpdateHandler(db)))
	mux.Handle("POST /api/products/{id}/archive", withRole(model.MemberAdmin, product.ArchiveHandler(db)))
	mux.Handle("DELETE /api/products/{id}", withRole(model.MemberAdmin, product.DeleteHandler(db)))

	// Inventory
	mux.Handle("GET /api/inventory/table", withRole(model.MemberViewer, inventory.TableHandler(db, tables)))
	mux.Handle("POST /api/inventory", withRole(model.MemberStaff, inventory.RecordHandler(db)))

	// Activity
	mux.Handle("GET /api/activity/table", withRole(model.MemberAdmin, activity.TableHandler(db, tables)))

	// Members
	mux.Handle("GET /api/members/table", withRole(model.MemberAdmin, member.TableHandler(db, tables)))
	mux.Handle("POST /api/members", withRole(model.MemberAdmin, member.AddHandler(db)))
	mux.Handle("PUT /api/members/{id}", withRole(model.MemberAdmin, member.UpdateHandler(db)))
	mux.Handle("DELETE /api/members/{id}", withRole(model.MemberAdmin, member.RemoveHandler(db)))

	// Companies
	mux.Handle("GET /api/companies/table", superadmin(company.TableHandler(db, tables)))
	mux.Handle("POST /api/companies", superadmin(company.CreateHandler(db)))
	mux.Handle("GET /api/companies/{id}", superadmin(company.GetHandler(db)))
	mux.Handle("PUT /api/companies/{id}", superadmin(company.UpdateHandler(db)))
	mux.Handle("DELETE /api/companies/{id}", superadmin(company.DeleteHandler(db)))

	// Users
	mux.Handle("GET /api/users/table", superadmin(user.TableHandler(db, tables)))
	mux.Handle("POST /api/users", superadmin(user.CreateHandler(db)))
	mux.Handle("GET /api/users/{id}", superadmin(user.GetHandler(db)))
	mux.Handle("PUT /api/users/{id}", superadmin(user.UpdateHandler(db)))
	mux.Handle("DELETE /api/users/{id}", superadmin(user.DeleteHandler(db)))
	mux.Handle("POST /api/users/{id}/password", superadmin(user.PasswordHandler(db)))

	mux.Handle("GET /api/imagekit/auth", withRole(model.MemberAdmin, a.Signer.AuthHandler()))
	mux.Handle("GET /api/dashboard/summary", withRole(model.MemberViewer, dashboard.SummaryHandler(db, a.Clock)))
}

func healthHandler(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.DB.PingContext(r.Context()); err != nil {
			respond.Error(w, r, apperr.Wrap(err, apperr.EUnavailable, "database is unreachable"))
			return
		}
		respond.OK(w, map[string]string{"status": "ok"})
	}
}
