package activity

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

// Table lists activity logs. Platform administrators may list every company
// with Scope.All.
var Table = (&datatable.Table{
	Name: "activity",
	From: `activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		LEFT JOIN companies c ON c.id = a.company_id`,
	Select: []string{
		"a.id", "a.company_id", "a.user_id", "a.action", "a.entity_type", "a.entity_id",
		"a.description", "a.metadata", "a.ip", "a.user_agent", "a.browser", "a.os", "a.created_at",
		"COALESCE(u.name, '') AS user_name", "COALESCE(c.name, '') AS company_name",
	},
	Key: "a.id",
	Columns: []datatable.Column{
		{ID: "createdAt", Expr: "a.created_at", Type: datatable.Date, Sortable: true, Filterable: true},
		{ID: "action", Expr: "a.action", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "entityType", Expr: "a.entity_type", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{"company", "inventory", "membership", "product", "user"}},
		{ID: "description", Expr: "a.description", Type: datatable.Text, Searchable: true},
		{ID: "user", Expr: "u.name", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "company", Expr: "c.name", Type: datatable.Text, Sortable: true, Filterable: true},
		{ID: "browser", Expr: "a.browser", Type: datatable.Text, Filterable: true},
	},
	DefaultSort:  "createdAt",
	DefaultOrder: datatable.Desc,
	ScopeColumn:  "a.company_id",
}).MustValidate()

// TableHandler lists the activity of the active company. Superadmins can pass
// scope=all for the platform wide log.
func TableHandler(db *sqlx.DB, opts datatable.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		scope := tenant.Scope(r.Context())
		if params.Get("scope") == "all" && auth.UserFrom(r.Context()).IsSuperadmin() {
			scope = datatable.Scope{All: true}
		}
		params.Del("scope")

		page, err := datatable.Run[model.ActivityLog](r.Context(), db, Table, params, scope, opts)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.OK(w, page)
	}
}
