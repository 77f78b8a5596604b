package user

import (
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

// Table lists every user account.
var Table = (&datatable.Table{
	Name: "users",
	From: "users u",
	Select: []string{
		"u.id", "u.email", "u.name", "u.password_hash", "u.system_role", "u.status",
		"u.last_login_at", "u.created_at", "u.updated_at",
	},
	Key: "u.id",
	Columns: []datatable.Column{
		{ID: "email", Expr: "u.email", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "name", Expr: "u.name", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "systemRole", Expr: "u.system_role", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{model.RoleSuperadmin, model.RoleUser}},
		{ID: "status", Expr: "u.status", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{model.UserActive, model.UserDisabled}},
		{ID: "lastLoginAt", Expr: "u.last_login_at", Type: datatable.Date, Sortable: true, Filterable: true},
		{ID: "createdAt", Expr: "u.created_at", Type: datatable.Date, Sortable: true, Filterable: true},
	},
	DefaultSort:  "name",
	DefaultOrder: datatable.Asc,
}).MustValidate()
