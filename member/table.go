package member

import (
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

// Table lists the members of the active company.
var Table = (&datatable.Table{
	Name: "members",
	From: `memberships m
		JOIN users u ON u.id = m.user_id
		JOIN companies c ON c.id = m.company_id`,
	Select: []string{
		"m.id", "m.company_id", "m.user_id", "m.role", "m.created_at",
		"u.name AS user_name", "u.email AS user_email", "c.name AS company_name",
	},
	Key: "m.id",
	Columns: []datatable.Column{
		{ID: "name", Expr: "u.name", Type: datatable.Text, Sortable: true, Searchable: true},
		{ID: "email", Expr: "u.email", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "role", Expr: "m.role", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{model.MemberOwner, model.MemberAdmin, model.MemberStaff, model.MemberViewer}},
		{ID: "createdAt", Expr: "m.created_at", Type: datatable.Date, Sortable: true, Filterable: true},
	},
	DefaultSort:  "name",
	DefaultOrder: datatable.Asc,
	ScopeColumn:  "m.company_id",
}).MustValidate()
