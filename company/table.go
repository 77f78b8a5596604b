package company

import (
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

const memberCount = "(SELECT COUNT(*) FROM memberships m WHERE m.company_id = c.id)"

// Table lists every company on the platform.
var Table = (&datatable.Table{
	Name: "companies",
	From: "companies c",
	Select: []string{
		"c.id", "c.name", "c.slug", "c.status", "c.created_at", "c.updated_at",
		memberCount + " AS member_count",
	},
	Key: "c.id",
	Columns: []datatable.Column{
		{ID: "name", Expr: "c.name", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "slug", Expr: "c.slug", Type: datatable.Text, Sortable: true, Searchable: true},
		{ID: "status", Expr: "c.status", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{model.CompanyActive, model.CompanyInactive}},
		{ID: "members", Expr: memberCount, Type: datatable.Number, Sortable: true, Filterable: true},
		{ID: "createdAt", Expr: "c.created_at", Type: datatable.Date, Sortable: true, Filterable: true},
	},
	DefaultSort:  "name",
	DefaultOrder: datatable.Asc,
}).MustValidate()
