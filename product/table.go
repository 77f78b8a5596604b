package product

import (
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

// Table is the product catalogue of the active company.
var Table = (&datatable.Table{
	Name: "products",
	From: "products p",
	Select: []string{
		"p.id", "p.company_id", "p.sku", "p.name", "p.category", "p.unit", "p.price", "p.min_stock",
		"p.stock", "p.image_url", "p.image_file_id", "p.status", "p.created_at", "p.updated_at",
	},
	Key: "p.id",
	Columns: []datatable.Column{
		{ID: "sku", Expr: "p.sku", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "name", Expr: "p.name", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "category", Expr: "p.category", Type: datatable.Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "unit", Expr: "p.unit", Type: datatable.Text, Filterable: true},
		{ID: "price", Expr: "p.price", Type: datatable.Number, Sortable: true, Filterable: true},
		{ID: "stock", Expr: "p.stock", Type: datatable.Number, Sortable: true, Filterable: true},
		{ID: "minStock", Expr: "p.min_stock", Type: datatable.Number, Sortable: true},
		{ID: "lowStock", Expr: "p.stock <= p.min_stock", Type: datatable.Bool, Filterable: true},
		{ID: "status", Expr: "p.status", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{model.ProductActive, model.ProductArchived}},
		{ID: "createdAt", Expr: "p.created_at", Type: datatable.Date, Sortable: true, Filterable: true},
		{ID: "updatedAt", Expr: "p.updated_at", Type: datatable.Date, Sortable: true},
	},
	DefaultSort:  "name",
	DefaultOrder: datatable.Asc,
	ScopeColumn:  "p.company_id",
}).MustValidate()
