package inventory

import (
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/model"
)

// Table lists the stock movements of the active company, newest first.
var Table = (&datatable.Table{
	Name: "inventory",
	From: `inventory_records r
		JOIN products p ON p.id = r.product_id
		LEFT JOIN users u ON u.id = r.created_by`,
	Select: []string{
		"r.id", "r.company_id", "r.product_id", "r.type", "r.quantity", "r.delta", "r.balance", "r.note",
		"r.created_by", "r.created_at", "p.sku AS product_sku", "p.name AS product_name",
		"COALESCE(u.name, '') AS creator_name",
	},
	Key: "r.id",
	Columns: []datatable.Column{
		{ID: "createdAt", Expr: "r.created_at", Type: datatable.Date, Sortable: true, Filterable: true},
		{ID: "type", Expr: "r.type", Type: datatable.Enum, Sortable: true, Filterable: true,
			Options: []string{model.RecordIn, model.RecordOut, model.RecordAdjust}},
		{ID: "product", Expr: "r.product_id", Type: datatable.Text, Filterable: true},
		{ID: "productSku", Expr: "p.sku", Type: datatable.Text, Sortable: true, Searchable: true},
		{ID: "productName", Expr: "p.name", Type: datatable.Text, Sortable: true, Searchable: true},
		{ID: "quantity", Expr: "r.quantity", Type: datatable.Number, Sortable: true, Filterable: true},
		{ID: "delta", Expr: "r.delta", Type: datatable.Number, Sortable: true},
		{ID: "balance", Expr: "r.balance", Type: datatable.Number, Sortable: true},
		{ID: "note", Expr: "r.note", Type: datatable.Text, Filterable: true},
		{ID: "creator", Expr: "COALESCE(u.name, '')", Type: datatable.Text, Sortable: true},
	},
	DefaultSort:  "createdAt",
	DefaultOrder: datatable.Desc,
	ScopeColumn:  "r.company_id",
}).MustValidate()
