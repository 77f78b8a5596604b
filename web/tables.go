package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielzuhad/stocking-app-sub001/activity"
	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/company"
	"github.com/danielzuhad/stocking-app-sub001/database"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/inventory"
	"github.com/danielzuhad/stocking-app-sub001/member"
	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/product"
	"github.com/danielzuhad/stocking-app-sub001/render"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
	"github.com/danielzuhad/stocking-app-sub001/user"
)

const maxProductOptions = 500

type listData struct {
	Table     *render.TableView
	ExportURL string
	Products  []model.Product
	All       bool
}

type list[T any] struct {
	page  string
	title string
	path  string
	table *datatable.Table
	cells []render.Cell[T]
	empty string
}

// renderList runs the table query behind a list page. Bad parameters are
// reported on the page and the table falls back to its defaults.
func renderList[T any](p *Pages, w http.ResponseWriter, r *http.Request, l list[T], scope datatable.Scope, extra url.Values, data *listData) {
	v := p.view(r, l.title, l.page)
	status := http.StatusOK

	params := r.URL.Query()
	for k := range extra {
		params.Del(k)
	}
	s, err := datatable.Parse(l.table, params, p.Tables)
	if err != nil {
		msg, ok := queryProblem(err)
		if !ok {
			p.fail(w, r, err)
			return
		}
		v.Error, status = msg, http.StatusBadRequest
		s = datatable.Defaults(l.table)
	}

	page, err := datatable.Query[T](r.Context(), p.DB, l.table, s, scope)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	linker := render.Linker{Path: l.path, Table: l.table, Codec: p.Tables.Codec, Extra: extra}
	data.Table = render.NewTableView(page, linker, l.cells, l.empty)
	if l.page == "products" {
		data.ExportURL = "/api/products/export"
		if q := datatable.Values(s); len(q) > 0 {
			data.ExportURL += "?" + q.Encode()
		}
	}
	v.Data = data
	p.Render.HTML(w, status, l.page, v)
}

func stockCell(pr model.Product) any {
	if pr.LowStock() {
		return render.Badge(render.Comma(pr.Stock)+" low", "warn")
	}
	return render.Comma(pr.Stock)
}

// statusBadge highlights the active status shared by products and
// companies.
func statusBadge(status string) any {
	if status == model.ProductActive {
		return render.Badge(strings.ToLower(status), "ok")
	}
	return render.Badge(strings.ToLower(status), "muted")
}

var productList = list[model.Product]{
	page:  "products",
	title: "Products",
	path:  "/products",
	table: product.Table,
	empty: "No products match. Create one or import a CSV file.",
	cells: []render.Cell[model.Product]{
		{ID: "sku", Label: "SKU", Value: func(p model.Product) any { return p.SKU }},
		{ID: "name", Label: "Name", Value: func(p model.Product) any { return p.Name }},
		{ID: "category", Label: "Category", Value: func(p model.Product) any { return p.Category }},
		{ID: "stock", Label: "Stock", Numeric: true, Value: stockCell},
		{ID: "minStock", Label: "Min", Numeric: true, Value: func(p model.Product) any { return render.Comma(p.MinStock) }},
		{ID: "unit", Label: "Unit", Value: func(p model.Product) any { return p.Unit }},
		{ID: "price", Label: "Price", Numeric: true, Value: func(p model.Product) any { return render.Money(p.Price) }},
		{ID: "status", Label: "Status", Value: func(p model.Product) any { return statusBadge(p.Status) }},
		{ID: "updatedAt", Label: "Updated", Value: func(p model.Product) any { return render.Ago(p.UpdatedAt) }},
	},
}

var inventoryList = list[model.InventoryRecord]{
	page:  "inventory",
	title: "Inventory",
	path:  "/inventory",
	table: inventory.Table,
	empty: "No stock movements recorded yet.",
	cells: []render.Cell[model.InventoryRecord]{
		{ID: "createdAt", Label: "When", Value: func(r model.InventoryRecord) any { return render.DateTime(r.CreatedAt) }},
		{ID: "type", Label: "Type", Value: func(r model.InventoryRecord) any { return render.Badge(r.Type, strings.ToLower(r.Type)) }},
		{ID: "productSku", Label: "SKU", Value: func(r model.InventoryRecord) any { return r.ProductSKU }},
		{ID: "productName", Label: "Product", Value: func(r model.InventoryRecord) any { return r.ProductName }},
		{ID: "quantity", Label: "Qty", Numeric: true, Value: func(r model.InventoryRecord) any { return render.Comma(r.Quantity) }},
		{ID: "delta", Label: "Change", Numeric: true, Value: func(r model.InventoryRecord) any { return fmt.Sprintf("%+d", r.Delta) }},
		{ID: "balance", Label: "Balance", Numeric: true, Value: func(r model.InventoryRecord) any { return render.Comma(r.Balance) }},
		{ID: "note", Label: "Note", Value: func(r model.InventoryRecord) any { return r.Note }},
		{ID: "creator", Label: "By", Value: func(r model.InventoryRecord) any { return r.CreatorName }},
	},
}

var activityList = list[model.ActivityLog]{
	page:  "activity",
	title: "Activity",
	path:  "/activity",
	table: activity.Table,
	empty: "No activity recorded.",
	cells: []render.Cell[model.ActivityLog]{
		{ID: "createdAt", Label: "When", Value: func(a model.ActivityLog) any { return render.DateTime(a.CreatedAt) }},
		{ID: "user", Label: "User", Value: func(a model.ActivityLog) any { return a.UserName }},
		{ID: "company", Label: "Company", Value: func(a model.ActivityLog) any { return a.CompanyName }},
		{ID: "action", Label: "Action", Value: func(a model.ActivityLog) any { return a.Action }},
		{ID: "description", Label: "Description", Value: func(a model.ActivityLog) any { return a.Description }},
		{ID: "browser", Label: "Client", Value: func(a model.ActivityLog) any { return strings.TrimSpace(a.Browser + " " + a.OS) }},
	},
}

var memberList = list[model.Membership]{
	page:  "members",
	title: "Members",
	path:  "/members",
	table: member.Table,
	empty: "No members.",
	cells: []render.Cell[model.Membership]{
		{ID: "name", Label: "Name", Value: func(m model.Membership) any { return m.UserName }},
		{ID: "email", Label: "Email", Value: func(m model.Membership) any { return m.UserEmail }},
		{ID: "role", Label: "Role", Value: func(m model.Membership) any { return render.Badge(strings.ToLower(m.Role), "ok") }},
		{ID: "createdAt", Label: "Since", Value: func(m model.Membership) any { return render.DateTime(m.CreatedAt) }},
	},
}

var companyList = list[model.Company]{
	page:  "companies",
	title: "Companies",
	path:  "/companies",
	table: company.Table,
	empty: "No companies yet.",
	cells: []render.Cell[model.Company]{
		{ID: "name", Label: "Name", Value: func(c model.Company) any { return c.Name }},
		{ID: "slug", Label: "Slug", Value: func(c model.Company) any { return c.Slug }},
		{ID: "status", Label: "Status", Value: func(c model.Company) any { return statusBadge(c.Status) }},
		{ID: "members", Label: "Members", Numeric: true, Value: func(c model.Company) any { return render.Comma(int64(c.MemberCount)) }},
		{ID: "createdAt", Label: "Created", Value: func(c model.Company) any { return render.DateTime(c.CreatedAt) }},
	},
}

var userList = list[model.User]{
	page:  "users",
	title: "Users",
	path:  "/users",
	table: user.Table,
	empty: "No users.",
	cells: []render.Cell[model.User]{
		{ID: "name", Label: "Name", Value: func(u model.User) any { return u.Name }},
		{ID: "email", Label: "Email", Value: func(u model.User) any { return u.Email }},
		{ID: "systemRole", Label: "Role", Value: func(u model.User) any { return render.Badge(strings.ToLower(u.SystemRole), "ok") }},
		{ID: "status", Label: "Status", Value: func(u model.User) any {
			if u.IsActive() {
				return render.Badge("active", "ok")
			}
			return render.Badge("disabled", "muted")
		}},
		{ID: "lastLoginAt", Label: "Last sign in", Value: func(u model.User) any {
			if !u.LastLoginAt.Valid {
				return "never"
			}
			return render.Ago(u.LastLoginAt.Time)
		}},
		{ID: "createdAt", Label: "Created", Value: func(u model.User) any { return render.DateTime(u.CreatedAt) }},
	},
}

func (p *Pages) Products() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderList(p, w, r, productList, tenant.Scope(r.Context()), nil, &listData{})
	}
}

func (p *Pages) Inventory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := &listData{}
		if tenant.From(r.Context()).Can(model.MemberStaff) {
			products, err := database.ListActiveProducts(r.Context(), p.DB, tenant.From(r.Context()).CompanyID(), maxProductOptions)
			if err != nil {
				p.fail(w, r, err)
				return
			}
			data.Products = products
		}
		renderList(p, w, r, inventoryList, tenant.Scope(r.Context()), nil, data)
	}
}

func (p *Pages) Activity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := &listData{}
		scope := tenant.Scope(r.Context())
		var extra url.Values
		if r.URL.Query().Get("scope") == "all" && auth.UserFrom(r.Context()).IsSuperadmin() {
			scope, data.All = datatable.Scope{All: true}, true
			extra = url.Values{"scope": {"all"}}
		}
		renderList(p, w, r, activityList, scope, extra, data)
	}
}

func (p *Pages) Members() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderList(p, w, r, memberList, tenant.Scope(r.Context()), nil, &listData{})
	}
}

func (p *Pages) Companies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderList(p, w, r, companyList, datatable.Scope{All: true}, nil, &listData{})
	}
}

func (p *Pages) Users() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderList(p, w, r, userList, datatable.Scope{All: true}, nil, &listData{})
	}
}
