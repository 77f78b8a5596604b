package render

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielzuhad/stocking-app-sub001/datatable"
)

var testTable = (&datatable.Table{
	Name:   "things",
	From:   "things",
	Select: []string{"id", "name"},
	Key:    "id",
	Columns: []datatable.Column{
		{ID: "name", Expr: "name", Type: datatable.Text, Sortable: true, Searchable: true},
		{ID: "note", Expr: "note", Type: datatable.Text},
	},
	DefaultSort:  "name",
	DefaultOrder: datatable.Asc,
}).MustValidate()

type thing struct{ Name, Note string }

func TestMoney(t *testing.T) {
	tests := map[int64]string{
		0:         "0.00",
		5:         "0.05",
		1250:      "12.50",
		123456789: "1,234,567.89",
		-1999:     "-19.99",
	}
	for in, want := range tests {
		assert.Equal(t, want, Money(in), "Money(%d)", in)
	}
}

func TestLinkerURL(t *testing.T) {
	s := datatable.Defaults(testTable).WithPage(3)

	l := Linker{Path: "/things", Table: testTable}
	assert.Equal(t, "/things?order=asc&page=3&sort=name", l.URL(s))

	l.Extra = url.Values{"scope": {"all"}}
	assert.Equal(t, "/things?order=asc&page=3&scope=all&sort=name", l.URL(s))

	codec, err := datatable.NewCodec("secret")
	require.NoError(t, err)
	l = Linker{Path: "/things", Table: testTable, Codec: codec}
	u, err := url.Parse(l.URL(s))
	require.NoError(t, err)
	tok := u.Query().Get(datatable.ParamToken)
	require.NotEmpty(t, tok)
	assert.Len(t, u.Query(), 1)

	back, err := datatable.Parse(testTable, u.Query(), datatable.Options{Codec: codec})
	require.NoError(t, err)
	assert.Equal(t, 3, back.Page)
}

func TestNewTableView(t *testing.T) {
	rows := make([]thing, 10)
	for i := range rows {
		rows[i] = thing{Name: "n", Note: "<b>"}
	}
	s := datatable.Defaults(testTable).WithPage(2)
	s.Search = "n"
	page := datatable.NewPage(rows, 35, s)

	cells := []Cell[thing]{
		{ID: "name", Label: "Name", Value: func(x thing) any { return x.Name }},
		{ID: "note", Label: "Note", Numeric: true, Value: func(x thing) any { return x.Note }},
	}
	tv := NewTableView(page, Linker{Path: "/things", Table: testTable}, cells, "none")

	require.Len(t, tv.Headers, 2)
	assert.True(t, tv.Headers[0].Sorted)
	assert.NotEmpty(t, tv.Headers[0].URL)
	assert.Empty(t, tv.Headers[1].URL, "unsortable column has no link")
	assert.Equal(t, []bool{false, true}, tv.Numeric)
	assert.Len(t, tv.Rows, 10)
	assert.Equal(t, 4, tv.PageCount)
	assert.Equal(t, "/things?order=asc&q=n&sort=name", tv.PrevURL)
	assert.Equal(t, "/things?order=asc&page=3&q=n&sort=name", tv.NextURL)
	assert.Equal(t, "n", tv.Search)
	assert.Equal(t, []HiddenField{{Name: "order", Value: "asc"}, {Name: "sort", Value: "name"}}, tv.Hidden)
	require.Len(t, tv.Sizes, len(datatable.PageSizes))
	assert.True(t, tv.Sizes[0].Current)
}

func TestBadgeEscapes(t *testing.T) {
	assert.Equal(t, `<span class="badge badge-ok">&lt;x&gt;</span>`, string(Badge("<x>", "ok")))
}

func TestRendererHTML(t *testing.T) {
	rd, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	rd.HTML(rec, http.StatusTeapot, "login", &View{Title: "Sign in", Theme: ThemeDark, Error: "<nope>", Data: struct{ Next string }{"/x"}})
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `data-theme="dark"`)
	assert.Contains(t, body, "&lt;nope&gt;")
	assert.Contains(t, body, "Sign in · Stockly")

	rec = httptest.NewRecorder()
	rd.HTML(rec, http.StatusOK, "missing", &View{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatic(t *testing.T) {
	rec := httptest.NewRecorder()
	Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
