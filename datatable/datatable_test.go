package datatable

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var items = (&Table{
	Name:   "items",
	From:   "items i",
	Key:    "i.id",
	Select: []string{"i.id", "i.name", "i.status", "i.qty", "i.created_at"},
	Columns: []Column{
		{ID: "name", Expr: "i.name", Type: Text, Sortable: true, Filterable: true, Searchable: true},
		{ID: "status", Expr: "i.status", Type: Enum, Sortable: true, Filterable: true, Options: []string{"ACTIVE", "ARCHIVED"}},
		{ID: "qty", Expr: "i.qty", Type: Number, Sortable: true, Filterable: true},
		{ID: "low", Expr: "i.qty <= 5", Type: Bool, Filterable: true},
		{ID: "created", Expr: "i.created_at", Type: Date, Sortable: true, Filterable: true},
		{ID: "secret", Expr: "i.secret", Type: Text},
	},
	DefaultSort:  "name",
	DefaultOrder: Asc,
	ScopeColumn:  "i.company_id",
}).MustValidate()

var other = (&Table{
	Name:         "other",
	From:         "other o",
	Key:          "o.id",
	Select:       []string{"o.id"},
	Columns:      []Column{{ID: "id", Expr: "o.id", Type: Text, Sortable: true}},
	DefaultSort:  "id",
	DefaultOrder: Desc,
}).MustValidate()

type item struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Status    string `db:"status"`
	Qty       int64  `db:"qty"`
	CreatedAt string `db:"created_at"`
}

func setupItems(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE items (
		id TEXT PRIMARY KEY, company_id TEXT NOT NULL, name TEXT NOT NULL, status TEXT NOT NULL,
		qty INTEGER NOT NULL, created_at TEXT NOT NULL, secret TEXT NOT NULL DEFAULT '')`)
	rows := []struct {
		id, company, name, status string
		qty                       int
		created                   string
	}{
		{"1", "c1", "Apple", "ACTIVE", 10, "2024-03-01 10:00:00+00:00"},
		{"2", "c1", "Banana", "ACTIVE", 3, "2024-03-02 09:30:00+00:00"},
		{"3", "c1", "Cherry 100%", "ARCHIVED", 0, "2024-03-03 08:00:00+00:00"},
		{"4", "c1", "apple pie", "ACTIVE", 7, "2024-03-03 08:00:00+00:00"},
		{"5", "c1", "Date_x", "ACTIVE", 20, "2024-03-05 23:59:59+00:00"},
		{"6", "c2", "Apple", "ACTIVE", 1, "2024-03-01 10:00:00+00:00"},
	}
	for _, r := range rows {
		db.MustExec(`INSERT INTO items (id, company_id, name, status, qty, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			r.id, r.company, r.name, r.status, r.qty, r.created)
	}
	return db
}

func ids(rows []item) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func mustCodec(t *testing.T, secret string) *Codec {
	t.Helper()
	c, err := NewCodec(secret)
	require.NoError(t, err)
	return c
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse(items, url.Values{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, Defaults(items), s)
	assert.Equal(t, 0, s.Offset())
}

func TestParseValid(t *testing.T) {
	params := url.Values{
		"page":           {"3"},
		"per_page":       {"50"},
		"sort":           {"qty"},
		"order":          {"DESC"},
		"q":              {"  ａｐｐｌｅ  "},
		"filter.status":  {"archived,active", "ACTIVE"},
		"filter.qty":     {"1.5..20"},
		"filter.created": {"2024-03-01.."},
		"filter.low":     {"true"},
		"filter.name":    {""},
	}
	s, err := Parse(items, params, Options{MaxPerPage: 100})
	require.NoError(t, err)

	want := State{
		Page:    3,
		PerPage: 50,
		Sort:    "qty",
		Order:   Desc,
		Search:  "apple",
		Filters: []Filter{
			{Column: "created", Range: true, From: "2024-03-01"},
			{Column: "low", Values: []string{"true"}},
			{Column: "qty", Range: true, From: "1.5", To: "20"},
			{Column: "status", Values: []string{"ACTIVE", "ARCHIVED"}},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 100, s.Offset())
}

func TestParseCollectsEveryError(t *testing.T) {
	params := url.Values{
		"page":          {"0"},
		"per_page":      {"15"},
		"sort":          {"secret"},
		"order":         {"sideways"},
		"filter.nope":   {"x"},
		"filter.secret": {"x"},
		"filter.qty":    {"5..1"},
		"filter.status": {"DELETED"},
	}
	_, err := Parse(items, params, Options{})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 8)
	assert.Contains(t, verr.FieldErrors(), "filter.nope")

	for _, sentinel := range []error{
		ErrInvalidPage, ErrInvalidPerPage, ErrNotSortable, ErrInvalidOrder,
		ErrUnknownColumn, ErrNotFilterable, ErrInvalidFilter,
	} {
		assert.ErrorIs(t, err, sentinel)
	}
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "invalid table query: filter.nope:")
}

func TestParseRejects(t *testing.T) {
	long := make([]rune, MaxSearchRunes+1)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name   string
		params url.Values
		opts   Options
		want   error
	}{
		{"non numeric page", url.Values{"page": {"two"}}, Options{}, ErrInvalidPage},
		{"page size above cap", url.Values{"per_page": {"100"}}, Options{MaxPerPage: 50}, ErrInvalidPerPage},
		{"unknown sort", url.Values{"sort": {"price"}}, Options{}, ErrUnknownColumn},
		{"search too long", url.Values{"q": {string(long)}}, Options{}, ErrSearchTooLong},
		{"search on table without searchable columns", url.Values{"q": {"x"}}, Options{}, ErrInvalidFilter},
		{"bad bool", url.Values{"filter.low": {"maybe"}}, Options{}, ErrInvalidFilter},
		{"bad number", url.Values{"filter.qty": {"ten"}}, Options{}, ErrInvalidFilter},
		{"empty range", url.Values{"filter.qty": {".."}}, Options{}, ErrInvalidFilter},
		{"bad date", url.Values{"filter.created": {"03/01/2024"}}, Options{}, ErrInvalidFilter},
		{"reversed dates", url.Values{"filter.created": {"2024-03-05..2024-03-01"}}, Options{}, ErrInvalidFilter},
		{"token without codec", url.Values{"t": {"abc"}}, Options{}, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := items
			if tt.name == "search on table without searchable columns" {
				table = other
			}
			_, err := Parse(table, tt.params, tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValuesRoundTrip(t *testing.T) {
	params := url.Values{
		"page":          {"2"},
		"per_page":      {"20"},
		"sort":          {"created"},
		"order":         {"desc"},
		"q":             {"pie"},
		"filter.status": {"ACTIVE"},
		"filter.qty":    {"..7"},
	}
	s, err := Parse(items, params, Options{})
	require.NoError(t, err)

	again, err := Parse(items, Values(s), Options{})
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestStateTransitions(t *testing.T) {
	s := Defaults(items).WithPage(4)

	sorted := s.WithSort("name")
	assert.Equal(t, Desc, sorted.Order)
	assert.Equal(t, 1, sorted.Page)

	byQty := sorted.WithSort("qty")
	assert.Equal(t, "qty", byQty.Sort)
	assert.Equal(t, Asc, byQty.Order)

	assert.Equal(t, 1, s.WithPerPage(50).Page)
	assert.Equal(t, 4, s.Page)
}

func TestCodec(t *testing.T) {
	codec := mustCodec(t, "a-long-enough-table-secret")
	state := State{Page: 3, PerPage: 20, Sort: "qty", Order: Desc, Search: "apple",
		Filters: []Filter{{Column: "status", Values: []string{"ACTIVE"}}}}

	token, err := codec.Encode(items, state)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	t.Run("round trip through Parse", func(t *testing.T) {
		got, err := Parse(items, url.Values{"t": {token}}, Options{Codec: codec})
		require.NoError(t, err)
		assert.Equal(t, state, got)
	})

	t.Run("explicit params override the token", func(t *testing.T) {
		got, err := Parse(items, url.Values{"t": {token}, "page": {"1"}, "q": {"pie"}}, Options{Codec: codec})
		require.NoError(t, err)
		assert.Equal(t, 1, got.Page)
		assert.Equal(t, "pie", got.Search)
		assert.Equal(t, "qty", got.Sort)
	})

	t.Run("nonce makes tokens unique", func(t *testing.T) {
		again, err := codec.Encode(items, state)
		require.NoError(t, err)
		assert.NotEqual(t, token, again)
	})

	t.Run("token bound to its table", func(t *testing.T) {
		_, err := codec.Decode(other, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		b := []byte(token)
		if b[len(b)-2] == 'A' {
			b[len(b)-2] = 'B'
		} else {
			b[len(b)-2] = 'A'
		}
		_, err := codec.Decode(items, string(b))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("different secret", func(t *testing.T) {
		_, err := mustCodec(t, "another-table-secret-value").Decode(items, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, tok := range []string{"!!!", "AQ", ""} {
			_, err := codec.Decode(items, tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		}
	})

	t.Run("decoded values are validated again", func(t *testing.T) {
		bad := url.Values{"sort": {"secret"}}
		c := codec
		tok, err := c.seal(items, bad)
		require.NoError(t, err)
		_, err = Parse(items, url.Values{"t": {tok}}, Options{Codec: c})
		assert.ErrorIs(t, err, ErrNotSortable)
	})
}

func TestNilCodec(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, c.Enabled())

	tok, err := c.Encode(items, Defaults(items))
	require.NoError(t, err)
	assert.Empty(t, tok)

	_, err = c.Decode(items, "anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBuild(t *testing.T) {
	_, page, err := Build(items, Defaults(items), Scope{CompanyID: "c1"})
	require.NoError(t, err)

	query, args, err := page.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT i.id, i.name, i.status, i.qty, i.created_at FROM items i WHERE i.company_id = ? ORDER BY i.name ASC, i.id ASC LIMIT 10 OFFSET 0", query)
	assert.Equal(t, []interface{}{"c1"}, args)

	_, _, err = Build(items, Defaults(items), Scope{})
	assert.ErrorIs(t, err, ErrMissingScope)

	_, _, err = Build(other, Defaults(other), Scope{CompanyID: "c1"})
	assert.ErrorIs(t, err, ErrMissingScope)

	_, _, err = Build(other, Defaults(other), Scope{All: true})
	assert.NoError(t, err)
}

func TestQuery(t *testing.T) {
	db := setupItems(t)
	ctx := context.Background()
	c1 := Scope{CompanyID: "c1"}

	run := func(t *testing.T, params url.Values, scope Scope) *Page[item] {
		t.Helper()
		s, err := Parse(items, params, Options{})
		require.NoError(t, err)
		page, err := Query[item](ctx, db, items, s, scope)
		require.NoError(t, err)
		return page
	}

	tests := []struct {
		name   string
		params url.Values
		scope  Scope
		want   []string
	}{
		{"default sort within tenant", url.Values{}, c1, []string{"1", "2", "3", "5", "4"}},
		{"all tenants", url.Values{"filter.name": {"apple"}}, Scope{All: true}, []string{"1", "6", "4"}},
		{"search is case insensitive", url.Values{"q": {"APPLE"}}, c1, []string{"1", "4"}},
		{"search escapes percent", url.Values{"q": {"100%"}}, c1, []string{"3"}},
		{"search escapes underscore", url.Values{"q": {"_"}}, c1, []string{"5"}},
		{"enum filter", url.Values{"filter.status": {"archived"}}, c1, []string{"3"}},
		{"number range", url.Values{"filter.qty": {"3..10"}, "sort": {"qty"}}, c1, []string{"2", "4", "1"}},
		{"exact number", url.Values{"filter.qty": {"7"}}, c1, []string{"4"}},
		{"bool expression", url.Values{"filter.low": {"1"}}, c1, []string{"2", "3"}},
		{"single day", url.Values{"filter.created": {"2024-03-03"}, "sort": {"created"}}, c1, []string{"3", "4"}},
		{"open ended range", url.Values{"filter.created": {"..2024-03-02"}}, c1, []string{"1", "2"}},
		{"inclusive end day", url.Values{"filter.created": {"2024-03-05..2024-03-05"}}, c1, []string{"5"}},
		{"descending with tiebreak", url.Values{"sort": {"created"}, "order": {"desc"}}, c1, []string{"5", "4", "3", "2", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := run(t, tt.params, tt.scope)
			assert.Equal(t, tt.want, ids(page.Rows))
			assert.Equal(t, len(tt.want), page.Total)
		})
	}

	t.Run("page past the end", func(t *testing.T) {
		page := run(t, url.Values{"page": {"2"}}, c1)
		assert.NotNil(t, page.Rows)
		assert.Empty(t, page.Rows)
		assert.Equal(t, 5, page.Total)
		assert.Equal(t, 1, page.PageCount)
		assert.False(t, page.HasNext())
		assert.True(t, page.HasPrev())
	})

	t.Run("empty result", func(t *testing.T) {
		page := run(t, url.Values{"q": {"zzz"}}, c1)
		assert.Equal(t, 0, page.Total)
		assert.Equal(t, 0, page.PageCount)
		assert.NotNil(t, page.Rows)
	})
}

func TestRun(t *testing.T) {
	db := setupItems(t)
	codec := mustCodec(t, "a-long-enough-table-secret")
	opts := Options{Codec: codec, MaxPerPage: 100}

	page, err := Run[item](context.Background(), db, items, url.Values{"sort": {"qty"}, "order": {"desc"}}, Scope{CompanyID: "c1"}, opts)
	require.NoError(t, err)
	require.NotEmpty(t, page.Token)
	assert.Equal(t, "5", page.Rows[0].ID)

	next, err := Run[item](context.Background(), db, items, url.Values{"t": {page.Token}}, Scope{CompanyID: "c1"}, opts)
	require.NoError(t, err)
	assert.Equal(t, ids(page.Rows), ids(next.Rows))

	_, err = Run[item](context.Background(), db, items, url.Values{"page": {"-1"}}, Scope{CompanyID: "c1"}, opts)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestAll(t *testing.T) {
	db := setupItems(t)
	s := Defaults(items)
	s.PerPage = 10

	rows, err := All[item](context.Background(), db, items, s, Scope{CompanyID: "c1"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(rows))
}

func TestNewPage(t *testing.T) {
	p := NewPage[item](nil, 25, State{Page: 3, PerPage: 10})
	assert.NotNil(t, p.Rows)
	assert.Equal(t, 3, p.PageCount)
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())
}

func TestMustValidatePanics(t *testing.T) {
	assert.Panics(t, func() {
		(&Table{Name: "x", From: "x", Key: "x.id", Select: []string{"x.id"},
			Columns:     []Column{{ID: "a", Expr: "x.a"}},
			DefaultSort: "a", DefaultOrder: Asc}).MustValidate()
	})
	assert.Panics(t, func() {
		(&Table{Name: "x", From: "x", Key: "x.id", Select: []string{"x.id"},
			Columns:     []Column{{ID: "a", Expr: "x.a", Type: Enum, Sortable: true}},
			DefaultSort: "a", DefaultOrder: Asc}).MustValidate()
	})
}
