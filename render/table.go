package render

import (
	"html/template"
	"net/url"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/danielzuhad/stocking-app-sub001/datatable"
)

// Linker builds the URL of a table state. With a codec the state travels as
// the encrypted t parameter, otherwise as plain query parameters.
type Linker struct {
	Path  string
	Table *datatable.Table
	Codec *datatable.Codec
	// Extra is appended to every link, e.g. scope=all.
	Extra url.Values
}

func (l Linker) URL(s datatable.State) string {
	v := url.Values{}
	if tok, err := l.Codec.Encode(l.Table, s); err == nil && tok != "" {
		v.Set(datatable.ParamToken, tok)
	} else {
		v = datatable.Values(s)
	}
	for k, vals := range l.Extra {
		v[k] = vals
	}
	if len(v) == 0 {
		return l.Path
	}
	return l.Path + "?" + v.Encode()
}

// Cell renders one column of a row type.
type Cell[T any] struct {
	ID      string
	Label   string
	Numeric bool
	Value   func(T) any
}

type Header struct {
	Label   string
	URL     string
	Sorted  bool
	Order   datatable.Order
	Numeric bool
}

type PageSize struct {
	Size    int
	URL     string
	Current bool
}

// HiddenField carries state through the search form.
type HiddenField struct {
	Name  string
	Value string
}

// TableView is a rendered table page.
type TableView struct {
	Headers   []Header
	Rows      [][]any
	Numeric   []bool
	Total     int
	Page      int
	PageCount int
	PrevURL   string
	NextURL   string
	Sizes     []PageSize
	Search    string
	Hidden    []HiddenField
	Action    string
	Empty     string
}

// NewTableView renders page with the given columns. Header links sort by
// the column, pager links move through pages, and the search form keeps the
// current sort and filters but restarts at page 1.
func NewTableView[T any](page *datatable.Page[T], l Linker, cells []Cell[T], empty string) *TableView {
	s := page.State
	tv := &TableView{
		Total:     page.Total,
		Page:      page.Page,
		PageCount: page.PageCount,
		Search:    s.Search,
		Action:    l.Path,
		Empty:     empty,
	}
	for _, c := range cells {
		h := Header{Label: c.Label, Numeric: c.Numeric}
		if col, ok := l.Table.Column(c.ID); ok && col.Sortable {
			h.URL = l.URL(s.WithSort(c.ID))
			h.Sorted = s.Sort == c.ID
			h.Order = s.Order
		}
		tv.Headers = append(tv.Headers, h)
		tv.Numeric = append(tv.Numeric, c.Numeric)
	}
	for _, row := range page.Rows {
		out := make([]any, len(cells))
		for i, c := range cells {
			out[i] = c.Value(row)
		}
		tv.Rows = append(tv.Rows, out)
	}
	if page.HasPrev() {
		tv.PrevURL = l.URL(s.WithPage(page.Page - 1))
	}
	if page.HasNext() {
		tv.NextURL = l.URL(s.WithPage(page.Page + 1))
	}
	for _, size := range datatable.PageSizes {
		tv.Sizes = append(tv.Sizes, PageSize{Size: size, URL: l.URL(s.WithPerPage(size)), Current: size == s.PerPage})
	}

	base := s.WithPage(1)
	base.Search = ""
	if tok, err := l.Codec.Encode(l.Table, base); err == nil && tok != "" {
		tv.Hidden = append(tv.Hidden, HiddenField{Name: datatable.ParamToken, Value: tok})
	} else {
		v := datatable.Values(base)
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tv.Hidden = append(tv.Hidden, HiddenField{Name: k, Value: v.Get(k)})
		}
	}
	for k := range l.Extra {
		tv.Hidden = append(tv.Hidden, HiddenField{Name: k, Value: l.Extra.Get(k)})
	}
	return tv
}

// Badge renders a small status label.
func Badge(text, kind string) template.HTML {
	return template.HTML(`<span class="badge badge-` + template.HTMLEscapeString(kind) + `">` +
		template.HTMLEscapeString(text) + `</span>`)
}

// Link renders an anchor.
func Link(href, text string) template.HTML {
	return template.HTML(`<a href="` + template.HTMLEscapeString(href) + `">` + template.HTMLEscapeString(text) + `</a>`)
}

// Comma formats n with thousands separators.
func Comma(n int64) string { return humanize.Comma(n) }
