package datatable

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// ErrMissingScope is returned when a query would run without its tenant
// predicate.
var ErrMissingScope = errors.New("datatable: query has no tenant scope")

// Scope restricts a query to one company. All lifts the restriction and is
// only granted to platform administrators.
type Scope struct {
	CompanyID string
	All       bool
}

// Page is one page of rows plus the state that produced it.
type Page[T any] struct {
	Rows      []T      `json:"rows"`
	Total     int      `json:"total"`
	Page      int      `json:"page"`
	PerPage   int      `json:"perPage"`
	PageCount int      `json:"pageCount"`
	Sort      string   `json:"sort"`
	Order     Order    `json:"order"`
	Search    string   `json:"search,omitempty"`
	Filters   []Filter `json:"filters,omitempty"`
	Token     string   `json:"token,omitempty"`

	State State `json:"-"`
}

// HasPrev reports whether a previous page exists.
func (p *Page[T]) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p *Page[T]) HasNext() bool { return p.Page < p.PageCount }

// NewPage wraps rows fetched for s.
func NewPage[T any](rows []T, total int, s State) *Page[T] {
	if rows == nil {
		rows = []T{}
	}
	pageCount := 0
	if total > 0 && s.PerPage > 0 {
		pageCount = (total + s.PerPage - 1) / s.PerPage
	}
	return &Page[T]{
		Rows:      rows,
		Total:     total,
		Page:      s.Page,
		PerPage:   s.PerPage,
		PageCount: pageCount,
		Sort:      s.Sort,
		Order:     s.Order,
		Search:    s.Search,
		Filters:   s.Filters,
		State:     s,
	}
}

func (t *Table) scoped(b sq.SelectBuilder, scope Scope) (sq.SelectBuilder, error) {
	if scope.All {
		return b, nil
	}
	if t.ScopeColumn == "" || scope.CompanyID == "" {
		return b, ErrMissingScope
	}
	return b.Where(sq.Eq{t.ScopeColumn: scope.CompanyID}), nil
}

// where applies scope, search and filters to b.
func (t *Table) where(b sq.SelectBuilder, s State, scope Scope) (sq.SelectBuilder, error) {
	b, err := t.scoped(b, scope)
	if err != nil {
		return b, err
	}

	if s.Search != "" {
		pattern := "%" + escapeLike(s.Search) + "%"
		var or sq.Or
		for _, c := range t.searchable() {
			or = append(or, sq.Expr(c.Expr+` LIKE ? ESCAPE '\'`, pattern))
		}
		if len(or) > 0 {
			b = b.Where(or)
		}
	}

	for _, f := range s.Filters {
		col, ok := t.Column(f.Column)
		if !ok || !col.Filterable {
			return b, fmt.Errorf("%w: %q", ErrNotFilterable, f.Column)
		}
		pred, err := predicate(col, f)
		if err != nil {
			return b, err
		}
		b = b.Where(pred)
	}
	return b, nil
}

func predicate(col Column, f Filter) (sq.Sqlizer, error) {
	switch col.Type {
	case Text:
		return sq.Expr(col.Expr+` LIKE ? ESCAPE '\'`, "%"+escapeLike(f.Values[0])+"%"), nil
	case Enum:
		if len(f.Values) == 1 {
			return sq.Eq{col.Expr: f.Values[0]}, nil
		}
		return sq.Eq{col.Expr: f.Values}, nil
	case Bool:
		v := 0
		if f.Values[0] == "true" {
			v = 1
		}
		return sq.Expr("("+col.Expr+") = ?", v), nil
	case Number:
		if !f.Range {
			n, err := strconv.ParseFloat(f.Values[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
			}
			return sq.Expr(col.Expr+" = ?", n), nil
		}
		and := sq.And{}
		for _, bound := range []struct{ op, v string }{{">=", f.From}, {"<=", f.To}} {
			if bound.v == "" {
				continue
			}
			n, err := strconv.ParseFloat(bound.v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
			}
			and = append(and, sq.Expr(col.Expr+" "+bound.op+" ?", n))
		}
		return and, nil
	case Date:
		from, to := f.From, f.To
		if !f.Range {
			from, to = f.Values[0], f.Values[0]
		}
		and := sq.And{}
		if from != "" {
			and = append(and, sq.Expr(col.Expr+" >= ?", from))
		}
		if to != "" {
			next, err := nextDay(to)
			if err != nil {
				return nil, err
			}
			and = append(and, sq.Expr(col.Expr+" < ?", next))
		}
		return and, nil
	}
	return nil, fmt.Errorf("%w: unsupported column type %q", ErrInvalidFilter, col.Type)
}

func nextDay(day string) (string, error) {
	d, err := time.Parse(dateLayout, day)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return d.AddDate(0, 0, 1).Format(dateLayout), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (t *Table) orderBy(s State) []string {
	col, ok := t.Column(s.Sort)
	if !ok || !col.Sortable {
		col, _ = t.Column(t.DefaultSort)
	}
	dir := "ASC"
	if s.Order == Desc {
		dir = "DESC"
	}
	clauses := []string{col.Expr + " " + dir}
	if col.Expr != t.Key {
		clauses = append(clauses, t.Key+" "+dir)
	}
	return clauses
}

// Build returns the count query and the page query for s.
func Build(t *Table, s State, scope Scope) (count, page sq.SelectBuilder, err error) {
	count, err = t.where(sq.Select("COUNT(*)").From(t.From), s, scope)
	if err != nil {
		return count, page, err
	}
	page, err = t.where(sq.Select(t.Select...).From(t.From), s, scope)
	if err != nil {
		return count, page, err
	}
	page = page.OrderBy(t.orderBy(s)...).
		Limit(uint64(s.PerPage)).
		Offset(uint64(s.Offset()))
	return count, page, nil
}

// BuildAll returns the sorted, filtered query for s without pagination,
// capped at limit rows.
func BuildAll(t *Table, s State, scope Scope, limit uint64) (sq.SelectBuilder, error) {
	b, err := t.where(sq.Select(t.Select...).From(t.From), s, scope)
	if err != nil {
		return b, err
	}
	return b.OrderBy(t.orderBy(s)...).Limit(limit), nil
}

// Query runs s against db and returns the requested page. A page past the
// end yields no rows but still reports the total.
func Query[T any](ctx context.Context, db sqlx.QueryerContext, t *Table, s State, scope Scope) (*Page[T], error) {
	countQ, pageQ, err := Build(t, s, scope)
	if err != nil {
		return nil, err
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s count query: %w", t.Name, err)
	}
	var total int
	if err := sqlx.GetContext(ctx, db, &total, query, args...); err != nil {
		return nil, fmt.Errorf("counting %s rows: %w", t.Name, err)
	}

	rows := []T{}
	if total > s.Offset() {
		query, args, err = pageQ.ToSql()
		if err != nil {
			return nil, fmt.Errorf("building %s page query: %w", t.Name, err)
		}
		if err := sqlx.SelectContext(ctx, db, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("selecting %s rows: %w", t.Name, err)
		}
	}
	return NewPage(rows, total, s), nil
}

// All runs the unpaginated query for s, returning at most limit rows.
func All[T any](ctx context.Context, db sqlx.QueryerContext, t *Table, s State, scope Scope, limit uint64) ([]T, error) {
	b, err := BuildAll(t, s, scope, limit)
	if err != nil {
		return nil, err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s export query: %w", t.Name, err)
	}
	rows := []T{}
	if err := sqlx.SelectContext(ctx, db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("selecting %s rows: %w", t.Name, err)
	}
	return rows, nil
}

// Run parses params, queries the page and attaches a fresh token.
func Run[T any](ctx context.Context, db sqlx.QueryerContext, t *Table, params url.Values, scope Scope, opts Options) (*Page[T], error) {
	s, err := Parse(t, params, opts)
	if err != nil {
		return nil, err
	}
	page, err := Query[T](ctx, db, t, s, scope)
	if err != nil {
		return nil, err
	}
	if page.Token, err = opts.Codec.Encode(t, s); err != nil {
		return nil, err
	}
	return page, nil
}
