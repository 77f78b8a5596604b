package datatable

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

// Query parameter names.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamSort    = "sort"
	ParamOrder   = "order"
	ParamSearch  = "q"
	ParamToken   = "t"
	FilterPrefix = "filter."
)

const (
	DefaultPerPage  = 10
	MaxSearchRunes  = 100
	maxPage         = 1_000_000
	dateLayout      = "2006-01-02"
	rangeSeparator  = ".."
	valueSeparator  = ","
	maxFilterValues = 50
)

// PageSizes are the page sizes a client may request.
var PageSizes = []int{10, 20, 50, 100}

// Filter is one validated column filter. Range filters use From/To (either
// may be empty); the others use Values.
type Filter struct {
	Column string   `json:"column"`
	Values []string `json:"values,omitempty"`
	From   string   `json:"from,omitempty"`
	To     string   `json:"to,omitempty"`
	Range  bool     `json:"range,omitempty"`
}

// Raw renders the filter back to its query parameter value.
func (f Filter) Raw() string {
	if f.Range {
		return f.From + rangeSeparator + f.To
	}
	return strings.Join(f.Values, valueSeparator)
}

// State is a validated table query.
type State struct {
	Page    int      `json:"page"`
	PerPage int      `json:"perPage"`
	Sort    string   `json:"sort"`
	Order   Order    `json:"order"`
	Search  string   `json:"search,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
}

// Offset is the number of rows skipped before the current page.
func (s State) Offset() int { return (s.Page - 1) * s.PerPage }

// Filter returns the filter on column id.
func (s State) Filter(id string) (Filter, bool) {
	for _, f := range s.Filters {
		if f.Column == id {
			return f, true
		}
	}
	return Filter{}, false
}

// WithPage returns a copy of s on page n.
func (s State) WithPage(n int) State {
	s.Page = n
	return s
}

// WithSort returns a copy of s sorted by column id. Sorting by the current
// column flips the order; a new column starts ascending. The page resets.
func (s State) WithSort(id string) State {
	if s.Sort == id {
		if s.Order == Asc {
			s.Order = Desc
		} else {
			s.Order = Asc
		}
	} else {
		s.Sort = id
		s.Order = Asc
	}
	s.Page = 1
	return s
}

// WithPerPage returns a copy of s with a new page size, back on page 1.
func (s State) WithPerPage(n int) State {
	s.PerPage = n
	s.Page = 1
	return s
}

// Values renders s as plain query parameters.
func Values(s State) url.Values {
	v := url.Values{}
	if s.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(s.Page))
	}
	if s.PerPage != 0 && s.PerPage != DefaultPerPage {
		v.Set(ParamPerPage, strconv.Itoa(s.PerPage))
	}
	if s.Sort != "" {
		v.Set(ParamSort, s.Sort)
	}
	if s.Order != "" {
		v.Set(ParamOrder, string(s.Order))
	}
	if s.Search != "" {
		v.Set(ParamSearch, s.Search)
	}
	for _, f := range s.Filters {
		v.Set(FilterPrefix+f.Column, f.Raw())
	}
	return v
}

// Options tune Parse.
type Options struct {
	// MaxPerPage caps the accepted page sizes. Zero means no cap beyond
	// PageSizes.
	MaxPerPage int
	// Codec decodes the t parameter. A nil Codec rejects tokens.
	Codec *Codec
}

// Parse validates untrusted query parameters against t.
//
// When a t token is present its decoded parameters form the base and any
// explicit parameter overrides the token's value for that key. Every
// rejected parameter is reported in the returned *ValidationError.
func Parse(t *Table, params url.Values, opts Options) (State, error) {
	verr := &ValidationError{}
	merged := url.Values{}

	if tok := strings.TrimSpace(params.Get(ParamToken)); tok != "" {
		base, err := opts.Codec.Decode(t, tok)
		if err != nil {
			verr.add(ParamToken, ErrInvalidToken, "token is invalid or was issued for another table")
		} else {
			for k, v := range base {
				merged[k] = v
			}
		}
	}
	for k, v := range params {
		if k == ParamToken {
			continue
		}
		merged[k] = v
	}

	s := State{
		Page:    parsePage(merged.Get(ParamPage), verr),
		PerPage: parsePerPage(merged.Get(ParamPerPage), opts.MaxPerPage, verr),
		Sort:    t.DefaultSort,
		Order:   t.DefaultOrder,
	}

	if raw := strings.TrimSpace(merged.Get(ParamSort)); raw != "" {
		col, ok := t.Column(raw)
		switch {
		case !ok:
			verr.add(ParamSort, ErrUnknownColumn, "unknown column "+strconv.Quote(raw))
		case !col.Sortable:
			verr.add(ParamSort, ErrNotSortable, "column "+strconv.Quote(raw)+" cannot be sorted")
		default:
			s.Sort = col.ID
		}
	}

	if raw := strings.ToLower(strings.TrimSpace(merged.Get(ParamOrder))); raw != "" {
		switch Order(raw) {
		case Asc, Desc:
			s.Order = Order(raw)
		default:
			verr.add(ParamOrder, ErrInvalidOrder, "order must be asc or desc")
		}
	}

	if raw := normalize(merged.Get(ParamSearch)); raw != "" {
		switch {
		case utf8.RuneCountInString(raw) > MaxSearchRunes:
			verr.add(ParamSearch, ErrSearchTooLong, "search must be at most "+strconv.Itoa(MaxSearchRunes)+" characters")
		case len(t.searchable()) == 0:
			verr.add(ParamSearch, ErrInvalidFilter, "this table does not support search")
		default:
			s.Search = raw
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		if strings.HasPrefix(k, FilterPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		id := strings.TrimPrefix(key, FilterPrefix)
		col, ok := t.Column(id)
		if !ok {
			verr.add(key, ErrUnknownColumn, "unknown column "+strconv.Quote(id))
			continue
		}
		if !col.Filterable {
			verr.add(key, ErrNotFilterable, "column "+strconv.Quote(id)+" cannot be filtered")
			continue
		}
		raw := joinValues(merged[key])
		if raw == "" {
			continue
		}
		f, msg := parseFilter(col, raw)
		if msg != "" {
			verr.add(key, ErrInvalidFilter, msg)
			continue
		}
		s.Filters = append(s.Filters, f)
	}

	if !verr.empty() {
		return State{}, verr
	}
	return s, nil
}

// Defaults returns the state of an unfiltered first page of t.
func Defaults(t *Table) State {
	return State{Page: 1, PerPage: DefaultPerPage, Sort: t.DefaultSort, Order: t.DefaultOrder}
}

func parsePage(raw string, verr *ValidationError) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxPage {
		verr.add(ParamPage, ErrInvalidPage, "page must be a whole number of at least 1")
		return 1
	}
	return n
}

func parsePerPage(raw string, max int, verr *ValidationError) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPerPage
	}
	n, err := strconv.Atoi(raw)
	if err == nil && allowedPageSize(n, max) {
		return n
	}
	var allowed []string
	for _, size := range PageSizes {
		if allowedPageSize(size, max) {
			allowed = append(allowed, strconv.Itoa(size))
		}
	}
	verr.add(ParamPerPage, ErrInvalidPerPage, "per_page must be one of "+strings.Join(allowed, ", "))
	return DefaultPerPage
}

func allowedPageSize(n, max int) bool {
	if max > 0 && n > max {
		return false
	}
	for _, size := range PageSizes {
		if n == size {
			return true
		}
	}
	return false
}

// normalize trims and NFKC-folds user text so full-width and compatibility
// characters match their plain forms.
func normalize(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func joinValues(vs []string) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, valueSeparator)
}

func parseFilter(col Column, raw string) (Filter, string) {
	f := Filter{Column: col.ID}
	switch col.Type {
	case Text:
		v := normalize(raw)
		if utf8.RuneCountInString(v) > MaxSearchRunes {
			return f, "value must be at most " + strconv.Itoa(MaxSearchRunes) + " characters"
		}
		f.Values = []string{v}

	case Enum:
		seen := map[string]bool{}
		for _, part := range strings.Split(raw, valueSeparator) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			opt, ok := matchOption(col, part)
			if !ok {
				return f, strconv.Quote(part) + " is not one of " + strings.Join(col.Options, ", ")
			}
			if !seen[opt] {
				seen[opt] = true
				f.Values = append(f.Values, opt)
			}
		}
		if len(f.Values) == 0 {
			return f, "at least one value is required"
		}
		if len(f.Values) > maxFilterValues {
			return f, "too many values"
		}
		sort.Strings(f.Values)

	case Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return f, "value must be true or false"
		}
		f.Values = []string{strconv.FormatBool(b)}

	case Number:
		if from, to, ok := strings.Cut(raw, rangeSeparator); ok {
			lo, hi, msg := parseNumberRange(strings.TrimSpace(from), strings.TrimSpace(to))
			if msg != "" {
				return f, msg
			}
			f.Range, f.From, f.To = true, lo, hi
			return f, ""
		}
		n, ok := parseNumber(raw)
		if !ok {
			return f, "value must be a number"
		}
		f.Values = []string{n}

	case Date:
		if from, to, ok := strings.Cut(raw, rangeSeparator); ok {
			from, to = strings.TrimSpace(from), strings.TrimSpace(to)
			if from == "" && to == "" {
				return f, "range needs at least one bound"
			}
			var lo, hi time.Time
			var err error
			if from != "" {
				if lo, err = time.Parse(dateLayout, from); err != nil {
					return f, "dates must be formatted as YYYY-MM-DD"
				}
			}
			if to != "" {
				if hi, err = time.Parse(dateLayout, to); err != nil {
					return f, "dates must be formatted as YYYY-MM-DD"
				}
			}
			if from != "" && to != "" && lo.After(hi) {
				return f, "range start is after its end"
			}
			f.Range, f.From, f.To = true, from, to
			return f, ""
		}
		if _, err := time.Parse(dateLayout, raw); err != nil {
			return f, "dates must be formatted as YYYY-MM-DD"
		}
		f.Values = []string{raw}

	default:
		return f, "column type does not support filtering"
	}
	return f, ""
}

func matchOption(col Column, v string) (string, bool) {
	for _, o := range col.Options {
		if strings.EqualFold(o, v) {
			return o, true
		}
	}
	return "", false
}

func parseNumber(raw string) (string, bool) {
	n, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", false
	}
	return strconv.FormatFloat(n, 'f', -1, 64), true
}

func parseNumberRange(from, to string) (string, string, string) {
	if from == "" && to == "" {
		return "", "", "range needs at least one bound"
	}
	var lo, hi string
	var ok bool
	if from != "" {
		if lo, ok = parseNumber(from); !ok {
			return "", "", "range bounds must be numbers"
		}
	}
	if to != "" {
		if hi, ok = parseNumber(to); !ok {
			return "", "", "range bounds must be numbers"
		}
	}
	if lo != "" && hi != "" {
		a, _ := strconv.ParseFloat(lo, 64)
		b, _ := strconv.ParseFloat(hi, 64)
		if a > b {
			return "", "", "range start is after its end"
		}
	}
	return lo, hi, ""
}
