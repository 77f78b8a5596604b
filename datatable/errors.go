package datatable

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidPage    = errors.New("invalid page")
	ErrInvalidPerPage = errors.New("invalid page size")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrNotSortable    = errors.New("column is not sortable")
	ErrNotFilterable  = errors.New("column is not filterable")
	ErrInvalidOrder   = errors.New("invalid sort order")
	ErrInvalidFilter  = errors.New("invalid filter value")
	ErrSearchTooLong  = errors.New("search term too long")
	ErrInvalidToken   = errors.New("invalid table token")
)

// ValidationError collects every rejected parameter of a table query.
// errors.Is matches each sentinel that caused a field to be rejected.
type ValidationError struct {
	Fields map[string]string
	errs   []error
}

func (e *ValidationError) add(field string, kind error, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, dup := e.Fields[field]; dup {
		return
	}
	e.Fields[field] = msg
	e.errs = append(e.errs, kind)
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("invalid table query")
	for i, k := range keys {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Fields[k])
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error { return e.errs }

// FieldErrors exposes the per-parameter messages to the HTTP layer.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }
