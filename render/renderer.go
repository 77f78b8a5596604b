// Package render draws the server-side HTML pages from embedded templates.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/model"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static serves the embedded stylesheet and script under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Theme cookie values.
const (
	ThemeCookie = "theme"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// View is the data every page template receives.
type View struct {
	Title     string
	Nav       string
	User      *model.User
	Tenant    *tenant.Tenant
	Companies []model.Company
	Theme     string
	Error     string
	Notice    string
	Data      any
}

// Renderer holds one parsed template set per page, each combining the
// layout, the shared partials and the page itself.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page template. Files starting with "_" are partials.
func New() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS, "templates/layout.html", "templates/_*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	rd := &Renderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := path.Base(file)
		if name == "layout.html" || strings.HasPrefix(name, "_") {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		rd.pages[strings.TrimSuffix(name, ".html")] = t
	}
	return rd, nil
}

// HTML renders page into a buffer first, so template errors turn into a
// plain 500 instead of half a page.
func (rd *Renderer) HTML(w http.ResponseWriter, status int, page string, v *View) {
	t, ok := rd.pages[page]
	if !ok {
		zap.L().Error("unknown page template", zap.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", v); err != nil {
		zap.L().Error("rendering page", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Funcs are the helpers available in templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"comma":    func(n any) string { return humanize.Comma(cast.ToInt64(n)) },
		"money":    Money,
		"ago":      Ago,
		"datetime": DateTime,
		"lower":    strings.ToLower,
		"can": func(t *tenant.Tenant, role string) bool {
			return t.Can(role)
		},
	}
}

// Money formats minor currency units with thousands separators and two
// decimals.
func Money(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(minor/100), minor%100)
}

func Ago(t time.Time) string { return humanize.Time(t) }

// DateTime formats t in UTC to the minute.
func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
