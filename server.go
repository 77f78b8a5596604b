package main

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
	"github.com/danielzuhad/stocking-app-sub001/auth"
	"github.com/danielzuhad/stocking-app-sub001/config"
	"github.com/danielzuhad/stocking-app-sub001/datatable"
	"github.com/danielzuhad/stocking-app-sub001/imagekit"
	"github.com/danielzuhad/stocking-app-sub001/render"
	"github.com/danielzuhad/stocking-app-sub001/respond"
	"github.com/danielzuhad/stocking-app-sub001/tenant"
	"github.com/danielzuhad/stocking-app-sub001/web"
)

const requestIDHeader = "X-Request-ID"

// App is everything the routes need.
type App struct {
	DB       *sqlx.DB
	Auth     *auth.Authenticator
	Tenants  *tenant.Resolver
	Pages    *web.Pages
	Tables   datatable.Options
	Signer   *imagekit.Signer
	Clock    clock.Clock
	Registry *prometheus.Registry

	metrics *httpMetrics
}

func newApp(cfg config.Config, db *sqlx.DB, clk clock.Clock) (*App, error) {
	codec, err := datatable.NewCodec(cfg.Table.Secret)
	if err != nil {
		return nil, err
	}
	if !codec.Enabled() {
		zap.L().Warn("table.secret is empty, table links carry plain query parameters")
	}
	rd, err := render.New()
	if err != nil {
		return nil, err
	}

	tables := datatable.Options{MaxPerPage: cfg.Table.MaxPerPage, Codec: codec}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{
		DB: db,
		Auth: &auth.Authenticator{
			Sessions:     auth.NewSessionService(db, cfg.Session.TTL, clk),
			Limiter:      auth.NewLoginLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst, clk),
			CookieName:   cfg.Session.CookieName,
			SecureCookie: cfg.Session.SecureCookie,
		},
		Tenants: &tenant.Resolver{DB: db, SecureCookie: cfg.Session.SecureCookie},
		Pages: &web.Pages{
			DB:           db,
			Render:       rd,
			Tables:       tables,
			Clock:        clk,
			SecureCookie: cfg.Session.SecureCookie,
		},
		Tables:   tables,
		Signer:   imagekit.NewSigner(cfg.ImageKit, clk),
		Clock:    clk,
		Registry: reg,
		metrics:  newHTTPMetrics(reg),
	}, nil
}

// Handler returns the routed mux wrapped in the shared middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	SetupRoutes(mux, a)

	var h http.Handler = mux
	h = gziphandler.GzipHandler(h)
	h = a.metrics.middleware(h)
	h = recoverer(h)
	h = accessLog(h)
	return h
}

type statusResponseWriter struct {
	statusCode    int
	responseBytes int
	http.ResponseWriter
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{ResponseWriter: w}
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	if w.statusCode == 0 {
		w.statusCode = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.responseBytes += n
	return n, err
}

func (w *statusResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Code returns the written status, 200 when the handler never set one.
func (w *statusResponseWriter) Code() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *statusResponseWriter) statusCodeClass() string {
	switch w.Code() / 100 {
	case 1:
		return "1XX"
	case 2:
		return "2XX"
	case 3:
		return "3XX"
	case 4:
		return "4XX"
	case 5:
		return "5XX"
	}
	return "XXX"
}

// accessLog tags every request with an id and logs it once it is served.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		srw := newStatusResponseWriter(w)

		defer func(start time.Time) {
			zap.L().Info("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status_code", srw.Code()),
				zap.Int("response_size", srw.responseBytes),
				zap.String("remote", auth.ClientIP(r)),
				zap.Duration("took", time.Since(start)),
			)
		}(time.Now())

		next.ServeHTTP(srw, r)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				zap.L().Error("handler panicked", zap.String("path", r.URL.Path), zap.Any("panic", v), zap.Stack("stack"))
				respond.Error(w, r, apperr.New(apperr.EInternal, fmt.Sprint(v)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	labels := []string{"method", "path", "status", "response_code"}
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockly",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests served.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stockly",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time taken to serve HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statusW := newStatusResponseWriter(w)
		defer func(start time.Time) {
			// only 2XX and 5XX responses are reported
			code := statusW.Code()
			if !(code >= 200 && code <= 299) && !(code >= 500 && code <= 599) {
				return
			}
			label := prometheus.Labels{
				"method":        r.Method,
				"path":          normalizePath(r.URL.Path),
				"status":        statusW.statusCodeClass(),
				"response_code": fmt.Sprintf("%d", code),
			}
			m.duration.With(label).Observe(time.Since(start).Seconds())
			m.requests.With(label).Inc()
		}(time.Now())

		next.ServeHTTP(statusW, r)
	})
}

// normalizePath replaces ids and other per-record segments with a slug so
// metric labels stay bounded.
func normalizePath(p string) string {
	parts := strings.Split(strings.Trim(path.Clean("/"+p), "/"), "/")
	for i := 0; i < len(parts); i++ {
		if i == 0 {
			continue
		}
		switch prev := parts[i-1]; {
		case prev == "static":
			return "/" + path.Join(append(parts[:i], ":file_name")...)
		case prev == "sku":
			parts[i] = ":sku"
		case len(parts[i]) == 36:
			if _, err := uuid.Parse(parts[i]); err == nil {
				parts[i] = ":id"
			}
		}
	}
	return "/" + path.Join(parts...)
}
