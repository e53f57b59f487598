package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"hoursboard/internal/core"
	"hoursboard/internal/loader"
	"hoursboard/internal/log"
	"hoursboard/internal/middleware/ratelimit"
	"hoursboard/internal/middleware/security"
	"hoursboard/internal/middleware/trace"
	"hoursboard/internal/services"
	"hoursboard/internal/session"
	appweb "hoursboard/web"
)

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server to its collaborators.
type Options struct {
	Addr               string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	// ImportSheet is the default tab for Google Sheets imports.
	ImportSheet string

	Uploads   *services.UploadService
	Dashboard *services.DashboardService
	Sessions  *session.Store
	Loader    *loader.Loader
	// Backend is pinged by /readyz when set.
	Backend Pinger
	Logger  *log.Logger
}

type appMetrics struct {
	uploads    atomic.Int64
	failed     atomic.Int64
	chartViews atomic.Int64
	exports    atomic.Int64
	uptime     time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	uploads   *services.UploadService
	dashboard *services.DashboardService
	sessions  *session.Store
	loader    *loader.Loader
	backend   Pinger

	maxUploadBytes int64
	importSheet    string

	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, templates and the middleware chain.
func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = log.New(log.DefaultConfig())
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 20 << 20
	}
	logger := o.Logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		logger:           logger,
		uploads:          o.Uploads,
		dashboard:        o.Dashboard,
		sessions:         o.Sessions,
		loader:           o.Loader,
		backend:          o.Backend,
		maxUploadBytes:   o.MaxUploadBytes,
		importSheet:      o.ImportSheet,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		securityDetector: detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: o.RateLimitPerMinute,
			Methods:           []string{http.MethodPost},
		}),
		appMetrics: &appMetrics{uptime: time.Now()},
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/{$}", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/import/sheets", s.handleImportSheets)
	mux.HandleFunc("/uploads", s.handleUploads)
	mux.HandleFunc("/uploads/{fingerprint}/open", s.handleOpenUpload)

	mux.HandleFunc("/ui/dashboard", s.handleDashboard)
	mux.HandleFunc("/chart", s.handleChart)
	mux.HandleFunc("/chart.png", s.handleChartPNG)
	mux.HandleFunc("/export.csv", s.handleExportCSV)
	mux.HandleFunc("/api/summary", s.handleSummary)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = detector.Middleware(handler)
	handler = s.headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              o.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

var templateFuncs = template.FuncMap{
	"hours": core.FormatHours,
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again in a minute").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
