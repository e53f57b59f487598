package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"hoursboard/internal/core"
	"hoursboard/internal/log"
	"hoursboard/internal/services"
	"hoursboard/internal/session"
)

// errNoTable means the session has not loaded a spreadsheet yet.
var errNoTable = errors.New("no spreadsheet loaded")

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.backend != nil {
		if err := s.backend.Ping(ctx); err != nil {
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	} else {
		checks["storage"] = "memory"
	}

	if s.loader != nil {
		checks["table_cache"] = s.loader.Stats()
	}
	checks["sessions"] = s.sessions.Len()
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_errors_total", "counter", "Requests answered with a 5xx status", traceMetrics.ErrorRequests)
	metric("uploads_total", "counter", "Spreadsheets loaded through upload or import", s.appMetrics.uploads.Load())
	metric("uploads_failed_total", "counter", "Uploads rejected or failed to parse", s.appMetrics.failed.Load())
	metric("chart_renders_total", "counter", "Chart pages and images rendered", s.appMetrics.chartViews.Load())
	metric("csv_exports_total", "counter", "Filtered CSV exports", s.appMetrics.exports.Load())
	if s.loader != nil {
		stats := s.loader.Stats()
		metric("table_cache_hits_total", "counter", "Table cache hits", stats.Hits)
		metric("table_cache_misses_total", "counter", "Table cache misses", stats.Misses)
		metric("table_cache_entries", "gauge", "Tables currently cached", stats.Size)
		metric("table_parses_total", "counter", "Spreadsheets actually parsed", s.loader.Parses())
	}
	metric("sessions_active", "gauge", "Live dashboard sessions", s.sessions.Len())
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

type indexData struct {
	Filename       string
	HasTable       bool
	HistoryEnabled bool
	ImportEnabled  bool
	ImportSheet    string
	MaxUploadMB    int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := indexData{
		HistoryEnabled: s.uploads.HistoryEnabled(),
		ImportEnabled:  s.uploads.ImportEnabled(),
		ImportSheet:    s.importSheet,
		MaxUploadMB:    s.maxUploadBytes >> 20,
	}
	id := s.sessions.ID(w, r)
	if st, ok := s.sessions.Get(id); ok {
		data.Filename = st.Filename
		data.HasTable = true
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			log.FieldError, err, "template", "index.html")
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// currentTable resolves the table the session is looking at.
func (s *Server) currentTable(w http.ResponseWriter, r *http.Request) (session.State, *core.Table, error) {
	id := s.sessions.ID(w, r)
	st, ok := s.sessions.Get(id)
	if !ok || st.Fingerprint == "" {
		return session.State{}, nil, errNoTable
	}
	t, err := s.uploads.Table(r.Context(), st.Fingerprint)
	if errors.Is(err, services.ErrTableUnavailable) {
		s.sessions.Clear(id)
	}
	if err != nil {
		return st, nil, err
	}
	return st, t, nil
}

// activate points the session at a freshly loaded table.
func (s *Server) activate(w http.ResponseWriter, r *http.Request, l services.Loaded) {
	s.sessions.Set(s.sessions.ID(w, r), session.State{
		Fingerprint: l.Fingerprint,
		Filename:    l.Filename,
		LoadedAt:    time.Now().UTC(),
	})
}

// fail writes an error fragment and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
	errorResponse(status, msg).Write(w)
}
