package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"html/template"
	"net/http"

	"hoursboard/internal/chart"
	"hoursboard/internal/core"
	"hoursboard/internal/log"
	"hoursboard/internal/services"
)

// PNG size bounds for /chart.png.
const (
	minPNGSize = 200
	maxPNGSize = 4000
)

var filterLabels = map[string]string{
	core.ColDepartment:    "Department",
	core.ColGlobalProject: "Global Project",
	core.ColUser:          "User",
}

type filterOption struct {
	Value    string
	Selected bool
}

type filterWidget struct {
	Column      string
	Label       string
	NoneName    string
	OfferedName string
	Options     []filterOption
	// Cleared is true when the user deselected every value.
	Cleared bool
}

type modeOption struct {
	Value    core.ChartMode
	Label    string
	Selected bool
}

type dashboardData struct {
	Filename string
	Start    string
	End      string
	MinDate  string
	MaxDate  string
	Filters  []filterWidget

	Modes     []modeOption
	Columns   []string
	X         string
	Color     string
	ShowColor bool

	Title      string
	TotalHours float64

	TableColumns []string
	Rows         [][]string
	Shown        int
	Filtered     int
	TotalRows    int
	Truncated    bool

	ChartSrc    template.URL
	PNGHref     template.URL
	CSVHref     template.URL
	SummaryHref template.URL
}

// viewFor parses the query and runs the pipeline for the session's table.
func (s *Server) viewFor(w http.ResponseWriter, r *http.Request) (string, *core.Table, services.Query, services.View, error) {
	q, err := ParseDashboardQuery(r.URL.Query())
	if err != nil {
		return "", nil, q, services.View{}, err
	}
	st, t, err := s.currentTable(w, r)
	if err != nil {
		return "", nil, q, services.View{}, err
	}
	v, err := s.dashboard.Build(r.Context(), t, q)
	if err != nil {
		return "", nil, q, services.View{}, err
	}
	return st.Filename, t, q, v, nil
}

// handleDashboard renders filters, headline, data table and chart frame.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	filename, t, q, v, err := s.viewFor(w, r)
	if errors.Is(err, errNoTable) || errors.Is(err, services.ErrTableUnavailable) {
		_, msg := errorStatus(err)
		s.render(w, r, "empty.html", struct{ Message string }{msg})
		return
	}
	if err != nil {
		s.fail(w, r, log.OpFilter, err)
		return
	}
	s.render(w, r, "dashboard.html", newDashboardData(filename, t, q, v))
}

func newDashboardData(filename string, t *core.Table, q services.Query, v services.View) dashboardData {
	d := dashboardData{
		Filename:     filename,
		Start:        dateValue(v.Filter.Start),
		End:          dateValue(v.Filter.End),
		Columns:      t.Columns,
		Title:        v.Aggregation.Title,
		TotalHours:   v.TotalHours,
		TableColumns: v.Columns,
		Shown:        len(v.Preview),
		Filtered:     v.FilteredRows,
		TotalRows:    v.TotalRows,
		Truncated:    v.Truncated(),
		ShowColor:    v.Aggregation.Mode == core.ModeGroupedBar,
	}
	if first, last, ok := t.DateBounds(); ok {
		d.MinDate, d.MaxDate = first.String(), last.String()
	}

	for _, col := range core.CategoricalColumns {
		effective := make(map[string]struct{}, len(v.Filter.Effective[col]))
		for _, e := range v.Filter.Effective[col] {
			effective[e] = struct{}{}
		}
		wdg := filterWidget{
			Column:   col,
			Label:    filterLabels[col],
			NoneName:    col + noneSuffix,
			OfferedName: col + offeredSuffix,
			Cleared:     len(effective) == 0,
		}
		for _, o := range v.Filter.Options[col] {
			_, sel := effective[o]
			wdg.Options = append(wdg.Options, filterOption{Value: o, Selected: sel})
		}
		d.Filters = append(d.Filters, wdg)
	}

	for _, m := range core.ChartModes {
		d.Modes = append(d.Modes, modeOption{Value: m, Label: m.Label(), Selected: m == v.Aggregation.Mode})
	}
	d.X = q.Aggregate.X
	d.Color = q.Aggregate.Color
	if len(t.Columns) > 0 {
		if d.X == "" {
			d.X = t.Columns[0]
		}
		if d.Color == "" {
			d.Color = t.Columns[0]
		}
	}

	for _, rec := range v.Preview {
		row := make([]string, len(v.Columns))
		for i, col := range v.Columns {
			row[i] = core.CellText(rec, col)
		}
		d.Rows = append(d.Rows, row)
	}

	enc := EncodeDashboardQuery(ResolvedQuery(q, v.Filter)).Encode()
	d.ChartSrc = template.URL("/chart?" + enc)
	d.PNGHref = template.URL("/chart.png?" + enc)
	d.CSVHref = template.URL("/export.csv?" + enc)
	d.SummaryHref = template.URL("/api/summary?" + enc)
	return d
}

func dateValue(d core.Date) string {
	if !d.Valid() {
		return ""
	}
	return d.String()
}

const chartKindHeader = "X-Chart-Kind"

// handleChart serves the standalone echarts page shown in the dashboard frame.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	_, _, _, v, err := s.viewFor(w, r)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}

	var buf bytes.Buffer
	if err := chart.RenderHTML(&buf, v.Aggregation, chart.HTMLOptions{PageTitle: v.Aggregation.Title}); err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	s.appMetrics.chartViews.Add(1)
	w.Header().Set(chartKindHeader, chart.Kind(v.Aggregation))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// handleChartPNG serves a static image of the current chart.
func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	_, _, _, v, err := s.viewFor(w, r)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	q := r.URL.Query()
	width := parseDimension(q, "width", chart.DefaultPNGWidth, minPNGSize, maxPNGSize)
	height := parseDimension(q, "height", chart.DefaultPNGHeight, minPNGSize, maxPNGSize)

	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, v.Aggregation, width, height); err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	s.appMetrics.chartViews.Add(1)
	w.Header().Set(chartKindHeader, chart.Kind(v.Aggregation))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="hours-chart.png"`)
	_, _ = buf.WriteTo(w)
}

// handleExportCSV streams every filtered row, not just the preview.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	_, _, _, v, err := s.viewFor(w, r)
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="filtered-hours.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(v.Columns)
	row := make([]string, len(v.Columns))
	for _, rec := range v.Filter.Rows {
		for i, col := range v.Columns {
			row[i] = core.CellText(rec, col)
		}
		if err := cw.Write(row); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "CSV export interrupted", log.FieldError, err)
			return
		}
	}
	cw.Flush()
	s.appMetrics.exports.Add(1)
}

// handleSummary returns the headline and aggregated rows as JSON.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	_, _, _, v, err := s.viewFor(w, r)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Summary failed", err, log.ComponentHTTP, log.OpAggregate, nil)
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, services.NewSummary(v))
}

// render executes a template into a buffer so failures never send half a page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		InternalServerError("Render failed").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
