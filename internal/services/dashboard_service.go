package services

import (
	"context"
	"fmt"

	"hoursboard/internal/core"
	"hoursboard/internal/log"
)

// PreviewLimit caps the rows shown in the filtered data table.
const PreviewLimit = 500

// Query is one dashboard interaction: the filter widgets and the chart controls.
type Query struct {
	Filter    core.Filter
	Aggregate core.AggregateRequest
}

// View is everything the dashboard displays for a query.
type View struct {
	Columns     []string
	Filter      core.FilterResult
	Aggregation core.Aggregation
	// Preview holds at most PreviewLimit filtered rows.
	Preview   []core.Record
	TotalRows int
	// FilteredRows is the number of rows passing the filter.
	FilteredRows int
	TotalHours   float64
}

// Truncated reports whether the preview omits rows.
func (v View) Truncated() bool {
	return len(v.Preview) < v.FilteredRows
}

// DashboardService runs the filter and aggregation stages over a table.
type DashboardService struct {
	logger *log.Logger
}

func NewDashboardService(logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DashboardService{logger: logger.WithComponent(log.ComponentDashboard)}
}

// Build filters t and aggregates the remaining rows.
func (s *DashboardService) Build(ctx context.Context, t *core.Table, q Query) (View, error) {
	res, err := q.Filter.Apply(t)
	if err != nil {
		return View{}, fmt.Errorf("filter: %w", err)
	}
	agg, err := core.Aggregate(t, res.Rows, q.Aggregate)
	if err != nil {
		return View{}, fmt.Errorf("aggregate: %w", err)
	}

	preview := res.Rows
	if len(preview) > PreviewLimit {
		preview = preview[:PreviewLimit]
	}

	s.logger.DebugContext(ctx, "Dashboard built",
		log.FieldRows, len(t.Records),
		log.FieldFilteredRows, len(res.Rows),
		log.FieldChartKind, string(agg.Mode),
		log.FieldXColumn, agg.XColumn,
		log.FieldColorColumn, agg.ColorColumn)

	return View{
		Columns:      t.Columns,
		Filter:       res,
		Aggregation:  agg,
		Preview:      preview,
		TotalRows:    len(t.Records),
		FilteredRows: len(res.Rows),
		TotalHours:   agg.TotalHours,
	}, nil
}

// Summary builds the serializable form of a dashboard query.
func (s *DashboardService) Summary(ctx context.Context, t *core.Table, q Query) (Summary, error) {
	v, err := s.Build(ctx, t, q)
	if err != nil {
		return Summary{}, err
	}
	return NewSummary(v), nil
}
