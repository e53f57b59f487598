package services

import (
	"math"

	"hoursboard/internal/core"
)

// Summary is the exported form of a dashboard view, used by the JSON API
// and the CLI formatters.
type Summary struct {
	Title        string         `json:"title" yaml:"title"`
	Mode         string         `json:"mode" yaml:"mode"`
	Start        string         `json:"start" yaml:"start"`
	End          string         `json:"end" yaml:"end"`
	TotalRows    int            `json:"total_rows" yaml:"total_rows"`
	FilteredRows int            `json:"filtered_rows" yaml:"filtered_rows"`
	TotalHours   float64        `json:"total_hours" yaml:"total_hours"`
	Columns      []string       `json:"columns" yaml:"columns"`
	Groups       []SummaryGroup `json:"groups" yaml:"groups"`
}

// SummaryGroup is one aggregated row.
type SummaryGroup struct {
	Keys  []string `json:"keys" yaml:"keys"`
	Hours float64  `json:"hours" yaml:"hours"`
}

// NewSummary flattens a view. Hours are rounded to two decimals.
func NewSummary(v View) Summary {
	agg := v.Aggregation
	s := Summary{
		Title:        agg.Title,
		Mode:         string(agg.Mode),
		Start:        dateText(v.Filter.Start),
		End:          dateText(v.Filter.End),
		TotalRows:    v.TotalRows,
		FilteredRows: v.FilteredRows,
		TotalHours:   round2(v.TotalHours),
		Columns:      agg.Columns(),
		Groups:       make([]SummaryGroup, 0, len(agg.Groups)),
	}
	for _, g := range agg.Groups {
		s.Groups = append(s.Groups, SummaryGroup{Keys: g.Keys, Hours: round2(g.Hours)})
	}
	return s
}

// Rows renders the groups as text rows under Columns.
func (s Summary) Rows() [][]string {
	out := make([][]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		// When x == color the duplicated key is folded into one column.
		row := append([]string(nil), g.Keys[:len(s.Columns)-1]...)
		out = append(out, append(row, core.FormatHours(g.Hours)))
	}
	return out
}

func dateText(d core.Date) string {
	if !d.Valid() {
		return ""
	}
	return d.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
