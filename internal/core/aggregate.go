package core

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ChartMode selects the aggregation shape and the chart drawn from it.
type ChartMode string

const (
	ModePie        ChartMode = "pie"
	ModeBar        ChartMode = "bar"
	ModeGroupedBar ChartMode = "grouped-bar"
)

// ChartModes lists the supported modes in display order.
var ChartModes = []ChartMode{ModePie, ModeBar, ModeGroupedBar}

// ParseChartMode accepts a mode name; empty defaults to ModePie.
func ParseChartMode(s string) (ChartMode, error) {
	switch ChartMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModePie, nil
	case ModePie:
		return ModePie, nil
	case ModeBar:
		return ModeBar, nil
	case ModeGroupedBar, "grouped", "grouped_bar":
		return ModeGroupedBar, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChartMode, s)
}

// Label is the human name of the mode.
func (m ChartMode) Label() string {
	switch m {
	case ModeBar:
		return "Bar Plot"
	case ModeGroupedBar:
		return "Grouped Bar Plot"
	default:
		return "Pie Chart"
	}
}

// AggregateRequest names the grouping columns. X is the pie slice / bar axis
// column, Color the second grouping column, used only by ModeGroupedBar.
// Empty names default to the first schema column.
type AggregateRequest struct {
	Mode  ChartMode
	X     string
	Color string
}

// Group is one distinct key combination and the hours summed over it.
type Group struct {
	Keys  []string
	Hours float64
}

// Aggregation is the grouped table handed to a chart renderer.
type Aggregation struct {
	Mode ChartMode
	// XColumn and ColorColumn are the effective grouping columns, after Date
	// was bucketed to Month. ColorColumn is empty unless Mode is ModeGroupedBar.
	XColumn     string
	ColorColumn string
	ValueColumn string
	Groups      []Group
	TotalHours  float64
	Title       string
}

// Columns returns the output column list: the distinct grouping columns
// followed by the value column.
func (a Aggregation) Columns() []string {
	cols := []string{a.XColumn}
	if a.ColorColumn != "" && a.ColorColumn != a.XColumn {
		cols = append(cols, a.ColorColumn)
	}
	return append(cols, a.ValueColumn)
}

// Sum adds up the hours of every group.
func (a Aggregation) Sum() float64 {
	var s float64
	for _, g := range a.Groups {
		s += g.Hours
	}
	return s
}

// Empty reports whether there is nothing to plot.
func (a Aggregation) Empty() bool {
	return len(a.Groups) == 0
}

// XKeys returns the distinct first keys in group order.
func (a Aggregation) XKeys() []string {
	return a.distinctKeys(0)
}

// ColorKeys returns the distinct second keys, sorted. Nil unless grouped.
func (a Aggregation) ColorKeys() []string {
	if a.ColorColumn == "" {
		return nil
	}
	keys := a.distinctKeys(1)
	sort.Strings(keys)
	return keys
}

// Lookup returns the hours for an (x, color) pair in a grouped aggregation.
func (a Aggregation) Lookup(x, color string) (float64, bool) {
	for _, g := range a.Groups {
		if len(g.Keys) == 2 && g.Keys[0] == x && g.Keys[1] == color {
			return g.Hours, true
		}
	}
	return 0, false
}

func (a Aggregation) distinctKeys(i int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range a.Groups {
		if i >= len(g.Keys) {
			continue
		}
		k := g.Keys[i]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// GroupingColumn maps a selected column to the column actually grouped on.
func GroupingColumn(col string) string {
	if col == ColDate {
		return ColMonth
	}
	return col
}

// Aggregate groups rows by the requested columns and sums their hours.
// rows must come from t, typically through Filter.Apply.
func Aggregate(t *Table, rows []Record, req AggregateRequest) (Aggregation, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModePie
	}
	switch mode {
	case ModePie, ModeBar, ModeGroupedBar:
	default:
		return Aggregation{}, fmt.Errorf("%w: %q", ErrUnknownChartMode, mode)
	}

	x, err := t.Column(defaultColumn(t, req.X))
	if err != nil {
		return Aggregation{}, err
	}
	agg := Aggregation{
		Mode:        mode,
		XColumn:     GroupingColumn(x),
		ValueColumn: ColHours,
		TotalHours:  TotalHours(rows),
	}

	cols := []string{agg.XColumn}
	if mode == ModeGroupedBar {
		color, err := t.Column(defaultColumn(t, req.Color))
		if err != nil {
			return Aggregation{}, err
		}
		agg.ColorColumn = GroupingColumn(color)
		cols = append(cols, agg.ColorColumn)
	}

	byMinutes := slices.Contains(cols, ColMinutes) || slices.Contains(cols, ColHours)
	index := make(map[string]int)
	for _, r := range rows {
		// An unparsed minutes cell has no value to group on.
		if byMinutes && r.InvalidMinutes {
			continue
		}
		keys := make([]string, len(cols))
		for i, c := range cols {
			keys[i] = CellText(r, c)
		}
		id := strings.Join(keys, "\x00")
		if i, ok := index[id]; ok {
			agg.Groups[i].Hours += r.Hours
			continue
		}
		index[id] = len(agg.Groups)
		agg.Groups = append(agg.Groups, Group{Keys: keys, Hours: r.Hours})
	}
	sort.Slice(agg.Groups, func(i, j int) bool {
		return lessKeys(agg.Groups[i].Keys, agg.Groups[j].Keys)
	})

	agg.Title = Title(agg)
	return agg, nil
}

// Title builds the chart heading with the headline total embedded.
func Title(a Aggregation) string {
	if a.Mode == ModeGroupedBar {
		return fmt.Sprintf("Total Hours by %s and %s (Total: %s hours)", a.XColumn, a.ColorColumn, FormatHours(a.TotalHours))
	}
	return fmt.Sprintf("Total Hours by %s (Total: %s hours)", a.XColumn, FormatHours(a.TotalHours))
}

// FormatHours renders hours with two decimals, as shown in headlines.
func FormatHours(h float64) string {
	return fmt.Sprintf("%.2f", h)
}

func defaultColumn(t *Table, col string) string {
	if col != "" || len(t.Columns) == 0 {
		return col
	}
	return t.Columns[0]
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
