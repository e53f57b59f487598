package core

// Filter selects rows by an inclusive date range and per-column value sets.
//
// A zero Start or End falls back to the smallest / largest date in the table.
// Selected maps a categorical column to its chosen values: a column absent from the
// map keeps every observed value, a column present with no values keeps no rows.
//
// Offered records, per column, the options the previous view showed. Options
// that were not offered then are selected on arrival, so a value hidden by an
// upstream filter comes back selected once that filter widens. Cleared
// columns stay cleared.
type Filter struct {
	Start    Date
	End      Date
	Selected map[string][]string
	Offered  map[string][]string
}

// FilterResult is the filtered view of a table together with what the
// filter widgets should offer next.
type FilterResult struct {
	Rows  []Record
	Start Date
	End   Date
	// Options holds, per categorical column, the values observed after the
	// preceding filters were applied.
	Options map[string][]string
	// Effective holds, per categorical column, the selection actually applied
	// once values outside Options were dropped.
	Effective map[string][]string
}

// SelectNone restricts col to no values at all.
func (f *Filter) SelectNone(col string) {
	f.Select(col)
}

// Select restricts col to the given values.
func (f *Filter) Select(col string, values ...string) {
	if f.Selected == nil {
		f.Selected = make(map[string][]string)
	}
	f.Selected[col] = append([]string{}, values...)
}

// Offer records the options col showed when its selection was made.
func (f *Filter) Offer(col string, values ...string) {
	if f.Offered == nil {
		f.Offered = make(map[string][]string)
	}
	f.Offered[col] = append([]string{}, values...)
}

// Apply runs the filter against t. Categorical columns are applied in
// CategoricalColumns order, each one offering only the values left by the
// ones before it.
func (f Filter) Apply(t *Table) (FilterResult, error) {
	for col := range f.Selected {
		if _, err := t.Column(col); err != nil {
			return FilterResult{}, err
		}
	}

	res := FilterResult{
		Start:     f.Start,
		End:       f.End,
		Options:   make(map[string][]string, len(CategoricalColumns)),
		Effective: make(map[string][]string, len(CategoricalColumns)),
	}
	first, last, _ := t.DateBounds()
	if !res.Start.Valid() {
		res.Start = first
	}
	if !res.End.Valid() {
		res.End = last
	}

	rows := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		if InRange(r.Date, res.Start, res.End) {
			rows = append(rows, r)
		}
	}

	for _, col := range CategoricalColumns {
		options := Distinct(rows, col)
		res.Options[col] = options

		selected, restricted := f.Selected[col]
		if !restricted {
			res.Effective[col] = options
			continue
		}
		keep := intersect(selected, options)
		if offered, ok := f.Offered[col]; ok && len(selected) > 0 {
			keep = append(keep, arrived(options, offered, keep)...)
		}
		res.Effective[col] = keep
		rows = keepValues(rows, col, keep)
	}

	res.Rows = rows
	return res, nil
}

// InRange reports whether d lies in [start, end]. A null date, or a null
// bound, never satisfies the comparison.
func InRange(d, start, end Date) bool {
	if !d.Valid() || !start.Valid() || !end.Valid() {
		return false
	}
	return !d.Before(start) && !d.After(end)
}

func intersect(selected, options []string) []string {
	allowed := make(map[string]struct{}, len(options))
	for _, o := range options {
		allowed[o] = struct{}{}
	}
	out := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		if _, ok := allowed[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// arrived returns the options that were neither offered before nor kept.
func arrived(options, offered, kept []string) []string {
	known := make(map[string]struct{}, len(offered)+len(kept))
	for _, o := range offered {
		known[o] = struct{}{}
	}
	for _, k := range kept {
		known[k] = struct{}{}
	}
	var out []string
	for _, o := range options {
		if _, ok := known[o]; !ok {
			out = append(out, o)
		}
	}
	return out
}

func keepValues(rows []Record, col string, values []string) []Record {
	if len(values) == 0 {
		return rows[:0:0]
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if _, ok := set[CellText(r, col)]; ok {
			out = append(out, r)
		}
	}
	return out
}
