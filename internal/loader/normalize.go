package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"hoursboard/internal/core"
)

// Excel serial dates outside this range are not treated as dates.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"20060102",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// BuildTable turns a decoded text row matrix, header row first, into a
// record table. Numeric date cells are not dates here.
func BuildTable(rows [][]string) (*core.Table, error) {
	return buildTable(rows, ParseDate)
}

// BuildWorkbookTable is BuildTable for xlsx and xls rows, where a numeric
// date cell is an Excel serial.
func BuildWorkbookTable(rows [][]string) (*core.Table, error) {
	return buildTable(rows, ParseWorkbookDate)
}

func buildFor(format Format, rows [][]string) (*core.Table, error) {
	if format == FormatXLSX || format == FormatXLS {
		return BuildWorkbookTable(rows)
	}
	return BuildTable(rows)
}

func buildTable(rows [][]string, parseDate func(string) (core.Date, bool)) (*core.Table, error) {
	header, body := splitHeader(rows)
	if header == nil {
		return nil, core.ErrEmptyFile
	}

	names := headerNames(header)
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; !dup {
			index[n] = i
		}
	}

	var missing []string
	for _, col := range core.RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &core.SchemaError{Missing: missing}
	}

	columns := append([]string{}, names...)
	if _, ok := index[core.ColHours]; !ok {
		columns = append(columns, core.ColHours)
	}
	table := &core.Table{Columns: columns}
	extra := extraColumns(names)

	for _, raw := range body {
		if blankRow(raw) {
			table.Warnings.SkippedRows++
			continue
		}
		cell := func(col string) string {
			i := index[col]
			if i >= len(raw) {
				return ""
			}
			return strings.TrimSpace(raw[i])
		}

		rec := core.Record{
			GlobalProject: strings.ToUpper(textCell(cell(core.ColGlobalProject))),
			ProjectName:   strings.ToUpper(textCell(cell(core.ColProjectName))),
			Department:    textCell(cell(core.ColDepartment)),
			User:          textCell(cell(core.ColUser)),
		}

		if d, ok := parseDate(cell(core.ColDate)); ok {
			rec.Date = d
		} else {
			table.Warnings.InvalidDates++
		}

		if m, ok := ParseMinutes(cell(core.ColMinutes)); ok {
			rec.Minutes = m
		} else {
			rec.InvalidMinutes = true
			table.Warnings.InvalidMinutes++
		}
		rec.Hours = core.HoursFromMinutes(rec.Minutes)

		if len(extra) > 0 {
			rec.Extra = make(map[string]string, len(extra))
			for _, e := range extra {
				v := ""
				if e.index < len(raw) {
					v = strings.TrimSpace(raw[e.index])
				}
				rec.Extra[e.name] = textCell(v)
			}
		}
		table.Records = append(table.Records, rec)
	}

	if len(table.Records) == 0 {
		return nil, core.ErrEmptyFile
	}
	return table, nil
}

// ParseWorkbookDate is ParseDate that also reads Excel serial numbers.
// Numbers outside the serial range fall back to the text layouts.
func ParseWorkbookDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return core.Date{}, false
		}
		return core.DateOf(t), true
	}
	return ParseDate(s)
}

// ParseDate accepts the common textual layouts.
func ParseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, core.NullText) || s == "NaT" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return core.Date{}, false
}

// ParseMinutes parses a numeric cell. A single comma is read as a decimal separator.
func ParseMinutes(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func textCell(s string) string {
	if s == "" {
		return core.NullText
	}
	return s
}

func splitHeader(rows [][]string) ([]string, [][]string) {
	for i, r := range rows {
		if !blankRow(r) {
			return r, rows[i+1:]
		}
	}
	return nil, nil
}

// headerNames trims names, names blank headers "Unnamed: <i>" and
// suffixes duplicates with .1, .2, ...
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

type extraColumn struct {
	name  string
	index int
}

func extraColumns(names []string) []extraColumn {
	required := make(map[string]struct{}, len(core.RequiredColumns)+1)
	for _, c := range core.RequiredColumns {
		required[c] = struct{}{}
	}
	required[core.ColHours] = struct{}{}

	var out []extraColumn
	seen := make(map[string]struct{})
	for i, n := range names {
		if _, ok := required[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, extraColumn{name: n, index: i})
	}
	return out
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
