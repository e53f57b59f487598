package core

import (
	"sort"
	"strconv"
	"time"
)

// Column names as they appear in the uploaded spreadsheet.
const (
	ColGlobalProject = "globalProject"
	ColProjectName   = "projectName"
	ColDepartment    = "department"
	ColUser          = "user"
	ColDate          = "Date"
	ColMinutes       = "time (minutes)"

	// Derived at load time.
	ColHours = "time (hours)"
	// Virtual column: Date bucketed to YYYY-MM.
	ColMonth = "Month"
)

// NullText is what an empty text cell becomes once coerced to text.
const NullText = "nan"

var (
	// RequiredColumns must all be present in the header row of an upload.
	RequiredColumns = []string{ColGlobalProject, ColProjectName, ColDepartment, ColUser, ColDate, ColMinutes}

	// CategoricalColumns are filtered by multi-select, in this order.
	CategoricalColumns = []string{ColDepartment, ColGlobalProject, ColUser}
)

type (
	// Date is a calendar date. The zero value is the null date.
	Date struct {
		time.Time
	}

	// Record is one normalized row of the record table.
	Record struct {
		GlobalProject string
		ProjectName   string
		Department    string
		User          string
		Date          Date
		Minutes       float64
		Hours         float64
		// InvalidMinutes marks a minutes cell that did not parse. Minutes is 0.
		InvalidMinutes bool
		// Extra holds any non-required columns, already coerced to text.
		Extra map[string]string
	}

	// LoadWarnings counts recoverable problems found while normalizing.
	LoadWarnings struct {
		InvalidDates   int
		InvalidMinutes int
		SkippedRows    int
	}

	// Table is the normalized in-memory record table.
	Table struct {
		// Columns lists the schema in sheet order followed by ColHours.
		Columns  []string
		Records  []Record
		Warnings LoadWarnings
	}
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Valid reports whether the date is not null.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// MonthKey returns the YYYY-MM bucket for the date, or "NaT" for a null date.
func (d Date) MonthKey() string {
	if !d.Valid() {
		return "NaT"
	}
	return d.Format("2006-01")
}

func (d Date) String() string {
	if !d.Valid() {
		return "NaT"
	}
	return d.Format("2006-01-02")
}

// Before reports whether d is strictly before o. Null dates are never before anything.
func (d Date) Before(o Date) bool {
	return d.Valid() && o.Valid() && d.Time.Before(o.Time)
}

// After reports whether d is strictly after o. Null dates are never after anything.
func (d Date) After(o Date) bool {
	return d.Valid() && o.Valid() && d.Time.After(o.Time)
}

// HoursFromMinutes is the one place the hours column is derived.
func HoursFromMinutes(minutes float64) float64 {
	return minutes / 60
}

// HasColumn reports whether col is part of the table schema.
// ColMonth is accepted as a virtual column whenever ColDate is present.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return col == ColMonth && t.hasDate()
}

func (t *Table) hasDate() bool {
	for _, c := range t.Columns {
		if c == ColDate {
			return true
		}
	}
	return false
}

// Column validates col against the schema.
func (t *Table) Column(col string) (string, error) {
	if !t.HasColumn(col) {
		return "", &ColumnNotFoundError{Column: col, Available: append([]string(nil), t.Columns...)}
	}
	return col, nil
}

// CellText renders a record's cell for a known column name.
func CellText(r Record, col string) string {
	switch col {
	case ColGlobalProject:
		return r.GlobalProject
	case ColProjectName:
		return r.ProjectName
	case ColDepartment:
		return r.Department
	case ColUser:
		return r.User
	case ColDate:
		return r.Date.String()
	case ColMonth:
		return r.Date.MonthKey()
	case ColMinutes:
		return FormatNumber(r.Minutes)
	case ColHours:
		return FormatNumber(r.Hours)
	default:
		if v, ok := r.Extra[col]; ok {
			return v
		}
		return NullText
	}
}

// FormatNumber renders a float with the shortest exact representation.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DateBounds returns the smallest and largest non-null dates in the table.
func (t *Table) DateBounds() (first, last Date, ok bool) {
	for _, r := range t.Records {
		if !r.Date.Valid() {
			continue
		}
		if !ok {
			first, last, ok = r.Date, r.Date, true
			continue
		}
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last, ok
}

// Distinct returns the sorted distinct values of col across rows.
func Distinct(rows []Record, col string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		v := CellText(r, col)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// TotalHours sums the hours column over rows.
func TotalHours(rows []Record) float64 {
	var total float64
	for _, r := range rows {
		total += r.Hours
	}
	return total
}
