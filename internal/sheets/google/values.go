package google

import (
	"fmt"
	"strings"

	ports "hoursboard/internal/sheets"
)

// toRows converts an API values matrix to text, padding ragged rows to
// the header width.
func toRows(values [][]interface{}) [][]string {
	width := 0
	if len(values) > 0 {
		width = len(values[0])
	}
	out := make([][]string, 0, len(values))
	for _, row := range values {
		cols := toStrings(row)
		for len(cols) < width {
			cols = append(cols, "")
		}
		out = append(out, cols)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func reportValues(rows []ports.ReportRow, withHeader bool) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	if withHeader {
		values = append(values, ports.ReportHeader)
	}
	for _, r := range rows {
		values = append(values, r.Values())
	}
	return values
}

// quoteSheet quotes a tab name for A1 notation when it is not a plain word.
func quoteSheet(name string) string {
	if name == "" || strings.IndexFunc(name, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) == -1 {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
