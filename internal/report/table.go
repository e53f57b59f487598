package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"hoursboard/internal/core"
	"hoursboard/internal/services"
)

// TableFormatter prints an aligned text table under the headline total.
type TableFormatter struct{}

func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

func (f *TableFormatter) Format(w io.Writer, s services.Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Hours: %s\n", core.FormatHours(s.TotalHours))
	fmt.Fprintf(&b, "%s\n", s.Title)
	if s.Start != "" || s.End != "" {
		fmt.Fprintf(&b, "Period: %s to %s\n", s.Start, s.End)
	}
	fmt.Fprintf(&b, "Rows: %d of %d\n\n", s.FilteredRows, s.TotalRows)

	rows := s.Rows()
	if len(rows) == 0 {
		b.WriteString("No data for the selected filters.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	widths := columnWidths(s.Columns, rows)
	writeBorder(&b, widths)
	writeRow(&b, s.Columns, widths, len(s.Columns)-1)
	writeBorder(&b, widths)
	for _, r := range rows {
		writeRow(&b, r, widths, len(r)-1)
	}
	writeBorder(&b, widths)

	_, err := io.WriteString(w, b.String())
	return err
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(c))
			}
		}
	}
	return widths
}

// writeRow left-aligns text cells and right-aligns the cell at index numeric.
func writeRow(b *strings.Builder, cells []string, widths []int, numeric int) {
	b.WriteString("|")
	for i, wd := range widths {
		var c string
		if i < len(cells) {
			c = cells[i]
		}
		if i == numeric {
			c = runewidth.FillLeft(c, wd)
		} else {
			c = runewidth.FillRight(c, wd)
		}
		b.WriteString(" " + c + " |")
	}
	b.WriteString("\n")
}

func writeBorder(b *strings.Builder, widths []int) {
	b.WriteString("+")
	for _, wd := range widths {
		b.WriteString(strings.Repeat("-", wd+2) + "+")
	}
	b.WriteString("\n")
}
