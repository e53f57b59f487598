// Package report renders dashboard summaries for the command line.
package report

import (
	"fmt"
	"io"
	"strings"

	"hoursboard/internal/services"
)

// Formatter writes a summary in one output format.
type Formatter interface {
	Format(w io.Writer, s services.Summary) error
}

// Formats lists the accepted --output values.
var Formats = []string{"table", "csv", "json", "yaml"}

// NewFormatter returns the formatter for name. Empty selects the table.
func NewFormatter(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table":
		return NewTableFormatter(), nil
	case "csv":
		return NewCSVFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "yaml", "yml":
		return NewYAMLFormatter(), nil
	}
	return nil, fmt.Errorf("unknown output format %q: must be one of %s", name, strings.Join(Formats, ", "))
}
