package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyFile         = errors.New("spreadsheet has no data rows")
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrUnknownChartMode  = errors.New("unknown chart mode")
)

// SchemaError reports required columns missing from an upload.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ColumnNotFoundError reports a column name that is not part of the table schema.
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}
