package sheets

import (
	"context"
	"time"

	"hoursboard/internal/core"
)

// Dimensions reported per upload.
const (
	DimensionDepartment = core.ColDepartment
	DimensionUser       = core.ColUser
)

// ReportRow is one line of the hours report sheet.
type ReportRow struct {
	UploadedAt  time.Time
	Filename    string
	Fingerprint string
	Dimension   string
	Key         string
	Hours       float64
}

// Values renders the row in sheet column order.
func (r ReportRow) Values() []any {
	return []any{
		r.UploadedAt.UTC().Format("2006-01-02 15:04:05"),
		r.Filename,
		r.Fingerprint,
		r.Dimension,
		r.Key,
		core.FormatHours(r.Hours),
	}
}

// ReportHeader names the report columns.
var ReportHeader = []any{"uploaded_at", "filename", "fingerprint", "dimension", "key", "hours"}

// Ports for outbound adapters.
type (
	// RowsReader reads a tab of a spreadsheet as a text matrix, header first.
	RowsReader interface {
		ReadRows(ctx context.Context, sheetName string) ([][]string, error)
	}

	// ReportWriter appends summary rows to the report tab.
	ReportWriter interface {
		AppendReport(ctx context.Context, rows []ReportRow) (rangeRef string, err error)
	}
)
