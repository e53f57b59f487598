package report

import (
	"encoding/csv"
	"io"

	"hoursboard/internal/services"
)

// CSVFormatter writes the aggregation as CSV with a header row.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, s services.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(s.Rows()); err != nil {
		return err
	}
	return cw.Error()
}
