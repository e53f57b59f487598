package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"hoursboard/internal/core"
)

// maxXLSRows bounds how many rows are read from a legacy workbook.
const maxXLSRows = 1_000_000

// Format is a supported spreadsheet container.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// DetectFormat picks the decoder from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, filepath.Ext(filename))
}

// Decode reads the first sheet of a spreadsheet into a row matrix.
func Decode(filename string, data []byte) ([][]string, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLS:
		return DecodeXLS(data)
	case FormatCSV:
		return DecodeCSV(bytes.NewReader(data))
	default:
		return DecodeXLSX(data)
	}
}

// DecodeXLSX reads the first worksheet of an Office Open XML workbook.
// Cells are read raw so that dates arrive as Excel serial numbers.
func DecodeXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("open xlsx: no worksheet found")
	}
	rows, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// DecodeXLS reads the first worksheet of a legacy BIFF workbook.
func DecodeXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		// the xls reader panics on some malformed streams
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("open xls: malformed workbook: %v", r)
		}
	}()

	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if workbook.NumSheets() == 0 {
		return nil, fmt.Errorf("open xls: no worksheet found")
	}
	return workbook.ReadAllCells(maxXLSRows), nil
}

// DecodeCSV reads comma separated rows. Ragged rows are accepted.
func DecodeCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(rows) == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		rows = append(rows, record)
	}
	return rows, nil
}
