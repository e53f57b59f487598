package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "hoursboard/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportSheet   string
}

// Ensure interface conformance
var (
	_ ports.RowsReader   = (*Client)(nil)
	_ ports.ReportWriter = (*Client)(nil)
)

// Options identify the spreadsheet and the service account used to reach it.
type Options struct {
	SpreadsheetID   string
	ReportSheet     string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, o Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(o.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	reportSheet := strings.TrimSpace(o.ReportSheet)
	if reportSheet == "" {
		reportSheet = "Reports"
	}

	creds, err := credentials(ctx, o)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"report_sheet", reportSheet)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, reportSheet: reportSheet}, nil
}

// credentials resolves inline JSON, then a file, then GOOGLE_APPLICATION_CREDENTIALS.
func credentials(ctx context.Context, o Options) ([]byte, error) {
	inline := strings.TrimSpace(o.CredentialsJSON)
	file := strings.TrimSpace(o.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account file", "path", file, "size", len(data))
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// ReadRows returns the formatted values of a whole tab.
func (c *Client) ReadRows(ctx context.Context, sheetName string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("sheet name is required")
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(sheetName)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheetName, err)
	}
	return toRows(resp.Values), nil
}

// AppendReport appends rows to the report tab, writing the header first
// when the tab is empty.
func (c *Client) AppendReport(ctx context.Context, rows []ports.ReportRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", nil
	}

	rng := fmt.Sprintf("%s!A:F", quoteSheet(c.reportSheet))
	head, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, fmt.Sprintf("%s!A1:F1", quoteSheet(c.reportSheet))).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read report header: %w", err)
	}

	vr := &gsheet.ValueRange{Values: reportValues(rows, len(head.Values) == 0)}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.reportSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}
