package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "hoursboard/internal/sheets"
)

func TestToRows(t *testing.T) {
	values := [][]interface{}{
		{"globalProject", "projectName", "department", "user", "Date", "time (minutes)"},
		{"alpha", "web", " eng ", "a", "1/10/2024", float64(120)},
		{"beta"},
	}
	rows := toRows(values)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"alpha", "web", "eng", "a", "1/10/2024", "120"}, rows[1])
	assert.Equal(t, []string{"beta", "", "", "", "", ""}, rows[2])
}

func TestReportValues(t *testing.T) {
	rows := []ports.ReportRow{{
		UploadedAt:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Filename:    "hours.xlsx",
		Fingerprint: "abc",
		Dimension:   ports.DimensionUser,
		Key:         "a",
		Hours:       2.5,
	}}

	values := reportValues(rows, true)
	require.Len(t, values, 2)
	assert.Equal(t, ports.ReportHeader, values[0])
	assert.Equal(t, []interface{}{"2024-03-01 09:30:00", "hours.xlsx", "abc", "user", "a", "2.50"}, values[1])

	assert.Len(t, reportValues(rows, false), 1)
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "Reports", quoteSheet("Reports"))
	assert.Equal(t, "'Hours 2024'", quoteSheet("Hours 2024"))
	assert.Equal(t, "'Bob''s'", quoteSheet("Bob's"))
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{})
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")

	_, err = New(context.Background(), Options{SpreadsheetID: "id"})
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: "/non/existent.json"})
	assert.ErrorContains(t, err, "read service account file")
}

func TestUninitializedClient(t *testing.T) {
	c := &Client{spreadsheetID: "id", reportSheet: "Reports"}

	_, err := c.ReadRows(context.Background(), "Hours")
	assert.EqualError(t, err, "sheets service not initialized")

	_, err = c.AppendReport(context.Background(), []ports.ReportRow{{Key: "a"}})
	assert.EqualError(t, err, "sheets service not initialized")
}
