package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"hoursboard/internal/services"
)

func sampleSummary() services.Summary {
	return services.Summary{
		Title:        "Total Hours by department (Total: 5.00 hours)",
		Mode:         "pie",
		Start:        "2024-01-01",
		End:          "2024-02-29",
		TotalRows:    4,
		FilteredRows: 3,
		TotalHours:   5,
		Columns:      []string{"department", "time (hours)"},
		Groups: []services.SummaryGroup{
			{Keys: []string{"dev"}, Hours: 3.5},
			{Keys: []string{"ops"}, Hours: 1.5},
		},
	}
}

func TestNewFormatter(t *testing.T) {
	for name, want := range map[string]Formatter{
		"":      &TableFormatter{},
		"table": &TableFormatter{},
		"CSV":   &CSVFormatter{},
		"json":  &JSONFormatter{},
		"yml":   &YAMLFormatter{},
	} {
		f, err := NewFormatter(name)
		require.NoError(t, err, name)
		assert.IsType(t, want, f, name)
	}

	_, err := NewFormatter("xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter().Format(&buf, sampleSummary()))

	out := buf.String()
	assert.Contains(t, out, "Total Hours: 5.00\n")
	assert.Contains(t, out, "Period: 2024-01-01 to 2024-02-29")
	assert.Contains(t, out, "Rows: 3 of 4")
	assert.Contains(t, out, "| department | time (hours) |")
	assert.Contains(t, out, "| dev        |         3.50 |")
	assert.Contains(t, out, "| ops        |         1.50 |")
	assert.Contains(t, out, "+------------+--------------+")
}

func TestTableFormatterWideRunes(t *testing.T) {
	s := sampleSummary()
	s.Groups = []services.SummaryGroup{{Keys: []string{"開発"}, Hours: 1}}

	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter().Format(&buf, s))

	// Two wide runes occupy four cells, padded to the header width of ten.
	assert.Contains(t, buf.String(), "| 開発       |")
}

func TestTableFormatterEmpty(t *testing.T) {
	s := sampleSummary()
	s.Groups = nil

	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter().Format(&buf, s))
	assert.Contains(t, buf.String(), "No data for the selected filters.")
	assert.NotContains(t, buf.String(), "+--")
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter().Format(&buf, sampleSummary()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"department,time (hours)",
		"dev,3.50",
		"ops,1.50",
	}, lines)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, sampleSummary()))

	var got services.Summary
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleSummary(), got)
	assert.Contains(t, buf.String(), `"total_hours": 5`)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter().Format(&buf, sampleSummary()))

	assert.Contains(t, buf.String(), "total_hours: 5\n")
	var got services.Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleSummary(), got)
}
