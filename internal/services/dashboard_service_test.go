package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursboard/internal/core"
	"hoursboard/internal/loader"
)

func sampleTable(t *testing.T) *core.Table {
	t.Helper()
	rows, err := loader.Decode("hours.csv", []byte(sampleCSV))
	require.NoError(t, err)
	tbl, err := loader.BuildTable(rows)
	require.NoError(t, err)
	return tbl
}

func TestDashboardBuildDefaults(t *testing.T) {
	svc := NewDashboardService(quietLogger())

	v, err := svc.Build(context.Background(), sampleTable(t), Query{})
	require.NoError(t, err)

	assert.Equal(t, 5, v.TotalRows)
	assert.Equal(t, 4, v.FilteredRows, "the null-date row never passes the date filter")
	assert.InDelta(t, 5.0, v.TotalHours, 1e-9)
	assert.Equal(t, core.ModePie, v.Aggregation.Mode)
	assert.Equal(t, core.ColGlobalProject, v.Aggregation.XColumn)
	assert.Equal(t, "Total Hours by globalProject (Total: 5.00 hours)", v.Aggregation.Title)
	assert.False(t, v.Truncated())
}

func TestDashboardBuildJanuaryByUser(t *testing.T) {
	q := Query{
		Filter:    core.Filter{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)},
		Aggregate: core.AggregateRequest{Mode: core.ModeBar, X: core.ColUser},
	}
	s, err := NewDashboardService(quietLogger()).Summary(context.Background(), sampleTable(t), q)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", s.Start)
	assert.Equal(t, "2024-01-31", s.End)
	assert.Equal(t, 3.0, s.TotalHours)
	assert.Equal(t, []string{core.ColUser, core.ColHours}, s.Columns)
	assert.Equal(t, [][]string{{"a", "2.00"}, {"b", "1.00"}}, s.Rows())
}

func TestDashboardGroupedSameColumns(t *testing.T) {
	q := Query{Aggregate: core.AggregateRequest{Mode: core.ModeGroupedBar, X: core.ColDate, Color: core.ColDate}}
	s, err := NewDashboardService(quietLogger()).Summary(context.Background(), sampleTable(t), q)
	require.NoError(t, err)

	assert.Equal(t, []string{core.ColMonth, core.ColHours}, s.Columns)
	assert.Equal(t, [][]string{{"2024-01", "3.00"}, {"2024-02", "1.50"}, {"2024-03", "0.50"}}, s.Rows())
}

func TestDashboardUnknownColumn(t *testing.T) {
	svc := NewDashboardService(quietLogger())

	var cnf *core.ColumnNotFoundError
	_, err := svc.Build(context.Background(), sampleTable(t), Query{Aggregate: core.AggregateRequest{X: "nope"}})
	assert.ErrorAs(t, err, &cnf)

	f := core.Filter{}
	f.Select("nope", "x")
	_, err = svc.Build(context.Background(), sampleTable(t), Query{Filter: f})
	assert.ErrorAs(t, err, &cnf)
}

func TestDashboardPreviewLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("globalProject,projectName,department,user,Date,time (minutes)\n")
	for i := 0; i < PreviewLimit+20; i++ {
		fmt.Fprintf(&b, "p,w,eng,u%d,2024-01-01,60\n", i)
	}
	rows, err := loader.Decode("big.csv", []byte(b.String()))
	require.NoError(t, err)
	tbl, err := loader.BuildTable(rows)
	require.NoError(t, err)

	v, err := NewDashboardService(quietLogger()).Build(context.Background(), tbl, Query{})
	require.NoError(t, err)
	assert.Len(t, v.Preview, PreviewLimit)
	assert.Equal(t, PreviewLimit+20, v.FilteredRows)
	assert.True(t, v.Truncated())
}
