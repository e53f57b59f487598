package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChartMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ChartMode
		wantErr bool
	}{
		{"", ModePie, false},
		{"pie", ModePie, false},
		{"BAR", ModeBar, false},
		{"grouped-bar", ModeGroupedBar, false},
		{"scatter", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChartMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownChartMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateSumMatchesHeadline(t *testing.T) {
	tbl := sampleTable()
	res, err := Filter{}.Apply(tbl)
	require.NoError(t, err)

	for _, req := range []AggregateRequest{
		{Mode: ModePie, X: ColUser},
		{Mode: ModeBar, X: ColDepartment},
		{Mode: ModeGroupedBar, X: ColDate, Color: ColUser},
	} {
		agg, err := Aggregate(tbl, res.Rows, req)
		require.NoError(t, err)
		assert.InDelta(t, agg.TotalHours, agg.Sum(), 1e-9, "mode %s", req.Mode)
	}
}

func TestAggregateBucketsDateByMonth(t *testing.T) {
	tbl := sampleTable()
	res, err := Filter{}.Apply(tbl)
	require.NoError(t, err)

	agg, err := Aggregate(tbl, res.Rows, AggregateRequest{Mode: ModeBar, X: ColDate})
	require.NoError(t, err)

	assert.Equal(t, ColMonth, agg.XColumn)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, agg.XKeys())
	h, ok := groupHours(agg, "2024-03")
	require.True(t, ok)
	assert.InDelta(t, 2.0, h, 1e-9, "2024-03-05 and 2024-03-20 share a group")
	assert.Equal(t, "Total Hours by Month (Total: 5.00 hours)", agg.Title)
}

func TestAggregateGroupedBar(t *testing.T) {
	tbl := sampleTable()
	res, err := Filter{}.Apply(tbl)
	require.NoError(t, err)

	agg, err := Aggregate(tbl, res.Rows, AggregateRequest{Mode: ModeGroupedBar, X: ColDepartment, Color: ColDate})
	require.NoError(t, err)

	assert.Equal(t, []string{ColDepartment, ColMonth, ColHours}, agg.Columns())
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, agg.ColorKeys())
	h, ok := agg.Lookup("eng", "2024-03")
	require.True(t, ok)
	assert.InDelta(t, 1.5, h, 1e-9)
	assert.Equal(t, "Total Hours by department and Month (Total: 5.00 hours)", agg.Title)
}

func TestAggregateSameAxisAndColor(t *testing.T) {
	tbl := sampleTable()
	res, err := Filter{}.Apply(tbl)
	require.NoError(t, err)

	agg, err := Aggregate(tbl, res.Rows, AggregateRequest{Mode: ModeGroupedBar, X: ColUser, Color: ColUser})
	require.NoError(t, err)
	assert.Equal(t, []string{ColUser, ColHours}, agg.Columns())
	assert.Len(t, agg.Groups, 3)
}

func TestAggregateUnknownColumn(t *testing.T) {
	tbl := sampleTable()
	_, err := Aggregate(tbl, tbl.Records, AggregateRequest{Mode: ModePie, X: "client"})
	var cnf *ColumnNotFoundError
	assert.ErrorAs(t, err, &cnf)
}

func TestAggregateEmptyRows(t *testing.T) {
	agg, err := Aggregate(sampleTable(), nil, AggregateRequest{Mode: ModePie, X: ColUser})
	require.NoError(t, err)
	assert.True(t, agg.Empty())
	assert.Equal(t, "Total Hours by user (Total: 0.00 hours)", agg.Title)
}

func TestAggregateByMinutesSkipsUnparsedCells(t *testing.T) {
	tbl := &Table{
		Columns: []string{ColGlobalProject, ColProjectName, ColDepartment, ColUser, ColDate, ColMinutes, ColHours},
		Records: []Record{
			{GlobalProject: "P", Department: "d", User: "a", Minutes: 60, Hours: 1},
			{GlobalProject: "P", Department: "d", User: "b", InvalidMinutes: true},
			{GlobalProject: "P", Department: "d", User: "c", Minutes: 60, Hours: 1},
		},
	}

	for col, key := range map[string]string{ColMinutes: "60", ColHours: "1"} {
		agg, err := Aggregate(tbl, tbl.Records, AggregateRequest{Mode: ModeBar, X: col})
		require.NoError(t, err)
		require.Len(t, agg.Groups, 1, col)
		assert.Equal(t, []string{key}, agg.Groups[0].Keys, col)
		assert.InDelta(t, 2.0, agg.Groups[0].Hours, 1e-9)
		_, zero := groupHours(agg, "0")
		assert.False(t, zero, col)
	}

	agg, err := Aggregate(tbl, tbl.Records, AggregateRequest{Mode: ModeBar, X: ColUser})
	require.NoError(t, err)
	assert.Len(t, agg.Groups, 3, "other columns keep the row")
}

func TestPipelineJanuaryExample(t *testing.T) {
	tbl := &Table{
		Columns: []string{ColGlobalProject, ColProjectName, ColDepartment, ColUser, ColDate, ColMinutes, ColHours},
		Records: []Record{
			{GlobalProject: "P", ProjectName: "X", Department: "d", User: "a", Date: NewDate(2024, 1, 10), Minutes: 120, Hours: 2},
			{GlobalProject: "P", ProjectName: "X", Department: "d", User: "b", Date: NewDate(2024, 2, 10), Minutes: 60, Hours: 1},
		},
	}
	res, err := Filter{Start: NewDate(2024, 1, 1), End: NewDate(2024, 1, 31)}.Apply(tbl)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "a", res.Rows[0].User)

	agg, err := Aggregate(tbl, res.Rows, AggregateRequest{Mode: ModePie, X: ColUser})
	require.NoError(t, err)
	assert.Equal(t, "2.00", FormatHours(agg.TotalHours))
	require.Len(t, agg.Groups, 1)
	assert.Equal(t, []string{"a"}, agg.Groups[0].Keys)
	assert.InDelta(t, 2.0, agg.Groups[0].Hours, 1e-9)
}

func groupHours(a Aggregation, key string) (float64, bool) {
	for _, g := range a.Groups {
		if g.Keys[0] == key {
			return g.Hours, true
		}
	}
	return 0, false
}
