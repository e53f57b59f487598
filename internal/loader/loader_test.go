package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"hoursboard/internal/core"
)

var header = []any{"globalProject", "projectName", "department", "user", "Date", "time (minutes)", "task"}

func xlsxFixture(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	all := append([][]any{header}, rows...)
	for i, r := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	data := xlsxFixture(t,
		[]any{"alpha", "web", "eng", "a", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 120, "build"},
		[]any{"beta", "api", "ops", "b", "2024-02-10", 90, nil},
		[]any{"beta", "api", "ops", "b", "not a date", "x", "fix"},
	)

	l := New(4, time.Hour, nil)
	res, err := l.Load(context.Background(), "hours.xlsx", data)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, Fingerprint(data), res.Fingerprint)

	tbl := res.Table
	require.Len(t, tbl.Records, 3)
	assert.Equal(t, []string{"globalProject", "projectName", "department", "user", "Date", "time (minutes)", "task", core.ColHours}, tbl.Columns)

	first := tbl.Records[0]
	assert.Equal(t, "ALPHA", first.GlobalProject)
	assert.Equal(t, "WEB", first.ProjectName)
	assert.Equal(t, core.NewDate(2024, 1, 10), first.Date)
	assert.InDelta(t, 2.0, first.Hours, 1e-9)
	assert.Equal(t, "build", first.Extra["task"])

	assert.Equal(t, core.NewDate(2024, 2, 10), tbl.Records[1].Date)
	assert.Equal(t, core.NullText, tbl.Records[1].Extra["task"])

	assert.False(t, tbl.Records[2].Date.Valid())
	assert.Equal(t, 1, tbl.Warnings.InvalidDates)
	assert.Equal(t, 1, tbl.Warnings.InvalidMinutes)
	assert.True(t, tbl.Records[2].InvalidMinutes)
	assert.False(t, first.InvalidMinutes)

	for _, r := range tbl.Records {
		assert.InDelta(t, r.Minutes/60, r.Hours, 1e-9)
	}
}

func TestLoadMissingColumns(t *testing.T) {
	csv := "globalProject,user,Date\nA,a,2024-01-01\n"
	_, err := New(4, time.Hour, nil).Load(context.Background(), "hours.csv", []byte(csv))

	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"projectName", "department", "time (minutes)"}, se.Missing)
}

func TestLoadEmptyAndUnsupported(t *testing.T) {
	l := New(4, time.Hour, nil)

	_, err := l.Load(context.Background(), "empty.csv", nil)
	assert.ErrorIs(t, err, core.ErrEmptyFile)

	headerOnly := "globalProject,projectName,department,user,Date,time (minutes)\n"
	_, err = l.Load(context.Background(), "header.csv", []byte(headerOnly))
	assert.ErrorIs(t, err, core.ErrEmptyFile)

	_, err = l.Load(context.Background(), "hours.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestLoadCachesByFingerprint(t *testing.T) {
	data := []byte("globalProject,projectName,department,user,Date,time (minutes)\nA,B,eng,a,2024-01-01,60\n")
	l := New(4, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(context.Background(), "hours.csv", data)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	res, err := l.Load(context.Background(), "renamed.csv", data)
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Equal(t, int64(1), l.Parses())

	cached, ok := l.Get(res.Fingerprint)
	require.True(t, ok)
	assert.Same(t, res.Table, cached)
}

func TestLoadRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := []byte("globalProject,projectName,department,user,Date,time (minutes)\nA,B,eng,a,2024-01-01,60\n")
	l := New(4, time.Hour, nil)
	_, err := l.Load(ctx, "hours.csv", data)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestLoadRows(t *testing.T) {
	rows := [][]string{
		{" globalProject ", "projectName", "department", "user", "Date", "time (minutes)"},
		{"x", "y", "eng", "a", "03/05/2024", "30,5"},
		{"", "", "", "", "", ""},
	}
	res, err := New(4, time.Hour, nil).LoadRows(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, res.Table.Records, 1)
	assert.Equal(t, 1, res.Table.Warnings.SkippedRows)

	r := res.Table.Records[0]
	assert.Equal(t, core.NewDate(2024, 3, 5), r.Date)
	assert.InDelta(t, 30.5, r.Minutes, 1e-9)
	assert.Equal(t, FingerprintRows(rows), res.Fingerprint)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hours.csv")
	body := "globalProject,projectName,department,user,Date,time (minutes)\nA,B,eng,a,2024-01-01,60\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tbl, fp, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tbl.Records, 1)
	assert.Equal(t, Fingerprint([]byte(body)), fp)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want core.Date
		ok   bool
	}{
		{"2024-03-05", core.NewDate(2024, 3, 5), true},
		{"2024-03-05 13:45:00", core.NewDate(2024, 3, 5), true},
		{"2024/03/05", core.NewDate(2024, 3, 5), true},
		{"3/5/2024", core.NewDate(2024, 3, 5), true},
		{"05.03.2024", core.NewDate(2024, 3, 5), true},
		{"Mar 5, 2024", core.NewDate(2024, 3, 5), true},
		{"20240305", core.NewDate(2024, 3, 5), true},
		{"45356", core.Date{}, false},
		{"0", core.Date{}, false},
		{"", core.Date{}, false},
		{"nan", core.Date{}, false},
		{"yesterday", core.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWorkbookDate(t *testing.T) {
	tests := []struct {
		in   string
		want core.Date
		ok   bool
	}{
		{"45356", core.NewDate(2024, 3, 5), true},
		{"45356.75", core.NewDate(2024, 3, 5), true},
		{"20240305", core.NewDate(2024, 3, 5), true},
		{"2024-03-05", core.NewDate(2024, 3, 5), true},
		{"0", core.Date{}, false},
		{"-3", core.Date{}, false},
		{"", core.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, ok := ParseWorkbookDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCSVNumericDatesAreNotSerials(t *testing.T) {
	csv := "globalProject,projectName,department,user,Date,time (minutes)\n" +
		"a,p,eng,u1,45356,60\n" +
		"a,p,eng,u2,20240305,30\n"
	res, err := New(4, time.Hour, nil).Load(context.Background(), "hours.csv", []byte(csv))
	require.NoError(t, err)
	require.Len(t, res.Table.Records, 2)
	assert.False(t, res.Table.Records[0].Date.Valid())
	assert.Equal(t, core.NewDate(2024, 3, 5), res.Table.Records[1].Date)
	assert.Equal(t, 1, res.Table.Warnings.InvalidDates)

	wb, err := BuildWorkbookTable([][]string{
		{"globalProject", "projectName", "department", "user", "Date", "time (minutes)"},
		{"a", "p", "eng", "u1", "45356", "60"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 3, 5), wb.Records[0].Date)
}

func TestParseMinutes(t *testing.T) {
	v, ok := ParseMinutes(" 45 ")
	assert.True(t, ok)
	assert.Equal(t, 45.0, v)

	v, ok = ParseMinutes("12,5")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = ParseMinutes("")
	assert.False(t, ok)
	_, ok = ParseMinutes("NaN")
	assert.False(t, ok)
}

func TestHeaderNamesDeduplicates(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "a.1", "Unnamed: 3", "a.2"}, headerNames([]string{"a", " b ", "a", "", "a"}))
}
