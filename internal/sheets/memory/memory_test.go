package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "hoursboard/internal/sheets"
)

func TestReadRowsReturnsCopy(t *testing.T) {
	s := New()
	s.SetTab("Hours", [][]string{{"user"}, {"a"}})

	rows, err := s.ReadRows(context.Background(), "Hours")
	require.NoError(t, err)
	rows[1][0] = "changed"

	again, err := s.ReadRows(context.Background(), "Hours")
	require.NoError(t, err)
	assert.Equal(t, "a", again[1][0])

	_, err = s.ReadRows(context.Background(), "Missing")
	assert.ErrorContains(t, err, `sheet "Missing" not found`)
}

func TestAppendReport(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendReport(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ref)

	ref, err = s.AppendReport(ctx, []ports.ReportRow{{Key: "a"}, {Key: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "mem:1-2", ref)

	ref, err = s.AppendReport(ctx, []ports.ReportRow{{Key: "c"}})
	require.NoError(t, err)
	assert.Equal(t, "mem:3-3", ref)
	assert.Len(t, s.Reports(), 3)
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	data := "globalProject,projectName,department,user,Date,time (minutes)\nalpha,web,eng,a,2024-01-10,120\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Hours.csv"), []byte(data), 0o600))

	s, err := NewFromDir(dir)
	require.NoError(t, err)
	rows, err := s.ReadRows(context.Background(), "Hours")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "120", rows[1][5])

	empty, err := NewFromDir(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	_, err = empty.ReadRows(context.Background(), "Hours")
	assert.Error(t, err)
}
