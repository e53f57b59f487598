package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "hoursboard/internal/sheets"
)

// Store is an in-process spreadsheet: named tabs of text rows plus the
// report rows appended so far.
type Store struct {
	mu      sync.Mutex
	tabs    map[string][][]string
	reports []ports.ReportRow
}

var (
	_ ports.RowsReader   = (*Store)(nil)
	_ ports.ReportWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{tabs: make(map[string][][]string)}
}

// NewFromDir seeds one tab per *.csv file in dir, named after the file
// without its extension. A missing directory yields an empty store.
func NewFromDir(dir string) (*Store, error) {
	s := New()
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		rows, err := readCSV(p)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", filepath.Base(p), err)
		}
		s.SetTab(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)), rows)
	}
	return s, nil
}

// SetTab replaces the contents of a tab.
func (s *Store) SetTab(name string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[name] = cloneRows(rows)
}

// ReadRows returns a copy of the tab contents.
func (s *Store) ReadRows(_ context.Context, sheetName string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[sheetName]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", sheetName)
	}
	return cloneRows(rows), nil
}

// AppendReport stores the rows and returns a synthetic range reference.
func (s *Store) AppendReport(_ context.Context, rows []ports.ReportRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.reports) + 1
	s.reports = append(s.reports, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.reports)), nil
}

// Reports returns every report row appended so far.
func (s *Store) Reports() []ports.ReportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ReportRow(nil), s.reports...)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
