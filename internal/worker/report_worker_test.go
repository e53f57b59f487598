package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursboard/internal/amqp"
	"hoursboard/internal/core"
	"hoursboard/internal/log"
	"hoursboard/internal/sheets"
	"hoursboard/internal/sheets/memory"
	"hoursboard/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	uploads  map[string]storage.Upload
	tables   map[string]*core.Table
	reported map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		uploads:  make(map[string]storage.Upload),
		tables:   make(map[string]*core.Table),
		reported: make(map[string]time.Time),
	}
}

func (s *fakeStore) add(u storage.Upload, t *core.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[u.Fingerprint] = u
	s.tables[u.Fingerprint] = t
}

func (s *fakeStore) GetUpload(_ context.Context, fp string) (storage.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[fp]
	if !ok {
		return storage.Upload{}, storage.ErrNotFound
	}
	if at, ok := s.reported[fp]; ok {
		u.ReportedAt = &at
	}
	return u, nil
}

func (s *fakeStore) LoadTable(_ context.Context, fp string) (*core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[fp]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) PendingReports(_ context.Context, limit int) ([]storage.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Upload
	for fp, u := range s.uploads {
		if _, ok := s.reported[fp]; ok {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeStore) ClaimReport(_ context.Context, fp string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[fp]; !ok {
		return false, storage.ErrNotFound
	}
	if _, ok := s.reported[fp]; ok {
		return false, nil
	}
	s.reported[fp] = at
	return true, nil
}

func (s *fakeStore) ReleaseReport(_ context.Context, fp string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if got, ok := s.reported[fp]; ok && got.Equal(at) {
		delete(s.reported, fp)
	}
	return nil
}

// slowWriter holds every append until release is closed.
type slowWriter struct {
	*memory.Store
	release chan struct{}
}

func (w slowWriter) AppendReport(ctx context.Context, rows []sheets.ReportRow) (string, error) {
	<-w.release
	return w.Store.AppendReport(ctx, rows)
}

type failingWriter struct{}

func (failingWriter) AppendReport(context.Context, []sheets.ReportRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.New(cfg)
}

func sampleUpload(fp string) (storage.Upload, *core.Table) {
	t := &core.Table{
		Columns: []string{core.ColGlobalProject, core.ColProjectName, core.ColDepartment, core.ColUser, core.ColDate, core.ColMinutes, core.ColHours},
		Records: []core.Record{
			{GlobalProject: "ALPHA", Department: "eng", User: "a", Date: core.NewDate(2024, 1, 10), Minutes: 120, Hours: 2},
			{GlobalProject: "ALPHA", Department: "eng", User: "b", Date: core.NewDate(2024, 1, 20), Minutes: 60, Hours: 1},
			{GlobalProject: "BETA", Department: "ops", User: "a", Minutes: 30, Hours: 0.5},
		},
	}
	u := storage.Upload{
		Fingerprint: fp,
		Filename:    fp + ".xlsx",
		RowCount:    len(t.Records),
		TotalHours:  3.5,
		UploadedAt:  time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
	}
	return u, t
}

func TestBuildReport(t *testing.T) {
	u, tbl := sampleUpload("fp1")

	rows, err := BuildReport(u, tbl)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	got := make(map[string]float64)
	for _, r := range rows {
		assert.Equal(t, "fp1", r.Fingerprint)
		assert.Equal(t, "fp1.xlsx", r.Filename)
		got[r.Dimension+"/"+r.Key] = r.Hours
	}
	assert.Equal(t, map[string]float64{
		"department/eng": 3,
		"department/ops": 0.5,
		"user/a":         2.5,
		"user/b":         1,
	}, got)
}

func TestHandleUploadLoaded(t *testing.T) {
	store := newFakeStore()
	u, tbl := sampleUpload("fp1")
	store.add(u, tbl)
	writer := memory.New()
	w := NewReportWorker(store, writer, 10, quietLogger())
	ctx := context.Background()

	msg := amqp.NewUploadLoadedMessage("fp1", "fp1.xlsx", 3, 3.5)
	require.NoError(t, w.HandleUploadLoaded(ctx, msg))
	assert.Len(t, writer.Reports(), 4)

	// Redelivery of an already reported upload appends nothing.
	require.NoError(t, w.HandleUploadLoaded(ctx, msg))
	assert.Len(t, writer.Reports(), 4)

	// Unknown uploads are dropped, not requeued.
	require.NoError(t, w.HandleUploadLoaded(ctx, amqp.NewUploadLoadedMessage("gone", "x.xlsx", 1, 1)))
}

func TestHandleUploadLoadedWriterFailure(t *testing.T) {
	store := newFakeStore()
	u, tbl := sampleUpload("fp1")
	store.add(u, tbl)
	w := NewReportWorker(store, failingWriter{}, 10, quietLogger())

	err := w.HandleUploadLoaded(context.Background(), amqp.NewUploadLoadedMessage("fp1", "fp1.xlsx", 3, 3.5))
	assert.ErrorContains(t, err, "quota exceeded")

	pending, err := store.PendingReports(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed uploads stay pending")
}

func TestConcurrentDeliveriesReportOnce(t *testing.T) {
	store := newFakeStore()
	u, tbl := sampleUpload("fp1")
	store.add(u, tbl)
	writer := slowWriter{Store: memory.New(), release: make(chan struct{})}
	w := NewReportWorker(store, writer, 10, quietLogger())
	ctx := context.Background()
	msg := amqp.NewUploadLoadedMessage("fp1", "fp1.xlsx", 3, 3.5)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- w.HandleUploadLoaded(ctx, msg)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := w.ProcessPending(ctx)
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(writer.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, writer.Reports(), 4, "one report, four rows")
}

func TestWriterFailureReleasesClaim(t *testing.T) {
	store := newFakeStore()
	u, tbl := sampleUpload("fp1")
	store.add(u, tbl)
	ctx := context.Background()

	n, err := NewReportWorker(store, failingWriter{}, 10, quietLogger()).ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	writer := memory.New()
	n, err = NewReportWorker(store, writer, 10, quietLogger()).ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, writer.Reports(), 4)
}

func TestProcessPendingAndStartupCheck(t *testing.T) {
	store := newFakeStore()
	for _, fp := range []string{"fp1", "fp2", "fp3"} {
		u, tbl := sampleUpload(fp)
		store.add(u, tbl)
	}
	writer := memory.New()
	w := NewReportWorker(store, writer, 2, quietLogger())
	ctx := context.Background()

	n, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, w.StartupReportCheck(ctx))
	assert.Len(t, writer.Reports(), 12)

	n, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessorLifecycle(t *testing.T) {
	store := newFakeStore()
	u, tbl := sampleUpload("fp1")
	store.add(u, tbl)
	writer := memory.New()
	p := NewProcessor(NewReportWorker(store, writer, 10, quietLogger()), ProcessorConfig{PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	assert.Eventually(t, func() bool { return len(writer.Reports()) == 4 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Stop(stopCtx))
}
