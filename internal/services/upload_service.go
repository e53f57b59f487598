package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hoursboard/internal/amqp"
	"hoursboard/internal/core"
	"hoursboard/internal/loader"
	"hoursboard/internal/log"
	"hoursboard/internal/sheets"
	"hoursboard/internal/storage"
)

var (
	// ErrTableUnavailable means the fingerprint is neither cached nor stored.
	ErrTableUnavailable = errors.New("table no longer available, upload the file again")
	// ErrHistoryDisabled is returned by history operations on the memory backend.
	ErrHistoryDisabled = errors.New("upload history requires the sqlite backend")
	// ErrImportDisabled is returned when no sheets reader is configured.
	ErrImportDisabled = errors.New("google sheets import is not configured")
)

// Catalog is the persistent upload store.
type Catalog interface {
	SaveUpload(ctx context.Context, u storage.Upload, t *core.Table) (bool, error)
	GetUpload(ctx context.Context, fingerprint string) (storage.Upload, error)
	ListUploads(ctx context.Context, limit int) ([]storage.Upload, error)
	LoadTable(ctx context.Context, fingerprint string) (*core.Table, error)
}

// Publisher announces newly stored uploads.
type Publisher interface {
	PublishUploadLoaded(ctx context.Context, msg *amqp.UploadLoadedMessage) error
}

// Loaded describes the outcome of an upload or import.
type Loaded struct {
	Fingerprint string
	Filename    string
	Table       *core.Table
	CacheHit    bool
	// Stored is true when the upload was written to the catalog for the first time.
	Stored bool
}

// UploadService orchestrates loading across the table cache, the optional
// SQLite catalog and the optional AMQP publisher.
type UploadService struct {
	loader    *loader.Loader
	catalog   Catalog
	publisher Publisher
	rows      sheets.RowsReader
	logger    *log.Logger
	now       func() time.Time
}

// UploadOption configures optional collaborators.
type UploadOption func(*UploadService)

func WithCatalog(c Catalog) UploadOption {
	return func(s *UploadService) { s.catalog = c }
}

func WithPublisher(p Publisher) UploadOption {
	return func(s *UploadService) { s.publisher = p }
}

func WithRowsReader(r sheets.RowsReader) UploadOption {
	return func(s *UploadService) { s.rows = r }
}

func WithLogger(l *log.Logger) UploadOption {
	return func(s *UploadService) { s.logger = l }
}

func NewUploadService(l *loader.Loader, opts ...UploadOption) *UploadService {
	s := &UploadService{loader: l, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentUpload)
	return s
}

// HistoryEnabled reports whether uploads are persisted.
func (s *UploadService) HistoryEnabled() bool { return s.catalog != nil }

// ImportEnabled reports whether a sheets reader is configured.
func (s *UploadService) ImportEnabled() bool { return s.rows != nil }

// Upload loads file content and records it.
func (s *UploadService) Upload(ctx context.Context, filename string, data []byte) (Loaded, error) {
	res, err := s.loader.Load(ctx, filename, data)
	if err != nil {
		return Loaded{}, fmt.Errorf("load %s: %w", filename, err)
	}
	return s.record(ctx, filename, int64(len(data)), res), nil
}

// ImportSheet loads a tab of the configured Google spreadsheet.
func (s *UploadService) ImportSheet(ctx context.Context, sheetName string) (Loaded, error) {
	if s.rows == nil {
		return Loaded{}, ErrImportDisabled
	}
	rows, err := s.rows.ReadRows(ctx, sheetName)
	if err != nil {
		return Loaded{}, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	res, err := s.loader.LoadRows(ctx, rows)
	if err != nil {
		return Loaded{}, fmt.Errorf("load sheet %s: %w", sheetName, err)
	}

	var size int64
	for _, r := range rows {
		for _, c := range r {
			size += int64(len(c))
		}
	}
	return s.record(ctx, "sheets:"+sheetName, size, res), nil
}

// record persists a freshly loaded table and publishes its event. Neither
// step fails the upload: the table is already usable from the cache.
func (s *UploadService) record(ctx context.Context, filename string, size int64, res loader.Result) Loaded {
	out := Loaded{
		Fingerprint: res.Fingerprint,
		Filename:    filename,
		Table:       res.Table,
		CacheHit:    res.CacheHit,
	}
	rows := len(res.Table.Records)
	total := core.TotalHours(res.Table.Records)

	log.NewStructuredLogger(s.logger).LogUploadLoaded(ctx, res.Fingerprint, filename, rows, total, res.CacheHit)
	if w := res.Table.Warnings; w.InvalidDates > 0 || w.InvalidMinutes > 0 {
		s.logger.WarnContext(ctx, "Upload contains invalid cells",
			log.FieldFingerprint, res.Fingerprint,
			log.FieldInvalidDates, w.InvalidDates,
			log.FieldInvalidMinute, w.InvalidMinutes)
	}

	if s.catalog == nil {
		return out
	}
	created, err := s.catalog.SaveUpload(ctx, storage.Upload{
		Fingerprint: res.Fingerprint,
		Filename:    filename,
		SizeBytes:   size,
		RowCount:    rows,
		TotalHours:  total,
		Columns:     res.Table.Columns,
		UploadedAt:  s.now().UTC(),
	}, res.Table)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist upload",
			log.FieldFingerprint, res.Fingerprint,
			log.FieldOperation, log.OpPersist,
			log.FieldError, err)
		return out
	}
	out.Stored = created
	if !created {
		return out
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping upload event")
		return out
	}
	msg := amqp.NewUploadLoadedMessage(res.Fingerprint, filename, rows, total)
	if err := s.publisher.PublishUploadLoaded(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish upload event",
			log.FieldFingerprint, res.Fingerprint,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
	return out
}

// Table returns the table for a fingerprint, reopening it from the catalog
// when it has been evicted from the cache.
func (s *UploadService) Table(ctx context.Context, fingerprint string) (*core.Table, error) {
	if fingerprint == "" {
		return nil, ErrTableUnavailable
	}
	if t, ok := s.loader.Get(fingerprint); ok {
		return t, nil
	}
	if s.catalog == nil {
		return nil, ErrTableUnavailable
	}
	t, err := s.catalog.LoadTable(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTableUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("reopen %s: %w", fingerprint, err)
	}
	s.loader.Put(fingerprint, t)
	s.logger.InfoContext(ctx, "Upload reopened from storage",
		log.FieldFingerprint, fingerprint,
		log.FieldRows, len(t.Records))
	return t, nil
}

// Open reopens a stored upload by fingerprint.
func (s *UploadService) Open(ctx context.Context, fingerprint string) (Loaded, error) {
	if s.catalog == nil {
		return Loaded{}, ErrHistoryDisabled
	}
	u, err := s.catalog.GetUpload(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return Loaded{}, ErrTableUnavailable
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("get upload %s: %w", fingerprint, err)
	}
	t, err := s.Table(ctx, fingerprint)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{Fingerprint: u.Fingerprint, Filename: u.Filename, Table: t}, nil
}

// History lists the most recent uploads.
func (s *UploadService) History(ctx context.Context, limit int) ([]storage.Upload, error) {
	if s.catalog == nil {
		return nil, ErrHistoryDisabled
	}
	return s.catalog.ListUploads(ctx, limit)
}
