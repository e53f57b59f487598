package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hoursboard/internal/amqp"
	"hoursboard/internal/core"
	"hoursboard/internal/log"
	"hoursboard/internal/sheets"
	"hoursboard/internal/storage"
)

var errAlreadyReported = errors.New("upload already reported")

// Store is the part of the upload catalog the report worker needs.
type Store interface {
	GetUpload(ctx context.Context, fingerprint string) (storage.Upload, error)
	LoadTable(ctx context.Context, fingerprint string) (*core.Table, error)
	PendingReports(ctx context.Context, limit int) ([]storage.Upload, error)
	ClaimReport(ctx context.Context, fingerprint string, at time.Time) (bool, error)
	ReleaseReport(ctx context.Context, fingerprint string, at time.Time) error
}

// ReportWorker exports per-department and per-user hours of stored uploads
// to the report sheet.
type ReportWorker struct {
	store     Store
	writer    sheets.ReportWriter
	batchSize int
	logger    *log.Logger
	now       func() time.Time
}

func NewReportWorker(store Store, writer sheets.ReportWriter, batchSize int, logger *log.Logger) *ReportWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleUploadLoaded processes a single upload event from AMQP.
func (w *ReportWorker) HandleUploadLoaded(ctx context.Context, msg *amqp.UploadLoadedMessage) error {
	w.logger.InfoContext(ctx, "Processing upload event",
		log.FieldFingerprint, msg.Fingerprint,
		log.FieldFilename, msg.Filename,
		log.FieldRows, msg.Rows)

	u, err := w.store.GetUpload(ctx, msg.Fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted, or published by a server that does not share our database.
		w.logger.WarnContext(ctx, "Upload not found in storage, dropping event",
			log.FieldFingerprint, msg.Fingerprint)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get upload: %w", err)
	}
	if u.ReportedAt != nil {
		w.logger.DebugContext(ctx, "Upload already reported",
			log.FieldFingerprint, u.Fingerprint)
		return nil
	}
	if err := w.report(ctx, u); err != nil && !errors.Is(err, errAlreadyReported) {
		return err
	}
	return nil
}

// ProcessPending reports uploads whose events were lost or failed.
func (w *ReportWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupReportCheck catches up on uploads stored while the worker was down.
func (w *ReportWorker) StartupReportCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup report check: %w", err)
	}
	if n == 0 {
		w.logger.InfoContext(ctx, "No pending uploads found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup report check completed", "reported", n)
	return nil
}

func (w *ReportWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingReports(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending uploads: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending uploads", "count", len(pending))
	reported := 0
	for _, u := range pending {
		if ctx.Err() != nil {
			return reported, ctx.Err()
		}
		if err := w.report(ctx, u); errors.Is(err, errAlreadyReported) {
			continue
		} else if err != nil {
			w.logger.ErrorContext(ctx, "Failed to report upload",
				log.FieldFingerprint, u.Fingerprint,
				log.FieldError, err)
			continue
		}
		reported++
	}
	return reported, nil
}

// report claims u before appending, so concurrent deliveries and the
// pending poller append each upload once.
func (w *ReportWorker) report(ctx context.Context, u storage.Upload) error {
	t, err := w.store.LoadTable(ctx, u.Fingerprint)
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	rows, err := BuildReport(u, t)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	at := w.now()
	claimed, err := w.store.ClaimReport(ctx, u.Fingerprint, at)
	if err != nil {
		return fmt.Errorf("claim report: %w", err)
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Upload already reported",
			log.FieldFingerprint, u.Fingerprint)
		return errAlreadyReported
	}

	ref, err := w.writer.AppendReport(ctx, rows)
	if err != nil {
		if rerr := w.store.ReleaseReport(context.WithoutCancel(ctx), u.Fingerprint, at); rerr != nil {
			w.logger.ErrorContext(ctx, "Failed to release report claim",
				log.FieldFingerprint, u.Fingerprint,
				log.FieldError, rerr)
		}
		return fmt.Errorf("append report: %w", err)
	}

	w.logger.InfoContext(ctx, "Upload reported",
		log.FieldFingerprint, u.Fingerprint,
		log.FieldFilename, u.Filename,
		log.FieldSheetsRange, ref,
		log.FieldRows, len(rows))
	return nil
}

// BuildReport sums the hours of every record of t by department and by user.
// Rows with a null date are included: the report covers the whole upload.
func BuildReport(u storage.Upload, t *core.Table) ([]sheets.ReportRow, error) {
	var out []sheets.ReportRow
	for _, dim := range []string{sheets.DimensionDepartment, sheets.DimensionUser} {
		agg, err := core.Aggregate(t, t.Records, core.AggregateRequest{Mode: core.ModeBar, X: dim})
		if err != nil {
			return nil, err
		}
		for _, g := range agg.Groups {
			out = append(out, sheets.ReportRow{
				UploadedAt:  u.UploadedAt,
				Filename:    u.Filename,
				Fingerprint: u.Fingerprint,
				Dimension:   dim,
				Key:         g.Keys[0],
				Hours:       g.Hours,
			})
		}
	}
	return out, nil
}
