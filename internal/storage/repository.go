package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"hoursboard/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for an unknown fingerprint.
var ErrNotFound = errors.New("upload not found")

// Upload is the catalog entry of one loaded spreadsheet.
type Upload struct {
	Fingerprint string     `json:"fingerprint"`
	Filename    string     `json:"filename"`
	SizeBytes   int64      `json:"size_bytes"`
	RowCount    int        `json:"row_count"`
	TotalHours  float64    `json:"total_hours"`
	Columns     []string   `json:"columns"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ReportedAt  *time.Time `json:"reported_at,omitempty"`

	Warnings core.LoadWarnings `json:"warnings"`
}

// SQLiteRepository persists uploaded tables so they survive cache eviction
// and can be re-read by the report worker.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveUpload stores an upload and its records. Saving a fingerprint that
// already exists is a no-op reported by created == false.
func (r *SQLiteRepository) SaveUpload(ctx context.Context, u Upload, t *core.Table) (created bool, err error) {
	columns, err := sonic.MarshalString(t.Columns)
	if err != nil {
		return false, fmt.Errorf("encode columns: %w", err)
	}
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := r.queries.WithTx(tx)
	created, err = q.CreateUpload(ctx, CreateUploadParams{
		Fingerprint: u.Fingerprint,
		Filename:    u.Filename,
		SizeBytes:   u.SizeBytes,
		RowCount:    int64(len(t.Records)),
		TotalHours:  core.TotalHours(t.Records),
		ColumnsJSON: columns,
		UploadedAt:  u.UploadedAt.UTC(),

		InvalidDates:   int64(t.Warnings.InvalidDates),
		InvalidMinutes: int64(t.Warnings.InvalidMinutes),
		SkippedRows:    int64(t.Warnings.SkippedRows),
	})
	if err != nil {
		return false, fmt.Errorf("create upload: %w", err)
	}
	if !created {
		return false, tx.Commit()
	}

	stmt, err := q.PrepareInsertRecord(ctx)
	if err != nil {
		return false, fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range t.Records {
		params, err := recordParams(u.Fingerprint, i, rec)
		if err != nil {
			return false, err
		}
		if err := execInsertRecord(ctx, stmt, params); err != nil {
			return false, fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upload: %w", err)
	}

	slog.InfoContext(ctx, "Upload saved to SQLite",
		"fingerprint", u.Fingerprint,
		"filename", u.Filename,
		"rows", len(t.Records))
	return true, nil
}

func recordParams(fp string, i int, rec core.Record) (InsertRecordParams, error) {
	p := InsertRecordParams{
		Fingerprint:   fp,
		RowIndex:      int64(i),
		GlobalProject: rec.GlobalProject,
		ProjectName:   rec.ProjectName,
		Department:    rec.Department,
		User:          rec.User,
		Minutes:       rec.Minutes,
		MinutesBad:    rec.InvalidMinutes,
	}
	if rec.Date.Valid() {
		p.Date = sql.NullString{String: rec.Date.String(), Valid: true}
	}
	if len(rec.Extra) > 0 {
		extra, err := sonic.MarshalString(rec.Extra)
		if err != nil {
			return p, fmt.Errorf("encode extra columns of row %d: %w", i, err)
		}
		p.ExtraJSON = sql.NullString{String: extra, Valid: true}
	}
	return p, nil
}

// GetUpload returns the catalog entry for a fingerprint.
func (r *SQLiteRepository) GetUpload(ctx context.Context, fingerprint string) (Upload, error) {
	row, err := r.queries.GetUpload(ctx, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
	}
	if err != nil {
		return Upload{}, fmt.Errorf("get upload: %w", err)
	}
	return toUpload(row)
}

// ListUploads returns the most recent uploads first.
func (r *SQLiteRepository) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListUploads(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	uploads := make([]Upload, 0, len(rows))
	for _, row := range rows {
		u, err := toUpload(row)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// LoadTable rebuilds the record table of a stored upload.
func (r *SQLiteRepository) LoadTable(ctx context.Context, fingerprint string) (*core.Table, error) {
	u, err := r.GetUpload(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	rows, err := r.queries.ListRecords(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	t := &core.Table{Columns: u.Columns, Records: make([]core.Record, 0, len(rows)), Warnings: u.Warnings}
	for _, row := range rows {
		rec := core.Record{
			GlobalProject:  row.GlobalProject,
			ProjectName:    row.ProjectName,
			Department:     row.Department,
			User:           row.User,
			Minutes:        row.Minutes,
			Hours:          core.HoursFromMinutes(row.Minutes),
			InvalidMinutes: row.MinutesBad,
		}
		if row.Date.Valid {
			d, err := time.Parse("2006-01-02", row.Date.String)
			if err != nil {
				return nil, fmt.Errorf("decode date of row %d: %w", row.RowIndex, err)
			}
			rec.Date = core.DateOf(d)
		}
		if row.ExtraJSON.Valid {
			if err := sonic.UnmarshalString(row.ExtraJSON.String, &rec.Extra); err != nil {
				return nil, fmt.Errorf("decode extra columns of row %d: %w", row.RowIndex, err)
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// PendingReports returns stored uploads the report worker has not handled
// yet, oldest first.
func (r *SQLiteRepository) PendingReports(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListUnreported(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unreported uploads: %w", err)
	}
	uploads := make([]Upload, 0, len(rows))
	for _, row := range rows {
		u, err := toUpload(row)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// ClaimReport stamps reported_at on an unreported upload. It returns false
// when another worker already claimed or reported it.
func (r *SQLiteRepository) ClaimReport(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	n, err := r.queries.ClaimReport(ctx, fingerprint, at.UTC())
	if err != nil {
		return false, fmt.Errorf("claim report of %s: %w", fingerprint, err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.GetUpload(ctx, fingerprint); err != nil {
		return false, err
	}
	return false, nil
}

// ReleaseReport undoes a claim made at the given time, so the upload is
// pending again after a failed export.
func (r *SQLiteRepository) ReleaseReport(ctx context.Context, fingerprint string, at time.Time) error {
	if err := r.queries.ReleaseReport(ctx, fingerprint, at.UTC()); err != nil {
		return fmt.Errorf("release report of %s: %w", fingerprint, err)
	}
	return nil
}

func toUpload(row UploadRow) (Upload, error) {
	u := Upload{
		Fingerprint: row.Fingerprint,
		Filename:    row.Filename,
		SizeBytes:   row.SizeBytes,
		RowCount:    int(row.RowCount),
		TotalHours:  row.TotalHours,
		UploadedAt:  row.UploadedAt,
		Warnings: core.LoadWarnings{
			InvalidDates:   int(row.InvalidDates),
			InvalidMinutes: int(row.InvalidMinutes),
			SkippedRows:    int(row.SkippedRows),
		},
	}
	if row.ReportedAt.Valid {
		at := row.ReportedAt.Time
		u.ReportedAt = &at
	}
	if err := sonic.UnmarshalString(row.ColumnsJSON, &u.Columns); err != nil {
		return Upload{}, fmt.Errorf("decode columns of %s: %w", row.Fingerprint, err)
	}
	return u, nil
}
