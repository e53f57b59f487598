package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL of the upload catalog.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createUpload = `
INSERT INTO uploads (fingerprint, filename, size_bytes, row_count, total_hours, columns_json, uploaded_at,
                     invalid_dates, invalid_minutes, skipped_rows)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (fingerprint) DO NOTHING
`

type CreateUploadParams struct {
	Fingerprint string
	Filename    string
	SizeBytes   int64
	RowCount    int64
	TotalHours  float64
	ColumnsJSON string
	UploadedAt  time.Time

	InvalidDates   int64
	InvalidMinutes int64
	SkippedRows    int64
}

// CreateUpload reports whether a new row was inserted.
func (q *Queries) CreateUpload(ctx context.Context, arg CreateUploadParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, createUpload,
		arg.Fingerprint, arg.Filename, arg.SizeBytes, arg.RowCount, arg.TotalHours, arg.ColumnsJSON, arg.UploadedAt,
		arg.InvalidDates, arg.InvalidMinutes, arg.SkippedRows)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const insertRecord = `
INSERT INTO upload_records (fingerprint, row_index, global_project, project_name, department, user, date, minutes, minutes_invalid, extra_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertRecordParams struct {
	Fingerprint   string
	RowIndex      int64
	GlobalProject string
	ProjectName   string
	Department    string
	User          string
	Date          sql.NullString
	Minutes       float64
	MinutesBad    bool
	ExtraJSON     sql.NullString
}

// PrepareInsertRecord prepares the record insert for batch use.
func (q *Queries) PrepareInsertRecord(ctx context.Context) (*sql.Stmt, error) {
	return q.db.PrepareContext(ctx, insertRecord)
}

func execInsertRecord(ctx context.Context, stmt *sql.Stmt, arg InsertRecordParams) error {
	_, err := stmt.ExecContext(ctx,
		arg.Fingerprint, arg.RowIndex, arg.GlobalProject, arg.ProjectName, arg.Department, arg.User,
		arg.Date, arg.Minutes, arg.MinutesBad, arg.ExtraJSON)
	return err
}

const uploadColumns = `fingerprint, filename, size_bytes, row_count, total_hours, columns_json, uploaded_at, reported_at,
invalid_dates, invalid_minutes, skipped_rows`

type UploadRow struct {
	Fingerprint string
	Filename    string
	SizeBytes   int64
	RowCount    int64
	TotalHours  float64
	ColumnsJSON string
	UploadedAt  time.Time
	ReportedAt  sql.NullTime

	InvalidDates   int64
	InvalidMinutes int64
	SkippedRows    int64
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(s rowScanner) (UploadRow, error) {
	var u UploadRow
	err := s.Scan(&u.Fingerprint, &u.Filename, &u.SizeBytes, &u.RowCount, &u.TotalHours, &u.ColumnsJSON, &u.UploadedAt, &u.ReportedAt,
		&u.InvalidDates, &u.InvalidMinutes, &u.SkippedRows)
	return u, err
}

const getUpload = `SELECT ` + uploadColumns + ` FROM uploads WHERE fingerprint = ?`

func (q *Queries) GetUpload(ctx context.Context, fingerprint string) (UploadRow, error) {
	return scanUpload(q.db.QueryRowContext(ctx, getUpload, fingerprint))
}

const listUploads = `SELECT ` + uploadColumns + ` FROM uploads ORDER BY uploaded_at DESC, fingerprint LIMIT ?`

func (q *Queries) ListUploads(ctx context.Context, limit int64) ([]UploadRow, error) {
	rows, err := q.db.QueryContext(ctx, listUploads, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []UploadRow
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const listUnreported = `SELECT ` + uploadColumns + ` FROM uploads WHERE reported_at IS NULL ORDER BY uploaded_at, fingerprint LIMIT ?`

func (q *Queries) ListUnreported(ctx context.Context, limit int64) ([]UploadRow, error) {
	rows, err := q.db.QueryContext(ctx, listUnreported, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []UploadRow
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const claimReport = `UPDATE uploads SET reported_at = ? WHERE fingerprint = ? AND reported_at IS NULL`

func (q *Queries) ClaimReport(ctx context.Context, fingerprint string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimReport, at, fingerprint)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const releaseReport = `UPDATE uploads SET reported_at = NULL WHERE fingerprint = ? AND reported_at = ?`

func (q *Queries) ReleaseReport(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, releaseReport, fingerprint, at)
	return err
}

const listRecords = `
SELECT row_index, global_project, project_name, department, user, date, minutes, minutes_invalid, extra_json
FROM upload_records
WHERE fingerprint = ?
ORDER BY row_index
`

type RecordRow struct {
	RowIndex      int64
	GlobalProject string
	ProjectName   string
	Department    string
	User          string
	Date          sql.NullString
	Minutes       float64
	MinutesBad    bool
	ExtraJSON     sql.NullString
}

func (q *Queries) ListRecords(ctx context.Context, fingerprint string) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecords, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.RowIndex, &r.GlobalProject, &r.ProjectName, &r.Department, &r.User, &r.Date, &r.Minutes, &r.MinutesBad, &r.ExtraJSON); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
