// Package loader turns spreadsheet files into normalized record tables and
// memoizes them by content fingerprint.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"hoursboard/internal/cache"
	"hoursboard/internal/core"
	"hoursboard/internal/log"
)

// Result is a loaded table and the identity it is cached under.
type Result struct {
	Fingerprint string
	Table       *core.Table
	CacheHit    bool
}

// Loader parses spreadsheets once per fingerprint. Concurrent loads of the
// same content share a single parse.
type Loader struct {
	tables *cache.LRUCache[*core.Table]
	group  singleflight.Group
	logger *log.Logger
	parses atomic.Int64
}

// New creates a loader whose cache holds at most size tables for ttl.
func New(size int, ttl time.Duration, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLoader)
	return &Loader{
		tables: cache.NewLRUCache[*core.Table](size, ttl, cache.WithEvictHook(func(fp string, t *core.Table) {
			logger.Debug("Table evicted", log.FieldFingerprint, fp, log.FieldRows, len(t.Records))
		})),
		logger: logger,
	}
}

// Fingerprint identifies file content.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintRows identifies a row matrix, as returned by a sheets import.
func FingerprintRows(rows [][]string) string {
	h := sha256.New()
	for _, r := range rows {
		for _, c := range r {
			h.Write([]byte(c))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Load returns the table for a file, parsing it only on a cache miss.
func (l *Loader) Load(ctx context.Context, filename string, data []byte) (Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return Result{}, err
	}
	return l.load(ctx, Fingerprint(data), func() (*core.Table, error) {
		rows, err := Decode(filename, data)
		if err != nil {
			return nil, err
		}
		return buildFor(format, rows)
	})
}

// LoadRows is Load for an already decoded row matrix.
func (l *Loader) LoadRows(ctx context.Context, rows [][]string) (Result, error) {
	return l.load(ctx, FingerprintRows(rows), func() (*core.Table, error) {
		return BuildTable(rows)
	})
}

func (l *Loader) load(ctx context.Context, fp string, parse func() (*core.Table, error)) (Result, error) {
	if t, ok := l.tables.Get(fp); ok {
		return Result{Fingerprint: fp, Table: t, CacheHit: true}, nil
	}

	ch := l.group.DoChan(fp, func() (any, error) {
		if t, ok := l.tables.Get(fp); ok {
			return t, nil
		}
		start := time.Now()
		t, err := parse()
		if err != nil {
			return nil, err
		}
		l.parses.Add(1)
		l.tables.Set(fp, t)
		l.logger.Debug("Spreadsheet parsed",
			log.FieldFingerprint, fp,
			log.FieldRows, len(t.Records),
			log.FieldInvalidDates, t.Warnings.InvalidDates,
			log.FieldInvalidMinute, t.Warnings.InvalidMinutes,
			log.FieldDuration, time.Since(start).Milliseconds())
		return t, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return Result{Fingerprint: fp, Table: res.Val.(*core.Table)}, nil
	}
}

// Get returns a cached table.
func (l *Loader) Get(fp string) (*core.Table, bool) {
	return l.tables.Get(fp)
}

// Put caches a table rebuilt elsewhere, e.g. from the upload catalog.
func (l *Loader) Put(fp string, t *core.Table) {
	l.tables.Set(fp, t)
}

// Cleaner exposes the table cache to a cache.Manager.
func (l *Loader) Cleaner() cache.Cleaner {
	return l.tables
}

// Stats reports table cache counters.
func (l *Loader) Stats() cache.Stats {
	return l.tables.Stats()
}

// Parses counts how many times a spreadsheet was actually parsed.
func (l *Loader) Parses() int64 {
	return l.parses.Load()
}

// LoadFile reads and parses a spreadsheet from disk without caching.
func LoadFile(path string) (*core.Table, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, "", err
	}
	rows, err := Decode(path, data)
	if err != nil {
		return nil, "", err
	}
	t, err := buildFor(format, rows)
	if err != nil {
		return nil, "", err
	}
	return t, Fingerprint(data), nil
}
