package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is the lookup-or-store contract shared by the table and session caches.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Stats are cumulative counters of a cache.
type Stats struct {
	Hits      uint64 `json:"hits" yaml:"hits"`
	Misses    uint64 `json:"misses" yaml:"misses"`
	Evictions uint64 `json:"evictions" yaml:"evictions"`
	Expired   uint64 `json:"expired" yaml:"expired"`
	Size      int    `json:"size" yaml:"size"`
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache.
type Manager struct {
	mu     sync.Mutex
	caches map[string]Cleaner
	stop   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

// NewManager creates a cleanup manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		caches: make(map[string]Cleaner),
		logger: logger,
	}
}

// Register adds a named cache to the cleanup sweep.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// CleanAll runs one sweep and returns the number of entries removed per cache.
func (m *Manager) CleanAll() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := make(map[string]int, len(m.caches))
	for name, c := range m.caches {
		removed[name] = c.CleanExpired()
	}
	return removed
}

// StartCleanup sweeps every interval until ctx is done or Stop is called.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for name, n := range m.CleanAll() {
					if n > 0 {
						m.logger.Debug("Cache cleanup", "cache", name, "removed", n)
					}
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
