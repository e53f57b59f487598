package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hoursboard/internal/amqp"
	"hoursboard/internal/loader"
	"hoursboard/internal/log"
	"hoursboard/internal/storage"
)

const sampleCSV = `globalProject,projectName,department,user,Date,time (minutes)
alpha,web,eng,a,2024-01-10,120
alpha,api,eng,b,2024-01-20,60
beta,web,ops,a,2024-02-05,90
beta,ops,ops,c,2024-03-01,30
gamma,web,eng,a,,45
`

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.UploadLoadedMessage
	err  error
}

func (p *fakePublisher) PublishUploadLoaded(_ context.Context, msg *amqp.UploadLoadedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.New(cfg)
}

func newLoader() *loader.Loader {
	return loader.New(4, time.Hour, quietLogger())
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "hoursboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

var errBoom = errors.New("boom")
