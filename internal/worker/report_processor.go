package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProcessorConfig holds configuration for the pending-report poller.
type ProcessorConfig struct {
	// PollInterval is how often to look for unreported uploads (default: 5m)
	PollInterval time.Duration
}

// DefaultProcessorConfig returns sensible defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{PollInterval: 5 * time.Minute}
}

// Processor periodically reports uploads that the AMQP path missed.
type Processor struct {
	worker *ReportWorker
	config ProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewProcessor(worker *ReportWorker, config ProcessorConfig) *Processor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultProcessorConfig().PollInterval
	}
	return &Processor{worker: worker, config: config}
}

// Start begins the polling loop. Returns an error if already running.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("report processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.worker.logger.InfoContext(ctx, "Report processor started",
		"poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for the current batch.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.worker.logger.InfoContext(ctx, "Report processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.worker.logger.WarnContext(ctx, "Report processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.worker.ProcessPending(ctx); err != nil {
				p.worker.logger.ErrorContext(ctx, "Failed to process pending uploads", "error", err)
			}
		}
	}
}
