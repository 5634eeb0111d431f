package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
)

// DefaultFlushInterval is the target time between a packet arriving on the
// live path and its rows becoming queryable.
const DefaultFlushInterval = 2 * time.Second

// Flusher drives batch persistence for the live syslog path: a worker
// goroutine flushes the ingestor every interval, early when the batch-size
// kick fires, and one final time on shutdown.
type Flusher struct {
	ingestor *Ingestor
	interval time.Duration

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	wg        sync.WaitGroup
}

// NewFlusher returns an unstarted flusher; interval defaults to
// DefaultFlushInterval when not positive.
func NewFlusher(ing *Ingestor, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{ingestor: ing, interval: interval}
}

// Start launches the flush worker. Safe to call once.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}
	f.started = true
	f.stopCh = make(chan struct{})
	f.stoppedCh = make(chan struct{})
	f.wg.Add(1)
	go f.worker(ctx)
	go func() {
		f.wg.Wait()
		close(f.stoppedCh)
	}()
	logger.Info("ingest flusher started", "interval", f.interval.String())
	return nil
}

// Stop signals the worker and waits for its final flush.
func (f *Flusher) Stop(timeout time.Duration) error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = false
	close(f.stopCh)
	stoppedCh := f.stoppedCh
	f.mu.Unlock()

	select {
	case <-stoppedCh:
		logger.Info("ingest flusher stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("ingest flusher did not stop within %s", timeout)
	}
}

func (f *Flusher) worker(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stopCh:
			f.flush(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			f.flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			f.flush(ctx)
		case <-f.ingestor.KickCh():
			f.flush(ctx)
		}
	}
}

// flush drops a failed batch on the floor after counting it: the live path
// keeps receiving either way, and raw packets are not replayable.
func (f *Flusher) flush(ctx context.Context) {
	if err := f.ingestor.Flush(ctx); err != nil {
		logger.Warn("ingest batch flush failed", logger.Err(err))
	}
}
