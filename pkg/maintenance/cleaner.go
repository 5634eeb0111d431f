package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/internal/telemetry"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/metrics"
)

const (
	// DefaultCleanupDelay is how long after boot the first pass waits, so
	// startup recovery and the first flushes settle first.
	DefaultCleanupDelay = 60 * time.Second

	// DefaultCleanupInterval is the gap between scheduled passes.
	DefaultCleanupInterval = time.Hour

	// deleteBatchSize bounds each retention DELETE.
	deleteBatchSize = 10000

	// vacuumRowThreshold is the total deleted-row count past which a pass
	// reclaims file space.
	vacuumRowThreshold = 50000
)

// CleanerStore is the persistence surface a retention pass needs.
type CleanerStore interface {
	GetRetentionPolicy(ctx context.Context) (*models.RetentionPolicy, error)
	HasActiveIngestJobs(ctx context.Context) (bool, error)
	SyslogOnlyFirewallKeys(ctx context.Context) ([]string, error)
	ExpandDeviceKeys(ctx context.Context, keys []string) ([]string, error)
	DeleteEventsBefore(ctx context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error)
	DeleteRawLogsBefore(ctx context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error)
	Vacuum(ctx context.Context) (bool, error)
	SetCleanupSummary(ctx context.Context, summary *models.CleanupSummary) error
}

// CleanupResult reports one retention pass: either the reason it was skipped
// or the summary that was persisted.
type CleanupResult struct {
	Skipped bool                   `json:"skipped,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Summary *models.CleanupSummary `json:"summary,omitempty"`
}

// CleanerConfig wires a Cleaner.
type CleanerConfig struct {
	// StartupDelay overrides DefaultCleanupDelay when positive.
	StartupDelay time.Duration

	// Interval overrides DefaultCleanupInterval when positive.
	Interval time.Duration

	// Metrics observes completed passes. Nil disables.
	Metrics metrics.RetentionMetrics
}

// Cleaner deletes events and raw logs past the retention window on a
// schedule. Only syslog-only firewalls are touched; imported snapshots are
// the operator's to purge.
type Cleaner struct {
	store CleanerStore
	cfg   CleanerConfig

	// runMu serializes the scheduled pass with manual triggers.
	runMu sync.Mutex

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	wg        sync.WaitGroup
}

// NewCleaner returns an unstarted cleaner.
func NewCleaner(st CleanerStore, cfg CleanerConfig) *Cleaner {
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = DefaultCleanupDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCleanupInterval
	}
	return &Cleaner{store: st, cfg: cfg}
}

// Start launches the scheduled loop. Safe to call once.
func (c *Cleaner) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	c.stopCh = make(chan struct{})
	c.stoppedCh = make(chan struct{})
	c.wg.Add(1)
	go c.loop(ctx)
	go func() {
		c.wg.Wait()
		close(c.stoppedCh)
	}()
	logger.Info("retention cleaner started",
		"startup_delay", c.cfg.StartupDelay.String(),
		"interval", c.cfg.Interval.String())
	return nil
}

// Stop signals the loop and waits for an in-flight pass to finish.
func (c *Cleaner) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.stopCh)
	stoppedCh := c.stoppedCh
	c.mu.Unlock()

	select {
	case <-stoppedCh:
		logger.Info("retention cleaner stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("retention cleaner did not stop within %s", timeout)
	}
}

func (c *Cleaner) loop(ctx context.Context) {
	defer c.wg.Done()
	delay := time.NewTimer(c.cfg.StartupDelay)
	defer delay.Stop()
	select {
	case <-c.stopCh:
		return
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	c.runScheduled(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runScheduled(ctx)
		}
	}
}

func (c *Cleaner) runScheduled(ctx context.Context) {
	result, err := c.RunCleanup(ctx)
	if err != nil {
		logger.Error("scheduled cleanup failed", logger.Err(err))
		return
	}
	if result.Skipped {
		logger.Info("scheduled cleanup skipped", "reason", result.Reason)
	}
}

// RunCleanup executes one retention pass. Also called directly for the
// manual maintenance trigger; passes never overlap.
func (c *Cleaner) RunCleanup(ctx context.Context) (*CleanupResult, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	start := time.Now()

	policy, err := c.store.GetRetentionPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("load retention policy: %w", err)
	}
	if policy == nil || !policy.Enabled {
		return &CleanupResult{Skipped: true, Reason: "retention disabled"}, nil
	}
	policy.Clamp()
	cutoff := time.Now().UTC().AddDate(0, 0, -policy.KeepDays)

	ctx, span := telemetry.StartCleanupSpan(ctx, policy.KeepDays)
	defer span.End()

	// Deleting under an active import fights it for the database lock.
	busy, err := c.store.HasActiveIngestJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("check active ingest jobs: %w", err)
	}
	if busy {
		return &CleanupResult{Skipped: true, Reason: "ingest job in progress"}, nil
	}

	keys, err := c.store.SyslogOnlyFirewallKeys(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := c.store.ExpandDeviceKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return &CleanupResult{Skipped: true, Reason: "no syslog-only firewalls"}, nil
	}

	deletedEvents, err := c.store.DeleteEventsBefore(ctx, devices, cutoff, deleteBatchSize)
	if err != nil {
		return nil, err
	}
	deletedRawLogs, err := c.store.DeleteRawLogsBefore(ctx, devices, cutoff, deleteBatchSize)
	if err != nil {
		return nil, err
	}

	vacuumRan := false
	if deletedEvents+deletedRawLogs >= vacuumRowThreshold {
		ran, err := c.store.Vacuum(ctx)
		if err != nil {
			logger.Warn("vacuum failed", logger.Err(err))
		} else {
			vacuumRan = ran
		}
	}

	summary := &models.CleanupSummary{
		LastRun:        time.Now().UTC(),
		DurationMs:     time.Since(start).Milliseconds(),
		DeletedEvents:  deletedEvents,
		DeletedRawLogs: deletedRawLogs,
		VacuumRan:      vacuumRan,
		KeepDays:       policy.KeepDays,
		Cutoff:         cutoff,
	}
	if err := c.store.SetCleanupSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist cleanup summary: %w", err)
	}
	metrics.RecordCleanup(c.cfg.Metrics, deletedEvents, deletedRawLogs, time.Since(start))

	logger.Info("cleanup finished",
		"deleted_events", deletedEvents,
		"deleted_raw_logs", deletedRawLogs,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", summary.DurationMs,
		"vacuum_ran", vacuumRan)
	return &CleanupResult{Summary: summary}, nil
}
