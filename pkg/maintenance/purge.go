package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/internal/telemetry"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// PurgeStore is the persistence surface a firewall purge needs.
type PurgeStore interface {
	HasActiveIngestJobs(ctx context.Context) (bool, error)
	CreateMaintenanceJob(ctx context.Context, job *models.MaintenanceJob) (string, error)
	StartMaintenanceJob(ctx context.Context, id string) error
	CompleteMaintenanceJob(ctx context.Context, id string, counts map[string]int64) error
	FailMaintenanceJob(ctx context.Context, id, message string, counts map[string]int64) error
	ResolveDeviceMembers(ctx context.Context, key string) ([]string, error)
	PurgeFirewallData(ctx context.Context, deviceKey string, members []string) (map[string]int64, error)
}

// Purger runs firewall purges as background maintenance jobs: every row tied
// to a device key is deleted table by table, with per-table counts recorded
// on the job.
type Purger struct {
	store PurgeStore
	wg    sync.WaitGroup
}

// NewPurger returns a purger using st.
func NewPurger(st PurgeStore) *Purger {
	return &Purger{store: st}
}

// StartPurge enqueues a purge job for deviceKey and runs it in the
// background. Returns models.ErrImportInProgress while any ingest job is
// uploading, queued, or running; purging rows an import is about to rewrite
// would leave both half done.
func (p *Purger) StartPurge(ctx context.Context, deviceKey string) (string, error) {
	busy, err := p.store.HasActiveIngestJobs(ctx)
	if err != nil {
		return "", fmt.Errorf("check active ingest jobs: %w", err)
	}
	if busy {
		return "", models.ErrImportInProgress
	}

	job := &models.MaintenanceJob{
		Type:      models.MaintTypePurgeFirewall,
		Status:    string(models.MaintQueued),
		DeviceKey: deviceKey,
	}
	id, err := p.store.CreateMaintenanceJob(ctx, job)
	if err != nil {
		return "", fmt.Errorf("create purge job: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// The purge outlives the request that started it.
		p.run(context.WithoutCancel(ctx), id, deviceKey)
	}()
	return id, nil
}

// Drain waits for in-flight purges to finish, up to timeout.
func (p *Purger) Drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("purge jobs did not finish within %s", timeout)
	}
}

func (p *Purger) run(ctx context.Context, id, deviceKey string) {
	ctx, span := telemetry.StartPurgeSpan(ctx, deviceKey)
	defer span.End()

	if err := p.store.StartMaintenanceJob(ctx, id); err != nil {
		if errors.Is(err, models.ErrJobConflict) {
			return
		}
		logger.Warn("failed to start purge job", logger.JobID(id), logger.Err(err))
		return
	}
	logger.Info("firewall purge started", logger.JobID(id), logger.Device(deviceKey))

	members, err := p.store.ResolveDeviceMembers(ctx, deviceKey)
	if err != nil {
		p.fail(ctx, id, fmt.Sprintf("resolve device members: %v", err), nil)
		return
	}

	counts, err := p.store.PurgeFirewallData(ctx, deviceKey, members)
	if err != nil {
		p.fail(ctx, id, err.Error(), counts)
		return
	}

	if err := p.store.CompleteMaintenanceJob(ctx, id, counts); err != nil {
		logger.Warn("failed to mark purge job done", logger.JobID(id), logger.Err(err))
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	logger.Info("firewall purge finished",
		logger.JobID(id), logger.Device(deviceKey), logger.Rows(total))
}

func (p *Purger) fail(ctx context.Context, id, message string, counts map[string]int64) {
	logger.Error("firewall purge failed", logger.JobID(id), "error", message)
	if err := p.store.FailMaintenanceJob(ctx, id, message, counts); err != nil {
		logger.Warn("failed to record purge failure", logger.JobID(id), logger.Err(err))
	}
}
