package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

type deleteCall struct {
	devices   []string
	cutoff    time.Time
	batchSize int
}

type stubCleanerStore struct {
	mu sync.Mutex

	policy    *models.RetentionPolicy
	policyErr error
	busy      bool
	keys      []string
	devices   []string

	deletedEvents  int64
	deletedRawLogs int64
	deleteErr      error
	vacuumOK       bool
	vacuumErr      error

	eventCalls  []deleteCall
	rawCalls    []deleteCall
	vacuumCalls int
	summaries   []*models.CleanupSummary
}

func (s *stubCleanerStore) GetRetentionPolicy(context.Context) (*models.RetentionPolicy, error) {
	if s.policyErr != nil {
		return nil, s.policyErr
	}
	if s.policy == nil {
		return models.DefaultRetentionPolicy(), nil
	}
	clone := *s.policy
	return &clone, nil
}

func (s *stubCleanerStore) HasActiveIngestJobs(context.Context) (bool, error) {
	return s.busy, nil
}

func (s *stubCleanerStore) SyslogOnlyFirewallKeys(context.Context) ([]string, error) {
	return s.keys, nil
}

func (s *stubCleanerStore) ExpandDeviceKeys(_ context.Context, keys []string) ([]string, error) {
	return s.devices, nil
}

func (s *stubCleanerStore) DeleteEventsBefore(_ context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.eventCalls = append(s.eventCalls, deleteCall{devices: devices, cutoff: cutoff, batchSize: batchSize})
	return s.deletedEvents, nil
}

func (s *stubCleanerStore) DeleteRawLogsBefore(_ context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawCalls = append(s.rawCalls, deleteCall{devices: devices, cutoff: cutoff, batchSize: batchSize})
	return s.deletedRawLogs, nil
}

func (s *stubCleanerStore) Vacuum(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vacuumCalls++
	return s.vacuumOK, s.vacuumErr
}

func (s *stubCleanerStore) SetCleanupSummary(_ context.Context, summary *models.CleanupSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *stubCleanerStore) summaryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

func activeStore() *stubCleanerStore {
	return &stubCleanerStore{
		policy:  &models.RetentionPolicy{Enabled: true, KeepDays: 3},
		keys:    []string{"ha:gw"},
		devices: []string{"gw_Master", "gw_Slave"},
	}
}

func TestCleanupSkipsWhenRetentionDisabled(t *testing.T) {
	st := activeStore()
	st.policy = &models.RetentionPolicy{Enabled: false, KeepDays: 3}
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "retention disabled", result.Reason)
	assert.Empty(t, st.eventCalls)
	assert.Empty(t, st.summaries)
}

func TestCleanupSkipsDuringImport(t *testing.T) {
	st := activeStore()
	st.busy = true
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "ingest job in progress", result.Reason)
	assert.Empty(t, st.eventCalls)
}

func TestCleanupSkipsWithoutSyslogFirewalls(t *testing.T) {
	st := activeStore()
	st.keys = nil
	st.devices = nil
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "no syslog-only firewalls", result.Reason)
	assert.Empty(t, st.eventCalls)
}

func TestCleanupDeletesAndPersistsSummary(t *testing.T) {
	st := activeStore()
	st.deletedEvents = 1200
	st.deletedRawLogs = 300
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	require.NotNil(t, result.Summary)

	require.Len(t, st.eventCalls, 1)
	call := st.eventCalls[0]
	assert.Equal(t, []string{"gw_Master", "gw_Slave"}, call.devices)
	assert.Equal(t, deleteBatchSize, call.batchSize)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -3), call.cutoff, time.Minute)
	require.Len(t, st.rawCalls, 1)

	summary := result.Summary
	assert.Equal(t, int64(1200), summary.DeletedEvents)
	assert.Equal(t, int64(300), summary.DeletedRawLogs)
	assert.Equal(t, 3, summary.KeepDays)
	assert.False(t, summary.VacuumRan, "1500 deleted rows stay under the vacuum threshold")
	assert.Equal(t, 0, st.vacuumCalls)
	assert.WithinDuration(t, time.Now().UTC(), summary.LastRun, time.Minute)

	require.Len(t, st.summaries, 1)
	assert.Equal(t, summary, st.summaries[0])
}

func TestCleanupVacuumsPastThreshold(t *testing.T) {
	st := activeStore()
	st.deletedEvents = 30000
	st.deletedRawLogs = 25000
	st.vacuumOK = true
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.vacuumCalls)
	assert.True(t, result.Summary.VacuumRan)
}

func TestCleanupVacuumFailureIsNotFatal(t *testing.T) {
	st := activeStore()
	st.deletedEvents = 60000
	st.vacuumErr = errors.New("disk full")
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Summary.VacuumRan)
	require.Len(t, st.summaries, 1)
}

func TestCleanupClampsKeepDays(t *testing.T) {
	st := activeStore()
	st.policy = &models.RetentionPolicy{Enabled: true, KeepDays: 9999}
	c := NewCleaner(st, CleanerConfig{})

	result, err := c.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 365, result.Summary.KeepDays)
	require.Len(t, st.eventCalls, 1)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -365), st.eventCalls[0].cutoff, time.Minute)
}

func TestCleanupDeleteErrorPropagates(t *testing.T) {
	st := activeStore()
	st.deleteErr = errors.New("database is locked")
	c := NewCleaner(st, CleanerConfig{})

	_, err := c.RunCleanup(context.Background())
	require.Error(t, err)
	assert.Empty(t, st.summaries)
}

func TestCleanerLifecycle(t *testing.T) {
	st := activeStore()
	c := NewCleaner(st, CleanerConfig{
		StartupDelay: 10 * time.Millisecond,
		Interval:     10 * time.Millisecond,
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool {
		return st.summaryCount() >= 2
	}, 5*time.Second, 5*time.Millisecond, "startup pass plus at least one scheduled pass")

	require.NoError(t, c.Stop(time.Second))
	require.NoError(t, c.Stop(time.Second), "second stop is a no-op")
}
