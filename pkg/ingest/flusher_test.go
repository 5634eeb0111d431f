package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlab/connwatch/pkg/analytics/store"
)

func TestFlusherPeriodicFlush(t *testing.T) {
	capture := &captureStore{}
	ing := New(Config{Store: capture, Source: store.BatchSourceSyslog})
	flusher := NewFlusher(ing, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, ing.ProcessRecords(ctx, []string{testConnOpen}))
	require.NoError(t, flusher.Start(ctx))
	defer flusher.Stop(time.Second)

	assert.Eventually(t, func() bool {
		return len(capture.captured()) >= 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, ing.PendingRows())
}

func TestFlusherKickFlushesEarly(t *testing.T) {
	capture := &captureStore{}
	ing := New(Config{Store: capture, Source: store.BatchSourceSyslog, BatchSize: 1})
	flusher := NewFlusher(ing, time.Hour)
	require.NoError(t, flusher.Start(context.Background()))
	defer flusher.Stop(time.Second)

	require.NoError(t, ing.ProcessRecords(context.Background(), []string{testConnOpen}))

	assert.Eventually(t, func() bool {
		return len(capture.captured()) == 1
	}, time.Second, 10*time.Millisecond, "batch-size kick must beat the hour ticker")
}

func TestFlusherFinalFlushOnStop(t *testing.T) {
	capture := &captureStore{}
	ing := New(Config{Store: capture, Source: store.BatchSourceSyslog})
	flusher := NewFlusher(ing, time.Hour)
	require.NoError(t, flusher.Start(context.Background()))

	require.NoError(t, ing.ProcessRecords(context.Background(), []string{testConnOpen}))
	require.NoError(t, flusher.Stop(time.Second))

	assert.Len(t, capture.captured(), 1)
	assert.NoError(t, flusher.Stop(time.Second), "second stop is a no-op")
}
