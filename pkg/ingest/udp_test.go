package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlab/connwatch/pkg/analytics/store"
)

func startTestListener(t *testing.T) (*UDPListener, *Ingestor, *captureStore) {
	t.Helper()
	capture := &captureStore{}
	ing := New(Config{Store: capture, Source: store.BatchSourceSyslog})
	listener := NewUDPListener(UDPConfig{Addr: "127.0.0.1:0"}, ing)
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(func() { listener.Stop(3 * time.Second) })
	return listener, ing, capture
}

func dialListener(t *testing.T, listener *UDPListener) net.Conn {
	t.Helper()
	addr := listener.Addr()
	require.NotNil(t, addr)
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPListenerEndToEnd(t *testing.T) {
	listener, ing, capture := startTestListener(t)
	conn := dialListener(t, listener)

	// Two records in one datagram: the second record start completes the
	// first, and the listener drain on Stop completes the second.
	_, err := conn.Write([]byte(testConnOpen + "\n" + testDevice + "\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return ing.Stats().Snapshot().Lines == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, ing.PendingRows())

	require.NoError(t, listener.Stop(3*time.Second))
	assert.Equal(t, 2, ing.PendingRows())

	require.NoError(t, ing.Flush(context.Background()))
	batches := capture.captured()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].RawLogs, 2)
	assert.Len(t, batches[0].Events, 1)
	assert.Len(t, batches[0].Devices, 1)

	snap := ing.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.UDPPackets)
	assert.Equal(t, int64(2), snap.Lines)
	assert.Equal(t, int64(2), snap.RecordsTotal)
}

func TestUDPListenerReassemblesAcrossDatagrams(t *testing.T) {
	listener, ing, capture := startTestListener(t)
	conn := dialListener(t, listener)

	for _, payload := range []string{
		testConnOpen + "\n",
		"    spilled continuation text\n",
		testConnHA + "\n",
	} {
		_, err := conn.Write([]byte(payload))
		require.NoError(t, err)
	}

	// The third datagram's record start closes the first record, spanning
	// the first two datagrams.
	assert.Eventually(t, func() bool {
		return ing.PendingRows() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, listener.Stop(3*time.Second))
	require.NoError(t, ing.Flush(context.Background()))

	batches := capture.captured()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].RawLogs, 2)
	assert.Contains(t, batches[0].RawLogs[0].RawRecord, "spilled continuation text")
	assert.Equal(t, "gw-lab", batches[0].RawLogs[0].Device)
	assert.Equal(t, "gw-ha_Master", batches[0].RawLogs[1].Device)
}

func TestUDPListenerKeepsPeersSeparate(t *testing.T) {
	listener, ing, capture := startTestListener(t)
	connA := dialListener(t, listener)
	connB := dialListener(t, listener)

	// Each peer holds an open record; neither may complete the other's.
	_, err := connA.Write([]byte(testConnOpen + "\n"))
	require.NoError(t, err)
	_, err = connB.Write([]byte(testConnHA + "\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return ing.Stats().Snapshot().UDPPackets == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, ing.PendingRows(), "both records are still pending in their assemblers")

	require.NoError(t, listener.Stop(3*time.Second))
	assert.Equal(t, 2, ing.PendingRows())

	require.NoError(t, ing.Flush(context.Background()))
	batches := capture.captured()
	require.Len(t, batches, 1)
	devices := []string{batches[0].RawLogs[0].Device, batches[0].RawLogs[1].Device}
	assert.ElementsMatch(t, []string{"gw-lab", "gw-ha_Master"}, devices)
}
