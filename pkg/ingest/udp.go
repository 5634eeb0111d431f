package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/metrics"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

const (
	// udpReadSize covers the largest datagram a sender can emit.
	udpReadSize = 64 * 1024

	// maxPeers caps the per-source assembler table; the oldest peer is
	// flushed out when a new source would exceed it.
	maxPeers = 512

	// peerIdleTTL flushes assemblers whose source went quiet, so the last
	// multi-line record of a burst is not held until the next packet.
	peerIdleTTL = 5 * time.Second

	// readPollInterval bounds how long a blocked read can delay shutdown
	// and idle-peer sweeps.
	readPollInterval = time.Second
)

// UDPConfig configures the syslog listener.
type UDPConfig struct {
	// Addr is the listen address, host:port.
	Addr string

	// ReadBuffer sets SO_RCVBUF when positive. Loss shows up as gaps in
	// udp_packets versus the sender's own counters.
	ReadBuffer int

	// Metrics, when set, observes datagrams and assembler drops.
	Metrics metrics.SyslogMetrics
}

type peerState struct {
	assembler *netwall.Reconstructor
	lastSeen  time.Time
	dropped   int64
}

// UDPListener receives NetWall syslog datagrams, splits them into lines, and
// reassembles records per source address before handing them to the
// ingestor. One assembler per peer keeps interleaved multi-line records from
// different firewalls out of each other's buffers.
type UDPListener struct {
	cfg      UDPConfig
	ingestor *Ingestor

	mu        sync.Mutex
	conn      *net.UDPConn
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}

	// peers is owned by the read loop goroutine.
	peers map[string]*peerState
}

// NewUDPListener returns an unstarted listener feeding ing.
func NewUDPListener(cfg UDPConfig, ing *Ingestor) *UDPListener {
	return &UDPListener{
		cfg:      cfg,
		ingestor: ing,
		peers:    make(map[string]*peerState),
	}
}

// Start binds the socket and launches the read loop. Safe to call once.
func (l *UDPListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve syslog listen address %q: %w", l.cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen udp %q: %w", l.cfg.Addr, err)
	}
	if l.cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(l.cfg.ReadBuffer); err != nil {
			logger.Warn("failed to set udp read buffer",
				logger.Bytes(int64(l.cfg.ReadBuffer)), logger.Err(err))
		}
	}
	l.conn = conn
	l.started = true
	l.stopCh = make(chan struct{})
	l.stoppedCh = make(chan struct{})
	go l.readLoop(ctx)
	logger.Info("syslog udp listener started", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, nil before Start. Mainly for tests that
// listen on port 0.
func (l *UDPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stop halts the read loop, assembling any buffered partial records into the
// pending batch. Writing that batch out stays with the flusher, so stop the
// listener first and the flusher second.
func (l *UDPListener) Stop(timeout time.Duration) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = false
	close(l.stopCh)
	conn := l.conn
	l.conn = nil
	stoppedCh := l.stoppedCh
	l.mu.Unlock()

	select {
	case <-stoppedCh:
	case <-time.After(timeout):
		conn.Close()
		return fmt.Errorf("syslog udp listener did not stop within %s", timeout)
	}
	if err := conn.Close(); err != nil {
		return err
	}
	logger.Info("syslog udp listener stopped")
	return nil
}

func (l *UDPListener) readLoop(ctx context.Context) {
	defer close(l.stoppedCh)
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	buf := make([]byte, udpReadSize)
	for {
		select {
		case <-ctx.Done():
			l.drain(ctx)
			return
		case <-l.stopCh:
			l.drain(ctx)
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				l.flushIdlePeers(ctx)
				continue
			}
			select {
			case <-ctx.Done():
			case <-l.stopCh:
			default:
				logger.Error("syslog udp read failed", logger.Err(err))
			}
			l.drain(ctx)
			return
		}
		l.handleDatagram(ctx, buf[:n], addr)
	}
}

func (l *UDPListener) handleDatagram(ctx context.Context, data []byte, addr *net.UDPAddr) {
	stats := l.ingestor.Stats()
	stats.NotePacket(len(data))
	metrics.RecordDatagram(l.cfg.Metrics, len(data))
	peer := l.peer(ctx, addr.String())
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.NoteLine(line)
		if records := peer.assembler.Feed(line); len(records) > 0 {
			l.process(ctx, records)
		}
	}
	if dropped := peer.assembler.Dropped(); dropped > peer.dropped {
		metrics.RecordDrops(l.cfg.Metrics, dropped-peer.dropped)
		peer.dropped = dropped
	}
}

func (l *UDPListener) process(ctx context.Context, records []string) {
	if err := l.ingestor.ProcessRecords(ctx, records); err != nil {
		logger.Warn("failed to stage syslog records", logger.Err(err))
	}
}

func (l *UDPListener) peer(ctx context.Context, key string) *peerState {
	now := time.Now()
	if p, ok := l.peers[key]; ok {
		p.lastSeen = now
		return p
	}
	if len(l.peers) >= maxPeers {
		l.evictOldestPeer(ctx)
	}
	p := &peerState{assembler: netwall.NewReconstructor(), lastSeen: now}
	l.peers[key] = p
	return p
}

func (l *UDPListener) evictOldestPeer(ctx context.Context) {
	oldestKey := ""
	var oldest time.Time
	for key, p := range l.peers {
		if oldestKey == "" || p.lastSeen.Before(oldest) {
			oldestKey = key
			oldest = p.lastSeen
		}
	}
	if oldestKey == "" {
		return
	}
	if records := l.peers[oldestKey].assembler.Flush(); len(records) > 0 {
		l.process(ctx, records)
	}
	delete(l.peers, oldestKey)
}

func (l *UDPListener) flushIdlePeers(ctx context.Context) {
	cutoff := time.Now().Add(-peerIdleTTL)
	var stale []string
	for key, p := range l.peers {
		if p.lastSeen.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	for _, key := range stale {
		if records := l.peers[key].assembler.Flush(); len(records) > 0 {
			l.process(ctx, records)
		}
		delete(l.peers, key)
	}
}

// drain flushes every assembler on shutdown. The surrounding context may
// already be canceled, so classification still gets a live one.
func (l *UDPListener) drain(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	keys := make([]string, 0, len(l.peers))
	for key := range l.peers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if records := l.peers[key].assembler.Flush(); len(records) > 0 {
			l.process(ctx, records)
		}
		delete(l.peers, key)
	}
}
