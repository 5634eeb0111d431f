package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kvasirlab/connwatch/pkg/metrics"
)

func init() {
	metrics.RegisterIngestMetricsConstructor(NewIngestMetrics)
	metrics.RegisterSyslogMetricsConstructor(NewSyslogMetrics)
}

// ingestMetrics is the Prometheus implementation of metrics.IngestMetrics.
type ingestMetrics struct {
	lines         prometheus.Counter
	records       *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
	flushRows     prometheus.Histogram
}

// NewIngestMetrics creates the Prometheus-backed IngestMetrics. Returns nil
// when metrics are disabled.
func NewIngestMetrics() metrics.IngestMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &ingestMetrics{
		lines: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "connwatch_ingest_lines_total",
			Help: "Non-blank syslog lines accepted by the pipeline",
		}),
		records: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "connwatch_ingest_records_total",
			Help: "Assembled records by outcome",
		}, []string{"outcome"}), // "ok", "parse_err", "filtered_id"
		flushDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "connwatch_ingest_flush_duration_seconds",
			Help:    "Duration of batch flush transactions",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}), // "ok", "error"
		flushRows: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "connwatch_ingest_flush_rows",
			Help: "Raw log rows per flushed batch",
			Buckets: []float64{
				1,     // idle-interval flushes
				10,
				100,
				1000,
				5000,  // the import batch threshold
				10000,
			},
		}),
	}
}

func (m *ingestMetrics) RecordLine() {
	m.lines.Inc()
}

func (m *ingestMetrics) RecordRecord(outcome string) {
	m.records.WithLabelValues(outcome).Inc()
}

func (m *ingestMetrics) ObserveFlush(rows int, duration time.Duration, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.flushDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if success {
		m.flushRows.Observe(float64(rows))
	}
}

// syslogMetrics is the Prometheus implementation of metrics.SyslogMetrics.
type syslogMetrics struct {
	datagrams     prometheus.Counter
	datagramBytes prometheus.Histogram
	drops         prometheus.Counter
}

// NewSyslogMetrics creates the Prometheus-backed SyslogMetrics. Returns nil
// when metrics are disabled.
func NewSyslogMetrics() metrics.SyslogMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &syslogMetrics{
		datagrams: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "connwatch_syslog_datagrams_total",
			Help: "UDP datagrams received",
		}),
		datagramBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "connwatch_syslog_datagram_bytes",
			Help: "Size distribution of received datagrams",
			Buckets: []float64{
				128,
				512,
				1024,  // a single record
				4096,
				16384, // multi-record bursts
				65536,
			},
		}),
		drops: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "connwatch_syslog_dropped_lines_total",
			Help: "Lines discarded by the record assembler",
		}),
	}
}

func (m *syslogMetrics) RecordDatagram(bytes int) {
	m.datagrams.Inc()
	m.datagramBytes.Observe(float64(bytes))
}

func (m *syslogMetrics) RecordDrops(n int64) {
	m.drops.Add(float64(n))
}
