package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/classify"
	"github.com/kvasirlab/connwatch/pkg/metrics"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

// DefaultBatchSize is the pending raw-log threshold that triggers a flush.
const DefaultBatchSize = 5000

// Record id prefixes kept for persistence: CONN records (0060 classic, 60 on
// InControl exports) and DEVICE identification records (0890, 89). Records
// carrying any other id are counted and dropped before raw storage; records
// without an id pass through so their raw line is preserved.
var (
	acceptedIDPrefixes = []string{"0060", "60", "0890", "89"}
	deviceIDPrefixes   = []string{"0890", "89"}
)

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// BatchStore persists assembled ingest batches.
type BatchStore interface {
	WriteBatch(ctx context.Context, batch *store.Batch) error
}

// Config wires an Ingestor.
type Config struct {
	Store      BatchStore
	Classifier *classify.Classifier
	Stats      *Stats
	Source     store.BatchSource

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int

	// Collector, when set, aggregates per-upload counters for an import job.
	Collector *UploadCollector

	// Progress, when set, is called at flush time and its result persisted
	// with the batch, so job counters move atomically with the rows they
	// describe.
	Progress func() *store.JobProgress

	// Metrics, when set, observes flush durations and batch sizes.
	Metrics metrics.IngestMetrics
}

// Ingestor runs reconstructed records through the parser, the id filter, and
// the direction classifier, staging rows for batched persistence. Record
// reassembly stays with the callers: the UDP listener keeps one assembler
// per peer, an import job one per file, and both hand complete records in.
type Ingestor struct {
	store      BatchStore
	classifier *classify.Classifier
	stats      *Stats
	source     store.BatchSource
	batchSize  int
	collector  *UploadCollector
	progress   func() *store.JobProgress
	metrics    metrics.IngestMetrics

	kick chan struct{}

	mu      sync.Mutex
	pending *store.Batch
	misses  classify.MissCounter
}

// New returns an Ingestor staging batches for cfg.Source.
func New(cfg Config) *Ingestor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewStats()
	}
	return &Ingestor{
		store:      cfg.Store,
		classifier: cfg.Classifier,
		stats:      stats,
		source:     cfg.Source,
		batchSize:  batchSize,
		collector:  cfg.Collector,
		progress:   cfg.Progress,
		metrics:    cfg.Metrics,
		kick:       make(chan struct{}, 1),
		pending:    &store.Batch{Source: cfg.Source},
		misses:     make(classify.MissCounter),
	}
}

// Stats returns the pipeline counters, shared with the UDP listener and the
// stats API.
func (ing *Ingestor) Stats() *Stats { return ing.stats }

// KickCh signals that the pending batch reached the size threshold. The
// background flusher drains it; imports flush inline instead.
func (ing *Ingestor) KickCh() <-chan struct{} { return ing.kick }

// PendingRows reports how many raw log rows are staged.
func (ing *Ingestor) PendingRows() int {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return len(ing.pending.RawLogs)
}

// ProcessRecords parses and stages a slice of complete records. In import
// mode the pending batch is flushed synchronously whenever it reaches the
// size threshold and the first flush error is returned; the live path kicks
// the flusher goroutine instead and never fails.
func (ing *Ingestor) ProcessRecords(ctx context.Context, records []string) error {
	for _, raw := range records {
		if err := ing.processRecord(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}

func (ing *Ingestor) processRecord(ctx context.Context, raw string) error {
	ing.stats.NoteRecord()
	rec := netwall.ParseRecord(raw)

	id := rec.ID()
	if id != "" && !hasAnyPrefix(id, acceptedIDPrefixes) {
		ing.stats.NoteFiltered()
		if ing.collector != nil {
			ing.collector.FilteredID++
		}
		return nil
	}

	if rec.ParseStatus == netwall.StatusOK {
		ing.stats.NoteParseOK()
		if ing.collector != nil {
			ing.collector.ParseOK++
		}
	} else {
		ing.stats.NoteParseError()
		if ing.collector != nil {
			ing.collector.ParseErrors++
		}
	}

	rawLog := &models.RawLog{
		TsUTC:       rec.TS,
		Device:      rec.Device,
		RawRecord:   raw,
		ParseStatus: rec.ParseStatus,
		ParseError:  rec.ParseError,
	}

	var ev *models.Event
	var obs *models.DeviceIdentification
	recordMisses := classify.MissCounter(nil)
	if rec.ParseStatus == netwall.StatusOK {
		switch {
		case hasAnyPrefix(id, deviceIDPrefixes):
			obs = deviceObservation(&rec)
		case id != "":
			recordMisses = make(classify.MissCounter)
			ev = ing.buildEvent(ctx, &rec, recordMisses)
		}
	}

	ing.mu.Lock()
	ing.pending.RawLogs = append(ing.pending.RawLogs, rawLog)
	if obs != nil {
		ing.pending.Devices = append(ing.pending.Devices, obs)
	}
	if ev != nil {
		ing.pending.Events = append(ing.pending.Events, ev)
	}
	for miss, count := range recordMisses {
		ing.misses[miss] += count
	}
	full := len(ing.pending.RawLogs) >= ing.batchSize
	ing.mu.Unlock()

	ing.stats.NoteRawLog()
	if ing.collector != nil {
		ing.collector.NoteRaw(rec.Device, rec.TS)
	}
	if ev != nil {
		ing.stats.NoteEvent()
		if ing.collector != nil {
			ing.collector.NoteEvent(ev.TsUTC)
		}
	}

	if !full {
		return nil
	}
	if ing.source == store.BatchSourceImport {
		return ing.Flush(ctx)
	}
	select {
	case ing.kick <- struct{}{}:
	default:
	}
	return nil
}

// Flush persists everything pending in one transaction. The batch is
// detached before writing so record processing never waits on the database;
// a batch that fails to persist is dropped and counted, which on the import
// path fails the whole job rather than importing silently incomplete data.
func (ing *Ingestor) Flush(ctx context.Context) error {
	ing.mu.Lock()
	batch := ing.pending
	misses := ing.misses
	ing.pending = &store.Batch{Source: ing.source}
	ing.misses = make(classify.MissCounter)
	ing.mu.Unlock()

	if len(misses) > 0 {
		batch.Unclassified = make(map[store.UnclassifiedKey]int64, len(misses))
		for miss, count := range misses {
			batch.Unclassified[store.UnclassifiedKey{
				Device: miss.Device,
				Kind:   string(miss.Kind),
				Name:   miss.Name,
			}] += count
		}
	}
	if ing.progress != nil {
		batch.Job = ing.progress()
	}
	if batch.Empty() {
		return nil
	}
	start := time.Now()
	if err := ing.store.WriteBatch(ctx, batch); err != nil {
		metrics.ObserveFlush(ing.metrics, len(batch.RawLogs), time.Since(start), false)
		ing.stats.BatchError()
		return fmt.Errorf("persist ingest batch: %w", err)
	}
	metrics.ObserveFlush(ing.metrics, len(batch.RawLogs), time.Since(start), true)
	ing.stats.NoteFlushed()
	return nil
}

// buildEvent maps an accepted CONN record onto an event row. The syslog path
// stamps the pure canonical firewall key, so HA members group from the first
// packet; imports keep the raw device name because file exports are always
// single-node.
func (ing *Ingestor) buildEvent(ctx context.Context, rec *netwall.ParsedRecord, misses classify.MissCounter) *models.Event {
	var key, member string
	if ing.source == store.BatchSourceImport {
		key = netwall.CanonicalKeyForImport(rec.Device)
	} else {
		key, member = netwall.CanonicalKey(rec.Device)
	}

	ev := &models.Event{
		TsUTC:        rec.TS,
		Device:       rec.Device,
		DeviceMember: member,
		FirewallKey:  key,
		EventType:    rec.Field("event"),
		Action:       rec.Field("action"),
		Rule:         rec.Field("rule"),
		SatSrcRule:   rec.Field("satsrcrule"),
		SatDestRule:  rec.Field("satdestrule"),
		SrcUsername:  rec.FieldAny("srcusername", "srcuser"),
		DestUsername: rec.Field("destusername"),

		Proto:      rec.Field("connipproto"),
		RecvIf:     rec.Field("connrecvif"),
		RecvZone:   rec.Field("connrecvzone"),
		SrcIP:      rec.Field("connsrcip"),
		SrcPort:    intField(rec, "connsrcport"),
		SrcMac:     netwall.NormalizeMAC(rec.Field("connsrcmac")),
		SrcDevice:  rec.Field("connsrcdevice"),
		DestIf:     rec.Field("conndestif"),
		DestZone:   rec.Field("conndestzone"),
		DestIP:     rec.Field("conndestip"),
		DestPort:   intField(rec, "conndestport"),
		DestMac:    netwall.NormalizeMAC(rec.Field("conndestmac")),
		DestDevice: rec.Field("conndestdevice"),

		XlatSrcIP:    rec.Field("connnewsrcip"),
		XlatSrcPort:  intField(rec, "connnewsrcport"),
		XlatDestIP:   rec.Field("connnewdestip"),
		XlatDestPort: intField(rec, "connnewdestport"),

		BytesOrig: int64Field(rec, "origsent"),
		BytesTerm: int64Field(rec, "termsent"),
		DurationS: int64Field(rec, "conntime"),

		AppName:   rec.Field("app_name"),
		AppRisk:   rec.Field("app_risk"),
		AppFamily: rec.Field("app_family"),

		IprepIP:         rec.Field("ip"),
		IprepScore:      intField(rec, "score"),
		IprepCategories: rec.Field("categories"),
		IprepSrc:        rec.Field("iprep_src"),
		IprepDest:       rec.Field("iprep_dest"),
		IprepSrcScore:   intField(rec, "iprep_src_score"),
		IprepDestScore:  intField(rec, "iprep_dest_score"),
	}
	ev.SetExtra(unmappedExtra(rec))

	if ing.classifier != nil {
		if err := ing.classifier.Apply(ctx, ev, misses); err != nil {
			logger.Warn("direction classification failed",
				logger.Device(ev.Device), logger.Err(err))
		}
	}
	return ev
}

// mappedConnKeys lists every kv key consumed by an event column. Anything
// else lands under extra_json["unmapped"] so no part of the record is lost;
// "id" and the bare "conn" marker stay unmapped on purpose.
var mappedConnKeys = map[string]struct{}{
	"event":          {},
	"action":         {},
	"rule":           {},
	"satsrcrule":     {},
	"satdestrule":    {},
	"srcusername":    {},
	"destusername":   {},
	"connipproto":    {},
	"connrecvif":     {},
	"connrecvzone":   {},
	"connsrcip":      {},
	"connsrcport":    {},
	"connsrcmac":     {},
	"connsrcdevice":  {},
	"conndestif":     {},
	"conndestzone":   {},
	"conndestip":     {},
	"conndestport":   {},
	"conndestmac":    {},
	"conndestdevice": {},
	"connnewsrcip":   {},
	"connnewsrcport": {},
	"connnewdestip":  {},
	"connnewdestport": {},
	"origsent":        {},
	"termsent":        {},
	"conntime":        {},
	"app_name":        {},
	"app_risk":        {},
	"app_family":      {},
	"ip":              {},
	"score":           {},
	"categories":      {},
	"iprep_src":       {},
	"iprep_dest":      {},
	"iprep_src_score": {},
	"iprep_dest_score": {},
}

func unmappedExtra(rec *netwall.ParsedRecord) map[string]any {
	var unmapped map[string]any
	for key, val := range rec.Fields {
		if _, ok := mappedConnKeys[key]; ok {
			continue
		}
		if unmapped == nil {
			unmapped = make(map[string]any)
		}
		if n, ok := rec.Int(key); ok {
			unmapped[key] = n
		} else {
			unmapped[key] = val
		}
	}
	if unmapped == nil {
		return nil
	}
	return map[string]any{"unmapped": unmapped}
}

func intField(rec *netwall.ParsedRecord, key string) *int {
	if v, ok := rec.Int(key); ok {
		n := int(v)
		return &n
	}
	return nil
}

func int64Field(rec *netwall.ParsedRecord, key string) *int64 {
	if v, ok := rec.Int(key); ok {
		n := v
		return &n
	}
	return nil
}

// deviceObservation builds a device_identifications upsert from a DEVICE
// record. NetWall firmwares disagree on underscores in these field names, so
// both spellings are accepted. A record without a usable srcmac is dropped;
// its raw log row is already staged at that point.
func deviceObservation(rec *netwall.ParsedRecord) *models.DeviceIdentification {
	mac := netwall.NormalizeMAC(rec.Field("srcmac"))
	if mac == "" {
		logger.Warn("device record without usable srcmac, skipped",
			logger.Device(rec.Device))
		return nil
	}
	obs := &models.DeviceIdentification{
		FirewallDevice:      rec.Device,
		SrcMac:              mac,
		Hostname:            rec.Field("hostname"),
		IfName:              rec.Field("if"),
		Zone:                rec.Field("zone"),
		DeviceIP4:           rec.FieldAny("device_ip4", "deviceip4"),
		DeviceIP6:           rec.FieldAny("device_ip6", "deviceip6"),
		DeviceVendor:        rec.FieldAny("device_vendor", "devicevendor"),
		DeviceType:          rec.FieldAny("device_type", "devicetype"),
		DeviceTypeName:      rec.FieldAny("device_type_name", "devicetypename"),
		DeviceTypeGroupName: rec.FieldAny("device_type_group_name", "devicetypegroupname"),
		DeviceOSName:        rec.FieldAny("device_os_name", "deviceosname"),
		DeviceBrand:         rec.FieldAny("device_brand", "devicebrand"),
		DeviceModel:         rec.FieldAny("device_model", "devicemodel"),
	}
	if s := rec.FieldAny("device_rank", "devicerank"); s != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			obs.DeviceRank = &n
		}
	}
	ts := rec.TS
	obs.FirstSeen = &ts
	obs.LastSeen = &ts

	raw := make(map[string]any, len(rec.Fields))
	for key, val := range rec.Fields {
		if n, ok := rec.Int(key); ok {
			raw[key] = n
		} else {
			raw[key] = val
		}
	}
	obs.SetRawEvent(raw)

	logger.Info("device identification record",
		logger.Device(rec.Device),
		"mac", mac,
		"ip", obs.DeviceIP4,
		"vendor", obs.DeviceVendor,
		"type", obs.DeviceTypeName,
		"hostname", obs.Hostname)
	return obs
}
