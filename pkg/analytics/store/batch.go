package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kvasirlab/connwatch/internal/telemetry"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/metrics"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

// Insert chunk sizes keep multi-row INSERTs under backend parameter limits;
// an event row carries around fifty columns.
const (
	rawLogInsertChunk   = 500
	eventInsertChunk    = 100
	endpointInsertChunk = 200
	endpointLookupChunk = 500
)

// BatchSource tells WriteBatch which firewall inventory bookkeeping applies.
type BatchSource string

const (
	// BatchSourceSyslog marks batches from the live UDP listener. Inventory
	// rows are keyed by canonical device key and widen first/last seen from
	// the raw-log timestamps.
	BatchSourceSyslog BatchSource = "syslog"
	// BatchSourceImport marks batches from file-import jobs. Inventory rows
	// are keyed per event device; the owning job fixes up the seen range on
	// completion.
	BatchSourceImport BatchSource = "import"
)

// UnclassifiedKey identifies one zone or interface name that missed every
// classification rule.
type UnclassifiedKey struct {
	Device string
	Kind   string
	Name   string
}

// JobProgress carries the owning ingest job's running counters so they are
// persisted atomically with the batch. All values are absolute totals as
// tracked by the caller, not per-batch deltas; re-running the transaction
// after a lock retry therefore cannot double count.
type JobProgress struct {
	JobID string

	LinesProcessed  int64
	ParseOK         int64
	ParseErr        int64
	FilteredID      int64
	RawLogsInserted int64
	EventsInserted  int64

	TimeMin string
	TimeMax string
}

// Batch is one unit of ingest output: everything a flush interval or an
// import chunk produced, persisted in a single transaction.
type Batch struct {
	Source BatchSource

	RawLogs []*models.RawLog
	Events  []*models.Event

	// Devices holds DEVICE-record identification observations, one per
	// record, in arrival order.
	Devices []*models.DeviceIdentification

	// Unclassified maps (device, kind, name) misses to how often they were
	// hit while classifying this batch's events.
	Unclassified map[UnclassifiedKey]int64

	Job *JobProgress
}

// Empty reports whether the batch carries nothing to persist.
func (b *Batch) Empty() bool {
	return len(b.RawLogs) == 0 &&
		len(b.Events) == 0 &&
		len(b.Devices) == 0 &&
		len(b.Unclassified) == 0 &&
		b.Job == nil
}

// endpointKey identifies one endpoint row. mac is "" when the event carried
// none, matching the NOT NULL DEFAULT '' column.
type endpointKey struct {
	device string
	ip     string
	mac    string
}

// WriteBatch persists one ingest batch in a single transaction, in a fixed
// order: raw logs, events, firewall inventory, endpoints, flows, device
// identifications, unclassified counters, then the owning job's progress.
// On SQLite all batches serialize through the writer lock; transient lock
// errors retry the whole transaction.
func (s *GORMStore) WriteBatch(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	if s.isSQLite() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	ctx, span := telemetry.StartBatchSpan(ctx,
		string(batch.Source), len(batch.RawLogs)+len(batch.Events), len(batch.Events))
	defer span.End()

	start := time.Now()
	err := s.runWithLockRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.writeBatchTx(tx, batch)
		})
	})
	metrics.ObserveWriteBatch(s.metrics, time.Since(start), err == nil)
	if err == nil {
		metrics.RecordRows(s.metrics, "raw_logs", len(batch.RawLogs))
		metrics.RecordRows(s.metrics, "events", len(batch.Events))
	} else {
		telemetry.RecordError(ctx, err)
	}
	return err
}

func (s *GORMStore) writeBatchTx(tx *gorm.DB, batch *Batch) error {
	if len(batch.RawLogs) > 0 {
		if err := tx.CreateInBatches(batch.RawLogs, rawLogInsertChunk).Error; err != nil {
			return fmt.Errorf("insert raw logs: %w", err)
		}
	}
	if len(batch.Events) > 0 {
		if err := tx.CreateInBatches(batch.Events, eventInsertChunk).Error; err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
	}
	if err := s.touchFirewallInventoryTx(tx, batch); err != nil {
		return err
	}
	endpointIDs, err := s.upsertEndpointsTx(tx, batch.Events)
	if err != nil {
		return err
	}
	if err := s.upsertFlowsTx(tx, batch.Events, endpointIDs); err != nil {
		return err
	}
	if err := s.applyDeviceIdentificationsTx(tx, batch.Devices); err != nil {
		return err
	}
	if err := s.mergeUnclassifiedTx(tx, batch.Unclassified); err != nil {
		return err
	}
	return updateJobProgressTx(tx, batch.Job)
}

// touchFirewallInventoryTx records which firewalls contributed to the batch.
// The syslog path collapses HA member hostnames with netwall.CanonicalKey,
// so "gw_Master" and "gw_Slave" share one "ha:gw" row whether or not a
// cluster has been configured, and widens the seen range from the raw log
// timestamps. The import path only marks each event device as
// import-sourced; file exports never collapse.
func (s *GORMStore) touchFirewallInventoryTx(tx *gorm.DB, batch *Batch) error {
	now := time.Now().UTC()

	if batch.Source == BatchSourceImport {
		keys := make(map[string]struct{})
		for _, ev := range batch.Events {
			if fk := eventFirewallKey(ev); fk != "" {
				keys[fk] = struct{}{}
			}
		}
		for _, key := range sortedStringKeys(keys) {
			if err := touchFirewallImportTx(tx, key, now); err != nil {
				return err
			}
		}
		return nil
	}

	if len(batch.RawLogs) == 0 {
		return nil
	}
	type tsSpan struct{ min, max time.Time }
	spans := make(map[string]*tsSpan)
	for _, rl := range batch.RawLogs {
		device := strings.TrimSpace(rl.Device)
		if device == "" {
			continue
		}
		key, _ := netwall.CanonicalKey(device)
		span, ok := spans[key]
		if !ok {
			spans[key] = &tsSpan{min: rl.TsUTC, max: rl.TsUTC}
			continue
		}
		if rl.TsUTC.Before(span.min) {
			span.min = rl.TsUTC
		}
		if rl.TsUTC.After(span.max) {
			span.max = rl.TsUTC
		}
	}
	keys := make([]string, 0, len(spans))
	for key := range spans {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		span := spans[key]
		if err := s.upsertFirewallSyslogTx(tx, key, span.min, span.max); err != nil {
			return err
		}
	}
	return nil
}

// upsertEndpointsTx creates or refreshes one endpoint per distinct
// (device, ip, mac) triple across the four addresses each event can carry,
// then resolves the row ids for flow aggregation. device_name is only
// written when the event named the endpoint; the first name in the batch
// wins. Conflicted inserts don't report ids, so everything is looked up
// again afterwards.
func (s *GORMStore) upsertEndpointsTx(tx *gorm.DB, events []*models.Event) (map[endpointKey]int64, error) {
	ids := make(map[endpointKey]int64)
	if len(events) == 0 {
		return ids, nil
	}

	seen := make(map[endpointKey]struct{})
	var named, unnamed []*models.Endpoint
	for _, ev := range events {
		fk := eventFirewallKey(ev)
		if fk == "" {
			continue
		}
		for _, t := range [][3]string{
			{ev.SrcIP, ev.SrcMac, ev.SrcDevice},
			{ev.DestIP, ev.DestMac, ev.DestDevice},
			{ev.XlatSrcIP, ev.SrcMac, ev.SrcDevice},
			{ev.XlatDestIP, ev.DestMac, ev.DestDevice},
		} {
			ip := strings.TrimSpace(t[0])
			if ip == "" {
				continue
			}
			key := endpointKey{device: fk, ip: ip, mac: strings.TrimSpace(t[1])}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			ep := &models.Endpoint{
				Device:     key.device,
				IP:         key.ip,
				Mac:        key.mac,
				DeviceName: strings.TrimSpace(t[2]),
			}
			if ep.DeviceName != "" {
				named = append(named, ep)
			} else {
				unnamed = append(unnamed, ep)
			}
		}
	}
	if len(named) == 0 && len(unnamed) == 0 {
		return ids, nil
	}

	identity := []clause.Column{{Name: "device"}, {Name: "ip"}, {Name: "mac"}}
	if len(named) > 0 {
		err := tx.Clauses(clause.OnConflict{
			Columns:   identity,
			DoUpdates: clause.AssignmentColumns([]string{"device_name"}),
		}).CreateInBatches(named, endpointInsertChunk).Error
		if err != nil {
			return nil, fmt.Errorf("upsert named endpoints: %w", err)
		}
	}
	if len(unnamed) > 0 {
		err := tx.Clauses(clause.OnConflict{
			Columns:   identity,
			DoNothing: true,
		}).CreateInBatches(unnamed, endpointInsertChunk).Error
		if err != nil {
			return nil, fmt.Errorf("upsert endpoints: %w", err)
		}
	}

	ipsByDevice := make(map[string][]string)
	ipSeen := make(map[endpointKey]struct{})
	for key := range seen {
		ipKey := endpointKey{device: key.device, ip: key.ip}
		if _, ok := ipSeen[ipKey]; ok {
			continue
		}
		ipSeen[ipKey] = struct{}{}
		ipsByDevice[key.device] = append(ipsByDevice[key.device], key.ip)
	}
	for device, ips := range ipsByDevice {
		for start := 0; start < len(ips); start += endpointLookupChunk {
			end := min(start+endpointLookupChunk, len(ips))
			var rows []models.Endpoint
			if err := tx.Where("device = ? AND ip IN ?", device, ips[start:end]).Find(&rows).Error; err != nil {
				return nil, fmt.Errorf("resolve endpoint ids: %w", err)
			}
			for _, row := range rows {
				key := endpointKey{device: row.Device, ip: row.IP, mac: row.Mac}
				if row.ID > ids[key] {
					ids[key] = row.ID
				}
			}
		}
	}
	return ids, nil
}

// upsertFlowsTx merges every open event into the flow rollups: up to six rows
// per event (original/translated view x side/zone/interface basis). Each view
// is skipped independently when its endpoints are unresolved, so an event with
// only NAT addresses still gets translated rows. Conflicts on the identity
// 9-tuple bump count_open and widen the seen range.
func (s *GORMStore) upsertFlowsTx(tx *gorm.DB, events []*models.Event, endpointIDs map[endpointKey]int64) error {
	if len(events) == 0 {
		return nil
	}
	conflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "device"}, {Name: "basis"}, {Name: "from_value"}, {Name: "to_value"},
			{Name: "proto"}, {Name: "dest_port"},
			{Name: "src_endpoint_id"}, {Name: "dst_endpoint_id"}, {Name: "view_kind"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count_open": s.incrementExpr("flows", "count_open", 1),
			"first_seen": s.minSeenExpr("flows", "first_seen"),
			"last_seen":  s.maxSeenExpr("flows", "last_seen"),
		}),
	}

	for _, ev := range events {
		if !models.IsOpenEvent(ev.EventType) {
			continue
		}
		fk := eventFirewallKey(ev)
		if fk == "" {
			continue
		}
		lookup := func(ip, mac string) int64 {
			ip = strings.TrimSpace(ip)
			if ip == "" {
				return 0
			}
			return endpointIDs[endpointKey{device: fk, ip: ip, mac: strings.TrimSpace(mac)}]
		}
		srcOrig := lookup(ev.SrcIP, ev.SrcMac)
		dstOrig := lookup(ev.DestIP, ev.DestMac)
		xlatSrc := ev.XlatSrcIP
		if strings.TrimSpace(xlatSrc) == "" {
			xlatSrc = ev.SrcIP
		}
		xlatDst := ev.XlatDestIP
		if strings.TrimSpace(xlatDst) == "" {
			xlatDst = ev.DestIP
		}
		srcNat := lookup(xlatSrc, ev.SrcMac)
		dstNat := lookup(xlatDst, ev.DestMac)

		ts := ev.TsUTC
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		destPort := 0
		if ev.DestPort != nil {
			destPort = *ev.DestPort
		}

		views := []struct {
			kind     models.FlowViewKind
			src, dst int64
		}{
			{models.ViewOriginal, srcOrig, dstOrig},
			{models.ViewTranslated, srcNat, dstNat},
		}
		bases := []struct {
			basis    models.FlowBasis
			from, to string
		}{
			{models.BasisSide, ev.RecvSide, ev.DestSide},
			{models.BasisZone, ev.RecvZone, ev.DestZone},
			{models.BasisInterface, ev.RecvIf, ev.DestIf},
		}
		for _, view := range views {
			if view.src == 0 || view.dst == 0 {
				continue
			}
			for _, base := range bases {
				if base.from == "" || base.to == "" {
					continue
				}
				flow := &models.Flow{
					Device:        fk,
					Basis:         string(base.basis),
					FromValue:     base.from,
					ToValue:       base.to,
					Proto:         ev.Proto,
					DestPort:      destPort,
					SrcEndpointID: view.src,
					DstEndpointID: view.dst,
					ViewKind:      string(view.kind),
					CountOpen:     1,
					FirstSeen:     &ts,
					LastSeen:      &ts,
				}
				if err := tx.Clauses(conflict).Create(flow).Error; err != nil {
					return fmt.Errorf("upsert flow: %w", err)
				}
				if err := bumpFlowTopsTx(tx, flow, ev); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// bumpFlowTopsTx folds the event's rule and application name into the flow's
// per-name open counters. Read-modify-write on the JSON text is safe here:
// batch writes serialize through the writer lock on SQLite and through the
// row lock held by the upsert elsewhere.
func bumpFlowTopsTx(tx *gorm.DB, flow *models.Flow, ev *models.Event) error {
	rule := strings.TrimSpace(ev.Rule)
	app := strings.TrimSpace(ev.AppName)
	if rule == "" && app == "" {
		return nil
	}
	var existing models.Flow
	err := tx.Where(
		"device = ? AND basis = ? AND from_value = ? AND to_value = ? AND proto = ? AND dest_port = ? AND src_endpoint_id = ? AND dst_endpoint_id = ? AND view_kind = ?",
		flow.Device, flow.Basis, flow.FromValue, flow.ToValue, flow.Proto, flow.DestPort,
		flow.SrcEndpointID, flow.DstEndpointID, flow.ViewKind,
	).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load flow counters: %w", err)
	}

	updates := make(map[string]interface{}, 2)
	if rule != "" {
		rules := existing.GetTopRules()
		if rules == nil {
			rules = make(map[string]int64)
		}
		rules[rule]++
		existing.SetTopRules(rules)
		updates["top_rules"] = existing.TopRules
	}
	if app != "" {
		apps := existing.GetTopApps()
		if apps == nil {
			apps = make(map[string]int64)
		}
		apps[app]++
		existing.SetTopApps(apps)
		updates["top_apps"] = existing.TopApps
	}
	if err := tx.Model(&models.Flow{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update flow counters: %w", err)
	}
	return nil
}

// applyDeviceIdentificationsTx persists DEVICE-record observations: insert on
// first sight, otherwise merge non-empty fields into the existing row, then
// copy the fingerprint onto matching endpoints either way.
func (s *GORMStore) applyDeviceIdentificationsTx(tx *gorm.DB, observations []*models.DeviceIdentification) error {
	for _, obs := range observations {
		device := strings.TrimSpace(obs.FirewallDevice)
		mac := strings.TrimSpace(obs.SrcMac)
		if device == "" || mac == "" {
			continue
		}
		if obs.FirstSeen == nil {
			obs.FirstSeen = obs.LastSeen
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "firewall_device"}, {Name: "srcmac"}},
			DoNothing: true,
		}).Create(obs)
		if res.Error != nil {
			return fmt.Errorf("insert device identification: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			if err := mergeDeviceIdentificationTx(tx, obs, device, mac); err != nil {
				return err
			}
		}
		if err := syncEndpointEnrichmentTx(tx, obs, device, mac); err != nil {
			return err
		}
	}
	return nil
}

// mergeDeviceIdentificationTx folds an observation into the existing row:
// non-empty fields win, last_seen and the stored raw record always refresh.
func mergeDeviceIdentificationTx(tx *gorm.DB, obs *models.DeviceIdentification, device, mac string) error {
	var existing models.DeviceIdentification
	if err := tx.Where("firewall_device = ? AND srcmac = ?", device, mac).First(&existing).Error; err != nil {
		return fmt.Errorf("load device identification: %w", err)
	}
	updates := make(map[string]interface{})
	setNonEmpty := func(column, value string) {
		if strings.TrimSpace(value) != "" {
			updates[column] = value
		}
	}
	setNonEmpty("hostname", obs.Hostname)
	setNonEmpty("if_name", obs.IfName)
	setNonEmpty("zone", obs.Zone)
	setNonEmpty("device_ip4", obs.DeviceIP4)
	setNonEmpty("device_ip6", obs.DeviceIP6)
	setNonEmpty("device_vendor", obs.DeviceVendor)
	setNonEmpty("device_type", obs.DeviceType)
	setNonEmpty("device_type_name", obs.DeviceTypeName)
	setNonEmpty("device_type_group_name", obs.DeviceTypeGroupName)
	setNonEmpty("device_os_name", obs.DeviceOSName)
	setNonEmpty("device_brand", obs.DeviceBrand)
	setNonEmpty("device_model", obs.DeviceModel)
	if obs.DeviceRank != nil {
		updates["device_rank"] = *obs.DeviceRank
	}
	if obs.LastSeen != nil {
		updates["last_seen"] = *obs.LastSeen
	}
	if obs.RawEventJSON != "" {
		updates["raw_event_json"] = obs.RawEventJSON
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.DeviceIdentification{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update device identification: %w", err)
	}
	return nil
}

// syncEndpointEnrichmentTx copies fingerprint fields onto every endpoint
// whose (device, ip, mac) matches the identification's device_ip4 + srcmac.
// Only non-empty fields are written so later sparse observations don't erase
// earlier ones.
func syncEndpointEnrichmentTx(tx *gorm.DB, obs *models.DeviceIdentification, device, mac string) error {
	ip := strings.TrimSpace(obs.DeviceIP4)
	if ip == "" {
		return nil
	}
	updates := make(map[string]interface{})
	setNonEmpty := func(column, value string) {
		if strings.TrimSpace(value) != "" {
			updates[column] = value
		}
	}
	setNonEmpty("hostname", obs.Hostname)
	setNonEmpty("device_ip4", obs.DeviceIP4)
	setNonEmpty("device_ip6", obs.DeviceIP6)
	setNonEmpty("device_vendor", obs.DeviceVendor)
	setNonEmpty("device_type", obs.DeviceType)
	setNonEmpty("device_type_name", obs.DeviceTypeName)
	setNonEmpty("device_type_group_name", obs.DeviceTypeGroupName)
	setNonEmpty("device_os_name", obs.DeviceOSName)
	setNonEmpty("device_brand", obs.DeviceBrand)
	setNonEmpty("device_model", obs.DeviceModel)
	if obs.DeviceRank != nil {
		updates["device_rank"] = *obs.DeviceRank
	}
	if len(updates) == 0 {
		return nil
	}
	err := tx.Model(&models.Endpoint{}).
		Where("device = ? AND ip = ? AND mac = ?", device, ip, mac).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("sync endpoint enrichment: %w", err)
	}
	return nil
}

// mergeUnclassifiedTx adds the batch's classification misses onto the
// persistent counters, in sorted key order so concurrent writers take row
// locks in the same sequence.
func (s *GORMStore) mergeUnclassifiedTx(tx *gorm.DB, counts map[UnclassifiedKey]int64) error {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]UnclassifiedKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Device != keys[j].Device {
			return keys[i].Device < keys[j].Device
		}
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Name < keys[j].Name
	})
	for _, key := range keys {
		if strings.TrimSpace(key.Name) == "" {
			continue
		}
		inc := counts[key]
		if inc <= 0 {
			continue
		}
		row := &models.UnclassifiedEndpoint{
			Device: key.Device,
			Kind:   key.Kind,
			Name:   key.Name,
			Count:  inc,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device"}, {Name: "kind"}, {Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": s.incrementExpr("unclassified_endpoints", "count", inc),
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("merge unclassified counters: %w", err)
		}
	}
	return nil
}

// updateJobProgressTx writes the owning job's running counters inside the
// batch transaction so progress and data land or roll back together.
func updateJobProgressTx(tx *gorm.DB, progress *JobProgress) error {
	if progress == nil || progress.JobID == "" {
		return nil
	}
	updates := map[string]interface{}{
		"lines_processed":   progress.LinesProcessed,
		"parse_ok":          progress.ParseOK,
		"parse_err":         progress.ParseErr,
		"filtered_id":       progress.FilteredID,
		"raw_logs_inserted": progress.RawLogsInserted,
		"events_inserted":   progress.EventsInserted,
	}
	if progress.TimeMin != "" {
		updates["time_min"] = progress.TimeMin
	}
	if progress.TimeMax != "" {
		updates["time_max"] = progress.TimeMax
	}
	if err := tx.Model(&models.IngestJob{}).Where("id = ?", progress.JobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// eventFirewallKey returns the grouping key for an event's endpoints and
// flows: the canonical firewall_key when set, the raw device otherwise.
func eventFirewallKey(ev *models.Event) string {
	if fk := strings.TrimSpace(ev.FirewallKey); fk != "" {
		return fk
	}
	return strings.TrimSpace(ev.Device)
}

func sortedStringKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// minSeenExpr widens a timestamp column downward during an upsert: the
// smaller of the current value (the incoming one when the row has none) and
// the incoming value. All timestamps are UTC, so SQLite's lexical MIN/MAX
// over stored text matches chronological order.
func (s *GORMStore) minSeenExpr(table, column string) clause.Expr {
	if s.isSQLite() {
		return gorm.Expr(fmt.Sprintf("MIN(COALESCE(%s, excluded.%s), excluded.%s)", column, column, column))
	}
	return gorm.Expr(fmt.Sprintf("LEAST(COALESCE(%s.%s, excluded.%s), excluded.%s)", table, column, column, column))
}

// maxSeenExpr widens a timestamp column upward during an upsert.
func (s *GORMStore) maxSeenExpr(table, column string) clause.Expr {
	if s.isSQLite() {
		return gorm.Expr(fmt.Sprintf("MAX(COALESCE(%s, excluded.%s), excluded.%s)", column, column, column))
	}
	return gorm.Expr(fmt.Sprintf("GREATEST(COALESCE(%s.%s, excluded.%s), excluded.%s)", table, column, column, column))
}

// incrementExpr adds to a counter column during an upsert. PostgreSQL needs
// the table qualifier to disambiguate from the excluded pseudo-row.
func (s *GORMStore) incrementExpr(table, column string, by int64) clause.Expr {
	if s.isSQLite() {
		return gorm.Expr(fmt.Sprintf("%s + ?", column), by)
	}
	return gorm.Expr(fmt.Sprintf("%s.%s + ?", table, column), by)
}
