//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// makeConnBatch returns a fresh syslog batch with one open connection on
// fw1. Fresh structs every call: gorm fills primary keys on insert, so a
// batch cannot be written twice.
func makeConnBatch() *Batch {
	ts := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	destPort := 443
	return &Batch{
		Source: BatchSourceSyslog,
		RawLogs: []*models.RawLog{
			{TsUTC: ts, Device: "fw1", RawRecord: "EFW: CONN: conn=open", ParseStatus: models.ParseStatusOK},
			{TsUTC: ts.Add(time.Minute), Device: "fw1", RawRecord: "EFW: CONN: conn=close", ParseStatus: models.ParseStatusOK},
		},
		Events: []*models.Event{{
			TsUTC:       ts,
			Device:      "fw1",
			FirewallKey: "fw1",
			EventType:   models.EventConnOpen,
			Rule:        "allow_out",
			Proto:       "tcp",
			RecvIf:      "eth0",
			RecvZone:    "lan",
			RecvSide:    string(models.SideInside),
			SrcIP:       "10.0.0.1",
			SrcMac:      "aa:bb:cc:dd:ee:01",
			DestIf:      "eth1",
			DestZone:    "wan",
			DestSide:    string(models.SideOutside),
			DestIP:      "8.8.8.8",
			DestPort:    &destPort,
			XlatSrcIP:   "192.0.2.1",
			AppName:     "tls",
		}},
	}
}

func countRows(t *testing.T, store *GORMStore, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := store.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestWriteBatchConnOpen(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.WriteBatch(ctx, makeConnBatch()); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	t.Run("raw logs and events persisted", func(t *testing.T) {
		if n := countRows(t, store, &models.RawLog{}); n != 2 {
			t.Errorf("raw_logs = %d, expected 2", n)
		}
		if n := countRows(t, store, &models.Event{}); n != 1 {
			t.Errorf("events = %d, expected 1", n)
		}
	})

	t.Run("endpoints deduped across addresses", func(t *testing.T) {
		var endpoints []models.Endpoint
		if err := store.DB().Order("ip").Find(&endpoints).Error; err != nil {
			t.Fatalf("failed to load endpoints: %v", err)
		}
		if len(endpoints) != 3 {
			t.Fatalf("endpoints = %d, expected 3 (src, dest, xlat src)", len(endpoints))
		}
		if endpoints[0].IP != "10.0.0.1" || endpoints[0].Mac != "aa:bb:cc:dd:ee:01" {
			t.Errorf("endpoint[0] = %s/%s", endpoints[0].IP, endpoints[0].Mac)
		}
		if endpoints[1].IP != "192.0.2.1" {
			t.Errorf("endpoint[1] = %s, expected xlat src", endpoints[1].IP)
		}
		if endpoints[2].IP != "8.8.8.8" || endpoints[2].Mac != "" {
			t.Errorf("endpoint[2] = %s/%q", endpoints[2].IP, endpoints[2].Mac)
		}
	})

	t.Run("six flow rows per open event", func(t *testing.T) {
		if n := countRows(t, store, &models.Flow{}); n != 6 {
			t.Errorf("flows = %d, expected 2 views x 3 bases", n)
		}

		var flow models.Flow
		err := store.DB().Where(
			"basis = ? AND view_kind = ?", string(models.BasisZone), string(models.ViewOriginal),
		).First(&flow).Error
		if err != nil {
			t.Fatalf("failed to load zone flow: %v", err)
		}
		if flow.FromValue != "lan" || flow.ToValue != "wan" {
			t.Errorf("zone flow = %s -> %s", flow.FromValue, flow.ToValue)
		}
		if flow.CountOpen != 1 || flow.DestPort != 443 || flow.Proto != "tcp" {
			t.Errorf("zone flow counters = %+v", flow)
		}
		if flow.GetTopRules()["allow_out"] != 1 {
			t.Errorf("top_rules = %v", flow.GetTopRules())
		}
		if flow.GetTopApps()["tls"] != 1 {
			t.Errorf("top_apps = %v", flow.GetTopApps())
		}
		if flow.FirstSeen == nil || flow.LastSeen == nil {
			t.Error("seen range was not set")
		}
	})

	t.Run("translated view falls back to original dest", func(t *testing.T) {
		var orig, xlat models.Flow
		if err := store.DB().Where("basis = ? AND view_kind = ?", string(models.BasisZone), string(models.ViewOriginal)).First(&orig).Error; err != nil {
			t.Fatalf("failed to load original flow: %v", err)
		}
		if err := store.DB().Where("basis = ? AND view_kind = ?", string(models.BasisZone), string(models.ViewTranslated)).First(&xlat).Error; err != nil {
			t.Fatalf("failed to load translated flow: %v", err)
		}
		if orig.SrcEndpointID == xlat.SrcEndpointID {
			t.Error("translated src should use the xlat endpoint")
		}
		if orig.DstEndpointID != xlat.DstEndpointID {
			t.Error("translated dst should fall back to the original endpoint")
		}
	})

	t.Run("syslog inventory row", func(t *testing.T) {
		rows, err := store.ListFirewallInventory(ctx)
		if err != nil {
			t.Fatalf("list inventory failed: %v", err)
		}
		if len(rows) != 1 || rows[0].DeviceKey != "fw1" {
			t.Fatalf("inventory = %+v", rows)
		}
		if rows[0].SourceSyslog != 1 || rows[0].SourceImport != 0 {
			t.Errorf("sources = %d/%d", rows[0].SourceSyslog, rows[0].SourceImport)
		}
		want := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
		if rows[0].FirstSeenTs == nil || !rows[0].FirstSeenTs.UTC().Equal(want) {
			t.Errorf("first_seen_ts = %v", rows[0].FirstSeenTs)
		}
		if rows[0].LastSeenTs == nil || !rows[0].LastSeenTs.UTC().Equal(want.Add(time.Minute)) {
			t.Errorf("last_seen_ts = %v", rows[0].LastSeenTs)
		}

		keys, err := store.SyslogOnlyFirewallKeys(ctx)
		if err != nil {
			t.Fatalf("syslog-only keys failed: %v", err)
		}
		if len(keys) != 1 || keys[0] != "fw1" {
			t.Errorf("syslog-only keys = %v", keys)
		}
	})

	t.Run("rewriting the same traffic merges counters", func(t *testing.T) {
		if err := store.WriteBatch(ctx, makeConnBatch()); err != nil {
			t.Fatalf("second write failed: %v", err)
		}

		if n := countRows(t, store, &models.Event{}); n != 2 {
			t.Errorf("events = %d, expected 2", n)
		}
		if n := countRows(t, store, &models.Endpoint{}); n != 3 {
			t.Errorf("endpoints = %d, expected dedupe to hold", n)
		}
		if n := countRows(t, store, &models.Flow{}); n != 6 {
			t.Errorf("flows = %d, expected merge instead of new rows", n)
		}

		var flow models.Flow
		if err := store.DB().Where("basis = ? AND view_kind = ?", string(models.BasisZone), string(models.ViewOriginal)).First(&flow).Error; err != nil {
			t.Fatalf("failed to reload flow: %v", err)
		}
		if flow.CountOpen != 2 {
			t.Errorf("count_open = %d, expected 2", flow.CountOpen)
		}
		if flow.GetTopRules()["allow_out"] != 2 {
			t.Errorf("top_rules = %v", flow.GetTopRules())
		}
	})
}

func TestWriteBatchSkipsFlows(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("close events do not open flows", func(t *testing.T) {
		batch := makeConnBatch()
		batch.Events[0].EventType = models.EventConnClose
		if err := store.WriteBatch(ctx, batch); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}
		if n := countRows(t, store, &models.Flow{}); n != 0 {
			t.Errorf("flows = %d, expected none for close events", n)
		}
		if n := countRows(t, store, &models.Endpoint{}); n != 3 {
			t.Errorf("endpoints = %d, close events still register endpoints", n)
		}
	})

	t.Run("missing src ip skips the event", func(t *testing.T) {
		batch := makeConnBatch()
		batch.Events[0].SrcIP = ""
		batch.Events[0].XlatSrcIP = ""
		if err := store.WriteBatch(ctx, batch); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}
		if n := countRows(t, store, &models.Flow{}); n != 0 {
			t.Errorf("flows = %d, expected none without a src endpoint", n)
		}
	})
}

func TestWriteBatchEndpointNames(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	named := makeConnBatch()
	named.Events[0].SrcDevice = "laptop"
	if err := store.WriteBatch(ctx, named); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	var endpoint models.Endpoint
	if err := store.DB().Where("ip = ?", "10.0.0.1").First(&endpoint).Error; err != nil {
		t.Fatalf("failed to load endpoint: %v", err)
	}
	if endpoint.DeviceName != "laptop" {
		t.Errorf("device_name = %q, expected laptop", endpoint.DeviceName)
	}

	// An unnamed sighting of the same endpoint must not erase the name.
	if err := store.WriteBatch(ctx, makeConnBatch()); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if err := store.DB().Where("ip = ?", "10.0.0.1").First(&endpoint).Error; err != nil {
		t.Fatalf("failed to reload endpoint: %v", err)
	}
	if endpoint.DeviceName != "laptop" {
		t.Errorf("device_name = %q after unnamed sighting", endpoint.DeviceName)
	}
}

func TestWriteBatchDeviceIdentification(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.WriteBatch(ctx, makeConnBatch()); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	seen := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("first observation inserts and enriches", func(t *testing.T) {
		batch := &Batch{
			Source: BatchSourceSyslog,
			Devices: []*models.DeviceIdentification{{
				FirewallDevice: "fw1",
				SrcMac:         "aa:bb:cc:dd:ee:01",
				DeviceIP4:      "10.0.0.1",
				Hostname:       "laptop.lan",
				DeviceVendor:   "Lenovo",
				LastSeen:       &seen,
			}},
		}
		if err := store.WriteBatch(ctx, batch); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}

		var row models.DeviceIdentification
		if err := store.DB().Where("firewall_device = ? AND srcmac = ?", "fw1", "aa:bb:cc:dd:ee:01").First(&row).Error; err != nil {
			t.Fatalf("failed to load identification: %v", err)
		}
		if row.Hostname != "laptop.lan" || row.DeviceVendor != "Lenovo" {
			t.Errorf("identification = %+v", row)
		}
		if row.FirstSeen == nil || !row.FirstSeen.UTC().Equal(seen) {
			t.Errorf("first_seen = %v, expected backfill from last_seen", row.FirstSeen)
		}

		var endpoint models.Endpoint
		if err := store.DB().Where("ip = ?", "10.0.0.1").First(&endpoint).Error; err != nil {
			t.Fatalf("failed to load endpoint: %v", err)
		}
		if endpoint.Hostname != "laptop.lan" || endpoint.DeviceVendor != "Lenovo" {
			t.Errorf("endpoint enrichment = %q/%q", endpoint.Hostname, endpoint.DeviceVendor)
		}
	})

	t.Run("sparse follow-up merges without erasing", func(t *testing.T) {
		later := seen.Add(time.Hour)
		batch := &Batch{
			Source: BatchSourceSyslog,
			Devices: []*models.DeviceIdentification{{
				FirewallDevice: "fw1",
				SrcMac:         "aa:bb:cc:dd:ee:01",
				DeviceIP4:      "10.0.0.1",
				DeviceOSName:   "Linux",
				LastSeen:       &later,
			}},
		}
		if err := store.WriteBatch(ctx, batch); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}

		var row models.DeviceIdentification
		if err := store.DB().Where("firewall_device = ? AND srcmac = ?", "fw1", "aa:bb:cc:dd:ee:01").First(&row).Error; err != nil {
			t.Fatalf("failed to reload identification: %v", err)
		}
		if row.Hostname != "laptop.lan" {
			t.Errorf("hostname erased by sparse observation: %q", row.Hostname)
		}
		if row.DeviceOSName != "Linux" {
			t.Errorf("device_os_name = %q, expected merge", row.DeviceOSName)
		}
		if row.LastSeen == nil || !row.LastSeen.UTC().Equal(later) {
			t.Errorf("last_seen = %v, expected refresh", row.LastSeen)
		}

		var endpoint models.Endpoint
		if err := store.DB().Where("ip = ?", "10.0.0.1").First(&endpoint).Error; err != nil {
			t.Fatalf("failed to reload endpoint: %v", err)
		}
		if endpoint.Hostname != "laptop.lan" || endpoint.DeviceOSName != "Linux" {
			t.Errorf("endpoint enrichment = %q/%q", endpoint.Hostname, endpoint.DeviceOSName)
		}
	})
}

func TestWriteBatchImportSource(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	job := seedIngestJob(t, store, string(models.JobRunning))

	batch := makeConnBatch()
	batch.Source = BatchSourceImport
	batch.Job = &JobProgress{
		JobID:           job.ID,
		LinesProcessed:  10,
		ParseOK:         8,
		ParseErr:        1,
		FilteredID:      1,
		RawLogsInserted: 9,
		EventsInserted:  8,
		TimeMin:         "2026-04-01T09:30:00Z",
		TimeMax:         "2026-04-01T09:31:00Z",
	}
	if err := store.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	t.Run("inventory marks import source", func(t *testing.T) {
		rows, err := store.ListFirewallInventory(ctx)
		if err != nil {
			t.Fatalf("list inventory failed: %v", err)
		}
		if len(rows) != 1 || rows[0].SourceImport != 1 || rows[0].SourceSyslog != 0 {
			t.Fatalf("inventory = %+v", rows)
		}
		if rows[0].LastImportTs == nil {
			t.Error("last_import_ts was not set")
		}

		keys, _ := store.SyslogOnlyFirewallKeys(ctx)
		if len(keys) != 0 {
			t.Errorf("import firewall reported as syslog-only: %v", keys)
		}
	})

	t.Run("job progress is absolute", func(t *testing.T) {
		loaded, err := store.GetIngestJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("get job failed: %v", err)
		}
		if loaded.LinesProcessed != 10 || loaded.ParseOK != 8 {
			t.Errorf("progress = %d/%d", loaded.LinesProcessed, loaded.ParseOK)
		}
		if loaded.TimeMin != "2026-04-01T09:30:00Z" {
			t.Errorf("time_min = %q", loaded.TimeMin)
		}

		next := makeConnBatch()
		next.Source = BatchSourceImport
		next.Job = &JobProgress{JobID: job.ID, LinesProcessed: 20, ParseOK: 16}
		if err := store.WriteBatch(ctx, next); err != nil {
			t.Fatalf("second write failed: %v", err)
		}
		loaded, _ = store.GetIngestJob(ctx, job.ID)
		if loaded.LinesProcessed != 20 {
			t.Errorf("lines_processed = %d, expected absolute overwrite", loaded.LinesProcessed)
		}
		if loaded.TimeMin != "2026-04-01T09:30:00Z" {
			t.Errorf("time_min = %q, expected empty update to keep it", loaded.TimeMin)
		}
	})
}

func TestWriteBatchHaInventory(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	// No cluster is configured: member hostnames still collapse to one
	// inventory row on the syslog path.
	ts := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	batch := &Batch{
		Source: BatchSourceSyslog,
		RawLogs: []*models.RawLog{
			{TsUTC: ts, Device: "pair_Master", RawRecord: "EFW: CONN:", ParseStatus: models.ParseStatusOK},
			{TsUTC: ts.Add(time.Minute), Device: "pair_Slave", RawRecord: "EFW: CONN:", ParseStatus: models.ParseStatusOK},
		},
	}
	if err := store.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	rows, err := store.ListFirewallInventory(ctx)
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	if len(rows) != 1 || rows[0].DeviceKey != "ha:pair" {
		t.Fatalf("inventory = %+v, expected one ha:pair row", rows)
	}
	if rows[0].FirstSeenTs == nil || !rows[0].FirstSeenTs.Equal(ts) {
		t.Errorf("first seen = %v, expected %v", rows[0].FirstSeenTs, ts)
	}
	if rows[0].LastSeenTs == nil || !rows[0].LastSeenTs.Equal(ts.Add(time.Minute)) {
		t.Errorf("last seen = %v, expected %v", rows[0].LastSeenTs, ts.Add(time.Minute))
	}
}

func TestDedupFlowIdentities(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	// Recreate the legacy shape: duplicate identity rows that predate the
	// unique index.
	if err := store.DB().Exec("DROP INDEX IF EXISTS ux_flows_identity").Error; err != nil {
		t.Fatalf("failed to drop index: %v", err)
	}

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	older := &models.Flow{
		Device: "fw1", Basis: string(models.BasisZone), FromValue: "lan", ToValue: "wan",
		Proto: "tcp", DestPort: 443, SrcEndpointID: 1, DstEndpointID: 2,
		ViewKind: string(models.ViewOriginal),
		CountOpen: 3, CountClose: 1, BytesSrcToDst: 100, DurationTotalS: 30,
		FirstSeen: &early, LastSeen: &early,
	}
	older.SetTopRules(map[string]int64{"allow_out": 3})
	newer := &models.Flow{
		Device: "fw1", Basis: string(models.BasisZone), FromValue: "lan", ToValue: "wan",
		Proto: "tcp", DestPort: 443, SrcEndpointID: 1, DstEndpointID: 2,
		ViewKind: string(models.ViewOriginal),
		CountOpen: 2, CountClose: 2, BytesSrcToDst: 50, DurationTotalS: 10,
		FirstSeen: &late, LastSeen: &late,
	}
	newer.SetTopRules(map[string]int64{"allow_out": 1, "allow_dns": 1})
	distinct := &models.Flow{
		Device: "fw2", Basis: string(models.BasisZone), FromValue: "lan", ToValue: "wan",
		ViewKind: string(models.ViewOriginal), CountOpen: 1,
	}
	for _, flow := range []*models.Flow{older, newer, distinct} {
		if err := store.DB().Create(flow).Error; err != nil {
			t.Fatalf("failed to seed flow: %v", err)
		}
	}

	result, err := store.DedupFlowIdentities(ctx)
	if err != nil {
		t.Fatalf("dedup failed: %v", err)
	}
	if result.DuplicateGroups != 1 || result.RowsMerged != 1 {
		t.Errorf("result = %+v", result)
	}

	if n := countRows(t, store, &models.Flow{}); n != 2 {
		t.Errorf("flows = %d, expected 2 after merge", n)
	}

	var merged models.Flow
	if err := store.DB().Where("device = ?", "fw1").First(&merged).Error; err != nil {
		t.Fatalf("failed to load merged flow: %v", err)
	}
	if merged.ID != newer.ID {
		t.Errorf("kept id = %d, expected the newest row %d", merged.ID, newer.ID)
	}
	if merged.CountOpen != 5 || merged.CountClose != 3 {
		t.Errorf("counters = %d/%d", merged.CountOpen, merged.CountClose)
	}
	if merged.BytesSrcToDst != 150 || merged.DurationTotalS != 40 {
		t.Errorf("bytes/duration = %d/%d", merged.BytesSrcToDst, merged.DurationTotalS)
	}
	if !merged.FirstSeen.UTC().Equal(early) || !merged.LastSeen.UTC().Equal(late) {
		t.Errorf("seen range = %v..%v", merged.FirstSeen, merged.LastSeen)
	}
	rules := merged.GetTopRules()
	if rules["allow_out"] != 4 || rules["allow_dns"] != 1 {
		t.Errorf("top_rules = %v", rules)
	}

	// The identity index must be back: a duplicate insert has to fail now.
	dup := &models.Flow{
		Device: "fw1", Basis: string(models.BasisZone), FromValue: "lan", ToValue: "wan",
		Proto: "tcp", DestPort: 443, SrcEndpointID: 1, DstEndpointID: 2,
		ViewKind: string(models.ViewOriginal),
	}
	if err := store.DB().Create(dup).Error; err == nil {
		t.Error("expected unique index violation after dedup")
	}

	second, err := store.DedupFlowIdentities(ctx)
	if err != nil {
		t.Fatalf("second dedup failed: %v", err)
	}
	if second.DuplicateGroups != 0 || second.RowsMerged != 0 {
		t.Errorf("second result = %+v", second)
	}
}

func TestRetention(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recent := cutoff.Add(24 * time.Hour)

	events := []*models.Event{
		{Device: "fw1", TsUTC: old},
		{Device: "fw1", TsUTC: old.Add(time.Hour)},
		{Device: "fw1", TsUTC: old.Add(2 * time.Hour)},
		{Device: "fw1", TsUTC: recent},
		{Device: "fw2", TsUTC: old},
	}
	for _, ev := range events {
		if err := store.DB().Create(ev).Error; err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}

	t.Run("deletes in batches for listed devices only", func(t *testing.T) {
		deleted, err := store.DeleteEventsBefore(ctx, []string{"fw1"}, cutoff, 2)
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if deleted != 3 {
			t.Errorf("deleted = %d, expected 3", deleted)
		}
		if n := countRows(t, store, &models.Event{}); n != 2 {
			t.Errorf("remaining events = %d, expected recent fw1 and old fw2", n)
		}
	})

	t.Run("no devices means nothing to delete", func(t *testing.T) {
		deleted, err := store.DeleteEventsBefore(ctx, nil, cutoff, 100)
		if err != nil || deleted != 0 {
			t.Errorf("deleted = %d err %v", deleted, err)
		}
	})

	t.Run("raw logs follow the same path", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			rl := &models.RawLog{Device: "fw1", TsUTC: old, RawRecord: "x"}
			if err := store.DB().Create(rl).Error; err != nil {
				t.Fatalf("failed to seed raw log: %v", err)
			}
		}
		deleted, err := store.DeleteRawLogsBefore(ctx, []string{"fw1"}, cutoff, 10)
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if deleted != 3 {
			t.Errorf("deleted = %d, expected 3", deleted)
		}
	})

	t.Run("vacuum runs on sqlite", func(t *testing.T) {
		ran, err := store.Vacuum(ctx)
		if err != nil {
			t.Fatalf("vacuum failed: %v", err)
		}
		if !ran {
			t.Error("expected vacuum to run on the sqlite backend")
		}
	})
}

func TestDatabaseStats(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.WriteBatch(ctx, makeConnBatch()); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	stats, err := store.DatabaseStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.DBType != string(DatabaseTypeSQLite) {
		t.Errorf("db_type = %q", stats.DBType)
	}
	if stats.RawLogsCount != 2 || stats.EventsCount != 1 {
		t.Errorf("counts = %d/%d", stats.RawLogsCount, stats.EventsCount)
	}
	want := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	if stats.OldestEventTs == nil || !stats.OldestEventTs.UTC().Equal(want) {
		t.Errorf("oldest_event_ts = %v", stats.OldestEventTs)
	}
	if stats.NewestRawTs == nil || !stats.NewestRawTs.UTC().Equal(want.Add(time.Minute)) {
		t.Errorf("newest_raw_ts = %v", stats.NewestRawTs)
	}
	if stats.DBFileSizeBytes == nil || *stats.DBFileSizeBytes <= 0 {
		t.Errorf("db_file_size_bytes = %v", stats.DBFileSizeBytes)
	}
}

func TestPurgeFirewallData(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("counts every table", func(t *testing.T) {
		batch := makeConnBatch()
		batch.Unclassified = map[UnclassifiedKey]int64{
			{Device: "fw1", Kind: string(models.KindZone), Name: "guest"}: 1,
		}
		if err := store.WriteBatch(ctx, batch); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}
		if _, err := store.UpsertClassification(ctx, &models.Classification{
			Device: "fw1", Kind: string(models.KindZone), Name: "lan", Side: string(models.SideInside),
		}); err != nil {
			t.Fatalf("seed classification failed: %v", err)
		}
		seen := time.Now().UTC()
		di := &Batch{Source: BatchSourceSyslog, Devices: []*models.DeviceIdentification{{
			FirewallDevice: "fw1", SrcMac: "aa:bb:cc:dd:ee:01", DeviceIP4: "10.0.0.1", LastSeen: &seen,
		}}}
		if err := store.WriteBatch(ctx, di); err != nil {
			t.Fatalf("seed identification failed: %v", err)
		}
		if err := store.DB().Create(&models.DeviceOverride{FirewallDevice: "fw1", Mac: "aa:bb:cc:dd:ee:01", OverrideVendor: "ACME"}).Error; err != nil {
			t.Fatalf("seed device override failed: %v", err)
		}
		if err := store.DB().Create(&models.RouterMac{Device: "fw1", Mac: "ff:ee:dd:cc:bb:aa", Direction: models.RouterMacSrc}).Error; err != nil {
			t.Fatalf("seed router mac failed: %v", err)
		}
		if _, err := store.SetFirewallOverride(ctx, "fw1", "Edge", ""); err != nil {
			t.Fatalf("seed firewall override failed: %v", err)
		}

		counts, err := store.PurgeFirewallData(ctx, "fw1", []string{"fw1"})
		if err != nil {
			t.Fatalf("purge failed: %v", err)
		}

		want := map[string]int64{
			"flows_deleted":                  6,
			"endpoints_deleted":              3,
			"events_deleted":                 1,
			"raw_logs_deleted":               2,
			"unclassified_endpoints_deleted": 1,
			"classifications_deleted":        1,
			"device_identifications_deleted": 1,
			"device_overrides_deleted":       1,
			"router_macs_deleted":            1,
			"firewall_overrides_deleted":     1,
			"firewall_inventory_deleted":     1,
		}
		for key, expected := range want {
			if counts[key] != expected {
				t.Errorf("%s = %d, expected %d", key, counts[key], expected)
			}
		}

		for _, model := range []interface{}{
			&models.Flow{}, &models.Endpoint{}, &models.Event{}, &models.RawLog{},
			&models.UnclassifiedEndpoint{}, &models.Classification{},
			&models.DeviceIdentification{}, &models.FirewallInventory{},
		} {
			if n := countRows(t, store, model); n != 0 {
				t.Errorf("%T rows remain after purge: %d", model, n)
			}
		}
	})

	t.Run("cluster purge removes canonical rows", func(t *testing.T) {
		if _, err := store.EnableHaCluster(ctx, "pair", true); err != nil {
			t.Fatalf("enable cluster failed: %v", err)
		}

		ts := time.Date(2026, 4, 3, 7, 0, 0, 0, time.UTC)
		destPort := 53
		batch := &Batch{
			Source: BatchSourceSyslog,
			RawLogs: []*models.RawLog{
				{TsUTC: ts, Device: "pair_Master", RawRecord: "EFW: CONN:", ParseStatus: models.ParseStatusOK},
			},
			Events: []*models.Event{{
				TsUTC: ts, Device: "pair_Master", DeviceMember: "pair_Master", FirewallKey: "ha:pair",
				EventType: models.EventConnOpen, Proto: "udp",
				RecvZone: "lan", DestZone: "wan",
				SrcIP: "10.0.0.9", DestIP: "1.1.1.1", DestPort: &destPort,
			}},
		}
		if err := store.WriteBatch(ctx, batch); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}

		members, err := store.ResolveDeviceMembers(ctx, "ha:pair")
		if err != nil {
			t.Fatalf("resolve members failed: %v", err)
		}
		counts, err := store.PurgeFirewallData(ctx, "ha:pair", members)
		if err != nil {
			t.Fatalf("purge failed: %v", err)
		}

		if counts["events_deleted"] != 1 || counts["raw_logs_deleted"] != 1 {
			t.Errorf("member rows not purged: %v", counts)
		}
		if counts["flows_deleted"] == 0 || counts["endpoints_deleted"] == 0 {
			t.Errorf("canonical ha rows not purged: %v", counts)
		}
		if counts["firewall_inventory_deleted"] != 1 {
			t.Errorf("inventory not purged: %v", counts)
		}
	})
}

func TestWriteBatchTranslatedOnlyFlows(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	// No original src endpoint, but a NAT one: the translated view still
	// gets its rows while the original view is skipped.
	batch := makeConnBatch()
	batch.Events[0].SrcIP = ""
	batch.Events[0].XlatSrcIP = "192.0.2.1"
	if err := store.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("write batch failed: %v", err)
	}

	if n := countRows(t, store, &models.Flow{}); n != 3 {
		t.Fatalf("flows = %d, expected translated view only", n)
	}
	var kinds []string
	if err := store.DB().Model(&models.Flow{}).Distinct().Pluck("view_kind", &kinds).Error; err != nil {
		t.Fatalf("failed to load view kinds: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != string(models.ViewTranslated) {
		t.Errorf("view kinds = %v", kinds)
	}
}

func TestWriteBatchConcurrentFlowMerge(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WriteBatch(ctx, makeConnBatch())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write failed: %v", err)
		}
	}

	if n := countRows(t, store, &models.Event{}); n != writers {
		t.Errorf("events = %d, expected %d", n, writers)
	}
	if n := countRows(t, store, &models.Flow{}); n != 6 {
		t.Errorf("flows = %d, expected merge to hold under concurrency", n)
	}

	var flow models.Flow
	if err := store.DB().Where(
		"basis = ? AND view_kind = ?", string(models.BasisZone), string(models.ViewOriginal),
	).First(&flow).Error; err != nil {
		t.Fatalf("failed to load zone flow: %v", err)
	}
	if flow.CountOpen != writers {
		t.Errorf("count_open = %d, expected %d", flow.CountOpen, writers)
	}
	if flow.GetTopRules()["allow_out"] != writers {
		t.Errorf("top_rules = %v", flow.GetTopRules())
	}
}
