package models

import "time"

// FirewallInventory tracks where a firewall's data came from (live syslog,
// file import, or both) and when. Retention only ever touches firewalls with
// source_syslog=1 and source_import=0; operator-uploaded snapshots are kept
// until purged explicitly.
type FirewallInventory struct {
	DeviceKey    string     `gorm:"primaryKey;size:255" json:"device_key"`
	SourceSyslog int        `gorm:"not null;default:0" json:"source_syslog"`
	SourceImport int        `gorm:"not null;default:0" json:"source_import"`
	FirstSeenTs  *time.Time `json:"first_seen_ts,omitempty"`
	LastSeenTs   *time.Time `json:"last_seen_ts,omitempty"`
	LastImportTs *time.Time `json:"last_import_ts,omitempty"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

// TableName returns the table name for FirewallInventory.
func (FirewallInventory) TableName() string {
	return "firewalls"
}

// IsSyslogOnly reports whether retention may delete this firewall's rows.
func (f *FirewallInventory) IsSyslogOnly() bool {
	return f.SourceSyslog == 1 && f.SourceImport == 0
}

// FirewallOverride carries the operator display name and comment for a
// canonical device key (standalone device or HA base).
type FirewallOverride struct {
	DeviceKey   string    `gorm:"primaryKey;size:255" json:"device_key"`
	DisplayName string    `gorm:"size:512;not null" json:"display_name"`
	Comment     string    `gorm:"type:text" json:"comment,omitempty"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;not null" json:"updated_at"`
}

// TableName returns the table name for FirewallOverride.
func (FirewallOverride) TableName() string {
	return "firewall_overrides"
}

// HaCluster is an operator-confirmed HA pair: Master and Slave aggregated
// under one label. Aggregation by the cluster key only happens while
// is_enabled is true.
type HaCluster struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Base      string `gorm:"size:255;uniqueIndex:uq_ha_cluster_base" json:"base"`
	Label     string `gorm:"size:255" json:"label"`
	Members   string `gorm:"type:text" json:"-"`
	IsEnabled bool   `gorm:"default:false" json:"is_enabled"`
}

// TableName returns the table name for HaCluster.
func (HaCluster) TableName() string {
	return "ha_clusters"
}

// GetMembers returns the member device names as a slice.
func (h *HaCluster) GetMembers() []string {
	return parseStringSlice(h.Members)
}

// SetMembers serializes the member device names for storage.
func (h *HaCluster) SetMembers(members []string) {
	h.Members = marshalStringSlice(members)
}
