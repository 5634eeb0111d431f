package models

import "time"

// FlowBasis is the categorical axis a flow is aggregated along.
type FlowBasis string

const (
	BasisSide      FlowBasis = "side"
	BasisZone      FlowBasis = "zone"
	BasisInterface FlowBasis = "interface"
)

// IsValid checks if the basis is a valid FlowBasis.
func (b FlowBasis) IsValid() bool {
	return b == BasisSide || b == BasisZone || b == BasisInterface
}

// FlowViewKind selects original or NAT-translated addressing.
type FlowViewKind string

const (
	ViewOriginal   FlowViewKind = "original"
	ViewTranslated FlowViewKind = "translated"
)

// IsValid checks if the kind is a valid FlowViewKind.
func (v FlowViewKind) IsValid() bool {
	return v == ViewOriginal || v == ViewTranslated
}

// Flow is an aggregated traffic grouping. One row per identity 9-tuple
// (device, basis, from_value, to_value, proto, dest_port, src_endpoint_id,
// dst_endpoint_id, view_kind); open events merge into the row's counters.
//
// The identity columns are NOT NULL with ''/0 defaults: the unique index must
// collapse "absent" values, and SQLite treats NULLs in a unique index as
// distinct from each other.
type Flow struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Device    string `gorm:"size:255;index;uniqueIndex:ux_flows_identity" json:"device"`
	Basis     string `gorm:"size:16;index;uniqueIndex:ux_flows_identity" json:"basis"`
	FromValue string `gorm:"size:255;index;uniqueIndex:ux_flows_identity" json:"from_value"`
	ToValue   string `gorm:"size:255;index;uniqueIndex:ux_flows_identity" json:"to_value"`

	Proto    string `gorm:"size:16;not null;default:'';index;uniqueIndex:ux_flows_identity" json:"proto,omitempty"`
	DestPort int    `gorm:"not null;default:0;index;uniqueIndex:ux_flows_identity" json:"dest_port,omitempty"`

	SrcEndpointID int64 `gorm:"not null;default:0;index;uniqueIndex:ux_flows_identity" json:"src_endpoint_id"`
	DstEndpointID int64 `gorm:"not null;default:0;index;uniqueIndex:ux_flows_identity" json:"dst_endpoint_id"`

	ViewKind string `gorm:"size:16;default:original;index;uniqueIndex:ux_flows_identity" json:"view_kind"`

	CountOpen      int64 `gorm:"default:0" json:"count_open"`
	CountClose     int64 `gorm:"default:0" json:"count_close"`
	BytesSrcToDst  int64 `gorm:"default:0" json:"bytes_src_to_dst"`
	BytesDstToSrc  int64 `gorm:"default:0" json:"bytes_dst_to_src"`
	DurationTotalS int64 `gorm:"column:duration_total_s;default:0" json:"duration_total_s"`

	FirstSeen *time.Time `gorm:"index" json:"first_seen,omitempty"`
	LastSeen  *time.Time `gorm:"index" json:"last_seen,omitempty"`

	// JSON string→count maps stored as text.
	TopRules string `gorm:"type:text" json:"-"`
	TopApps  string `gorm:"type:text" json:"-"`
}

// TableName returns the table name for Flow.
func (Flow) TableName() string {
	return "flows"
}

// GetTopRules returns the per-rule open counts as a map.
func (f *Flow) GetTopRules() map[string]int64 {
	return parseCountMap(f.TopRules)
}

// SetTopRules serializes the per-rule open counts for storage.
func (f *Flow) SetTopRules(m map[string]int64) {
	f.TopRules = marshalCountMap(m)
}

// GetTopApps returns the per-application open counts as a map.
func (f *Flow) GetTopApps() map[string]int64 {
	return parseCountMap(f.TopApps)
}

// SetTopApps serializes the per-application open counts for storage.
func (f *Flow) SetTopApps(m map[string]int64) {
	f.TopApps = marshalCountMap(m)
}
