package models

import "time"

// CONN event types as emitted in the firewall's event= field.
const (
	EventConnOpen        = "conn_open"
	EventConnOpenNATSAT  = "conn_open_natsat"
	EventConnClose       = "conn_close"
	EventConnCloseNATSAT = "conn_close_natsat"
)

// IsOpenEvent reports whether eventType marks a connection opening. Only open
// events feed flow aggregation.
func IsOpenEvent(eventType string) bool {
	return eventType == EventConnOpen || eventType == EventConnOpenNATSAT
}

// Event is one parsed CONN record.
//
// device holds the raw hostname for backward compatibility; firewall_key is
// the canonical grouping key (ha:base for recognized HA members on the syslog
// path) and device_member keeps the raw member hostname for display.
type Event struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	TsUTC        time.Time `gorm:"column:ts_utc;index" json:"ts_utc"`
	Device       string    `gorm:"size:255;index" json:"device"`
	DeviceMember string    `gorm:"size:255;index" json:"device_member,omitempty"`
	FirewallKey  string    `gorm:"size:255;index" json:"firewall_key,omitempty"`
	EventType    string    `gorm:"size:64;index" json:"event_type,omitempty"`
	Action       string    `gorm:"size:64;index" json:"action,omitempty"`

	Rule         string `gorm:"size:255" json:"rule,omitempty"`
	SatSrcRule   string `gorm:"column:satsrcrule;size:255" json:"satsrcrule,omitempty"`
	SatDestRule  string `gorm:"column:satdestrule;size:255" json:"satdestrule,omitempty"`
	SrcUsername  string `gorm:"column:srcusername;size:255" json:"srcusername,omitempty"`
	DestUsername string `gorm:"column:destusername;size:255" json:"destusername,omitempty"`

	// Original tuple.
	Proto      string `gorm:"size:16;index" json:"proto,omitempty"`
	RecvIf     string `gorm:"size:255;index" json:"recv_if,omitempty"`
	RecvZone   string `gorm:"size:255;index" json:"recv_zone,omitempty"`
	SrcIP      string `gorm:"size:64;index" json:"src_ip,omitempty"`
	SrcPort    *int   `json:"src_port,omitempty"`
	SrcMac     string `gorm:"size:64" json:"src_mac,omitempty"`
	SrcDevice  string `gorm:"size:255" json:"src_device,omitempty"`
	DestIf     string `gorm:"size:255;index" json:"dest_if,omitempty"`
	DestZone   string `gorm:"size:255;index" json:"dest_zone,omitempty"`
	DestIP     string `gorm:"size:64;index" json:"dest_ip,omitempty"`
	DestPort   *int   `json:"dest_port,omitempty"`
	DestMac    string `gorm:"size:64" json:"dest_mac,omitempty"`
	DestDevice string `gorm:"size:255" json:"dest_device,omitempty"`

	// NAT/SAT translated tuple.
	XlatSrcIP    string `gorm:"size:64;index" json:"xlat_src_ip,omitempty"`
	XlatSrcPort  *int   `json:"xlat_src_port,omitempty"`
	XlatDestIP   string `gorm:"size:64;index" json:"xlat_dest_ip,omitempty"`
	XlatDestPort *int   `json:"xlat_dest_port,omitempty"`

	BytesOrig *int64 `gorm:"column:bytes_orig" json:"bytes_orig,omitempty"`
	BytesTerm *int64 `gorm:"column:bytes_term" json:"bytes_term,omitempty"`
	DurationS *int64 `gorm:"column:duration_s" json:"duration_s,omitempty"`

	AppName   string `gorm:"size:255" json:"app_name,omitempty"`
	AppRisk   string `gorm:"size:64" json:"app_risk,omitempty"`
	AppFamily string `gorm:"size:255" json:"app_family,omitempty"`

	// IP reputation, flattened.
	IprepIP         string `gorm:"size:64;index" json:"iprep_ip,omitempty"`
	IprepScore      *int   `json:"iprep_score,omitempty"`
	IprepCategories string `gorm:"size:255" json:"iprep_categories,omitempty"`
	IprepSrc        string `gorm:"size:64" json:"iprep_src,omitempty"`
	IprepDest       string `gorm:"size:64" json:"iprep_dest,omitempty"`
	IprepSrcScore   *int   `json:"iprep_src_score,omitempty"`
	IprepDestScore  *int   `json:"iprep_dest_score,omitempty"`

	// Derived by the classifier.
	RecvSide        string `gorm:"size:32;index" json:"recv_side,omitempty"`
	DestSide        string `gorm:"size:32;index" json:"dest_side,omitempty"`
	DirectionBucket string `gorm:"size:64;index" json:"direction_bucket,omitempty"`

	// JSON object stored as text; unmapped parser keys land under "unmapped".
	ExtraJSON string `gorm:"column:extra_json;type:text" json:"-"`
}

// TableName returns the table name for Event.
func (Event) TableName() string {
	return "events"
}

// GetExtra returns the extra JSON object as a map.
func (e *Event) GetExtra() map[string]any {
	return parseAnyMap(e.ExtraJSON)
}

// SetExtra serializes the extra object for storage.
func (e *Event) SetExtra(extra map[string]any) {
	e.ExtraJSON = marshalAnyMap(extra)
}
