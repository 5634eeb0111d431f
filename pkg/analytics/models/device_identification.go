package models

import "time"

// DeviceIdentification persists device-fingerprint info from DEVICE records,
// keyed by (firewall_device, srcmac). Updates keep the freshest non-empty
// value per column.
type DeviceIdentification struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	FirewallDevice string `gorm:"size:255;index;uniqueIndex:uq_devid_device_mac" json:"firewall_device"`
	SrcMac         string `gorm:"column:srcmac;size:64;index;uniqueIndex:uq_devid_device_mac" json:"srcmac"`

	Hostname            string `gorm:"size:255" json:"hostname,omitempty"`
	IfName              string `gorm:"size:255" json:"if_name,omitempty"`
	Zone                string `gorm:"size:255" json:"zone,omitempty"`
	DeviceIP4           string `gorm:"column:device_ip4;size:64" json:"device_ip4,omitempty"`
	DeviceIP6           string `gorm:"column:device_ip6;size:128" json:"device_ip6,omitempty"`
	DeviceVendor        string `gorm:"size:255" json:"device_vendor,omitempty"`
	DeviceType          string `gorm:"size:255" json:"device_type,omitempty"`
	DeviceTypeName      string `gorm:"size:255" json:"device_type_name,omitempty"`
	DeviceTypeGroupName string `gorm:"size:255" json:"device_type_group_name,omitempty"`
	DeviceOSName        string `gorm:"column:device_os_name;size:255" json:"device_os_name,omitempty"`
	DeviceBrand         string `gorm:"size:255" json:"device_brand,omitempty"`
	DeviceModel         string `gorm:"size:255" json:"device_model,omitempty"`
	DeviceRank          *int   `json:"device_rank,omitempty"`

	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`

	// Last full DEVICE record as a JSON object stored as text.
	RawEventJSON string `gorm:"column:raw_event_json;type:text" json:"-"`
}

// TableName returns the table name for DeviceIdentification.
func (DeviceIdentification) TableName() string {
	return "device_identifications"
}

// GetRawEvent returns the stored DEVICE record fields as a map.
func (d *DeviceIdentification) GetRawEvent() map[string]any {
	return parseAnyMap(d.RawEventJSON)
}

// SetRawEvent serializes the DEVICE record fields for storage.
func (d *DeviceIdentification) SetRawEvent(fields map[string]any) {
	d.RawEventJSON = marshalAnyMap(fields)
}

// DeviceOverride carries operator overrides for device metadata, keyed by
// (firewall_device, mac). A non-empty override wins over auto-detection.
type DeviceOverride struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	FirewallDevice   string     `gorm:"size:255;index;uniqueIndex:uq_device_override_device_mac" json:"firewall_device"`
	Mac              string     `gorm:"size:64;index;uniqueIndex:uq_device_override_device_mac" json:"mac"`
	OverrideOSName   string     `gorm:"column:override_os_name;size:255" json:"override_os_name,omitempty"`
	OverrideTypeName string     `gorm:"size:255" json:"override_type_name,omitempty"`
	OverrideVendor   string     `gorm:"size:255" json:"override_vendor,omitempty"`
	OverrideBrand    string     `gorm:"size:255" json:"override_brand,omitempty"`
	OverrideModel    string     `gorm:"size:255" json:"override_model,omitempty"`
	Comment          string     `gorm:"type:text" json:"comment,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for DeviceOverride.
func (DeviceOverride) TableName() string {
	return "device_overrides"
}

// Router MAC directions.
const (
	RouterMacSrc  = "src"
	RouterMacDest = "dest"
	RouterMacBoth = "both"
)

// RouterMac flags a MAC as a router next-hop address. Traffic behind these
// MACs is grouped under a Router bucket instead of spawning one endpoint node
// per IP.
type RouterMac struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Device    string    `gorm:"size:255;index;uniqueIndex:uq_router_mac_device_mac_dir" json:"device"`
	Mac       string    `gorm:"size:64;index;uniqueIndex:uq_router_mac_device_mac_dir" json:"mac"`
	Direction string    `gorm:"size:8;default:src;uniqueIndex:uq_router_mac_device_mac_dir" json:"direction"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for RouterMac.
func (RouterMac) TableName() string {
	return "router_macs"
}

// AppliesTo reports whether the flag covers the given traffic direction.
func (r *RouterMac) AppliesTo(direction string) bool {
	return r.Direction == RouterMacBoth || r.Direction == direction
}
