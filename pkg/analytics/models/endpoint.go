package models

// Endpoint is a distinct (device, ip, mac) triple observed in events. The
// identity columns never change; the fingerprint columns are enriched later
// from DEVICE records and overrides. Empty strings stand in for absent mac
// and names so the unique index holds on backends that treat NULLs as
// distinct.
type Endpoint struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Device     string `gorm:"size:255;index;uniqueIndex:uq_endpoint_device_ip_mac" json:"device"`
	IP         string `gorm:"size:64;index;uniqueIndex:uq_endpoint_device_ip_mac" json:"ip"`
	Mac        string `gorm:"size:64;not null;default:'';uniqueIndex:uq_endpoint_device_ip_mac" json:"mac,omitempty"`
	DeviceName string `gorm:"size:255" json:"device_name,omitempty"`

	// Enriched from DEVICE logs when device_ip4 + srcmac match this
	// endpoint's ip + mac.
	Hostname            string `gorm:"size:255" json:"hostname,omitempty"`
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
}

// TableName returns the table name for Endpoint.
func (Endpoint) TableName() string {
	return "endpoints"
}

// DisplayName returns the best available human label for the endpoint.
func (e *Endpoint) DisplayName() string {
	if e.Hostname != "" {
		return e.Hostname
	}
	if e.DeviceName != "" {
		return e.DeviceName
	}
	return e.IP
}
