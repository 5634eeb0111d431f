package models

// ClassificationKind selects which event attribute a rule matches on.
type ClassificationKind string

const (
	// KindZone matches the event's receive/destination zone name.
	KindZone ClassificationKind = "zone"
	// KindInterface matches the event's receive/destination interface name.
	KindInterface ClassificationKind = "interface"
)

// IsValid checks if the kind is a valid ClassificationKind.
func (k ClassificationKind) IsValid() bool {
	return k == KindZone || k == KindInterface
}

// ClassificationSide is the direction label assigned by a rule.
type ClassificationSide string

const (
	SideInside  ClassificationSide = "inside"
	SideOutside ClassificationSide = "outside"
	SideRemote  ClassificationSide = "remote"
	SideUnknown ClassificationSide = "unknown"
)

// IsValid checks if the side is a valid ClassificationSide.
func (s ClassificationSide) IsValid() bool {
	switch s {
	case SideInside, SideOutside, SideRemote, SideUnknown:
		return true
	}
	return false
}

// Classification maps a per-device (kind, name) to a side. Zone rules take
// precedence over interface rules; within a kind higher priority wins.
type Classification struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Device   string `gorm:"size:255;index;uniqueIndex:uq_classification_device_kind_name" json:"device"`
	Kind     string `gorm:"size:16;index;uniqueIndex:uq_classification_device_kind_name" json:"kind"`
	Name     string `gorm:"size:255;index;uniqueIndex:uq_classification_device_kind_name" json:"name"`
	Side     string `gorm:"size:16;default:unknown;index" json:"side"`
	Priority int    `gorm:"default:0" json:"priority"`
}

// TableName returns the table name for Classification.
func (Classification) TableName() string {
	return "classifications"
}

// UnclassifiedEndpoint counts direction lookups that missed every rule, so an
// operator can see which zone/interface names still need labelling.
type UnclassifiedEndpoint struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Device string `gorm:"size:255;index;uniqueIndex:uq_unclassified_device_kind_name" json:"device"`
	Kind   string `gorm:"size:16;index;uniqueIndex:uq_unclassified_device_kind_name" json:"kind"`
	Name   string `gorm:"size:255;index;uniqueIndex:uq_unclassified_device_kind_name" json:"name"`
	Count  int64  `gorm:"default:0" json:"count"`
}

// TableName returns the table name for UnclassifiedEndpoint.
func (UnclassifiedEndpoint) TableName() string {
	return "unclassified_endpoints"
}
