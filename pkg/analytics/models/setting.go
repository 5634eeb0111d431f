package models

import (
	"encoding/json"
	"time"
)

// Well-known setting keys.
const (
	SettingLogRetention  = "log_retention"
	SettingLocalNetworks = "local_networks"
	SettingLastCleanup   = "maintenance_last_cleanup"
)

// AppSetting is a key-value settings row with a JSON value stored as text.
type AppSetting struct {
	Key       string     `gorm:"primaryKey;size:255" json:"key"`
	ValueJSON string     `gorm:"column:value_json;type:text" json:"value"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for AppSetting.
func (AppSetting) TableName() string {
	return "app_settings"
}

// DecodeValue unmarshals the setting value into out.
func (s *AppSetting) DecodeValue(out any) error {
	if s.ValueJSON == "" || s.ValueJSON == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.ValueJSON), out)
}

// EncodeValue marshals v as the setting value.
func (s *AppSetting) EncodeValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.ValueJSON = string(data)
	return nil
}

// RetentionPolicy is the value stored under the log_retention key.
type RetentionPolicy struct {
	Enabled  bool `json:"enabled"`
	KeepDays int  `json:"keep_days"`
}

// DefaultRetentionPolicy is served when no log_retention row exists.
func DefaultRetentionPolicy() *RetentionPolicy {
	return &RetentionPolicy{Enabled: true, KeepDays: 3}
}

// Clamp bounds keep_days to the accepted range.
func (p *RetentionPolicy) Clamp() {
	if p.KeepDays < 1 {
		p.KeepDays = 1
	}
	if p.KeepDays > 365 {
		p.KeepDays = 365
	}
}

// LocalNetworks is the value stored under the local_networks key.
type LocalNetworks struct {
	Enabled bool     `json:"enabled"`
	CIDRs   []string `json:"cidrs"`
}

// DefaultLocalNetworks is served when no local_networks row exists.
func DefaultLocalNetworks() *LocalNetworks {
	return &LocalNetworks{
		Enabled: true,
		CIDRs:   []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
	}
}

// CleanupSummary is the value stored under the maintenance_last_cleanup key.
type CleanupSummary struct {
	LastRun        time.Time `json:"last_run"`
	DurationMs     int64     `json:"duration_ms"`
	DeletedEvents  int64     `json:"deleted_events"`
	DeletedRawLogs int64     `json:"deleted_raw_logs"`
	VacuumRan      bool      `json:"vacuum_ran"`
	KeepDays       int       `json:"keep_days"`
	Cutoff         time.Time `json:"cutoff"`
}
