package models

import "time"

// Parse statuses carried on RawLog rows.
const (
	ParseStatusOK    = "ok"
	ParseStatusError = "error"
)

// RawLog is the audit copy of every record accepted for parsing, including
// records the parser could not make sense of.
type RawLog struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TsUTC       time.Time `gorm:"column:ts_utc;index" json:"ts_utc"`
	Device      string    `gorm:"size:255;index" json:"device"`
	RawRecord   string    `gorm:"type:text" json:"raw_record"`
	ParseStatus string    `gorm:"size:32;default:ok;index" json:"parse_status"`
	ParseError  string    `gorm:"type:text" json:"parse_error,omitempty"`
}

// TableName returns the table name for RawLog.
func (RawLog) TableName() string {
	return "raw_logs"
}
