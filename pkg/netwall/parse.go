// Package netwall parses NetWall firewall syslog streams: record
// reconstruction across wrapped lines, the four known header dialects
// (BSD, bracket relay, RFC 5424 classic, InControl RFC 5424 export),
// key=value extraction, and the HA device-key canonicalization shared by
// ingest and display.
package netwall

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// BSD-style: optional <priority> then "Feb 10 17:37:13 hostname [optional] EFW: EVENTTYPE:"
	syslogPrefixRE = regexp.MustCompile(
		`^(?:<\d+>\s*)?` +
			`(?P<month>[A-Z][a-z]{2})\s+` +
			`(?P<day>\d{1,2})\s+` +
			`(?P<time>\d{2}:\d{2}:\d{2})\s+` +
			`(?P<host>\S+)` +
			`(?:\s+\[[^\]]+\])?\s+` + // optional bracketed timestamp chunk
			`EFW:\s+[A-Z][A-Z0-9_]*:\s+`)

	// Relay format: "<priority>[YYYY-MM-DD HH:MM:SS] EFW: EVENTTYPE:" (no BSD header)
	syslogPrefixAltRE = regexp.MustCompile(
		`^(?:<\d+>\s*)?` +
			`\[(?P<year>\d{4})-(?P<month>\d{1,2})-(?P<day>\d{1,2})\s+(?P<time>\d{2}:\d{2}:\d{2})\]\s+` +
			`EFW:\s+[A-Z][A-Z0-9_]*:\s+`)

	// RFC 5424: "<priority>1 ISO-TIMESTAMP HOSTNAME EFW - - - EVENTTYPE: kv..."
	syslogPrefixRFC5424RE = regexp.MustCompile(
		`^(?:<\d+>\s*)?` +
			`1\s+` +
			`(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))\s+` +
			`(?P<host>\S+)\s+` +
			`EFW\s+(?:-\s+){3}` +
			`[A-Z][A-Z0-9_]*:\s+`)

	// InControl export: "<PRI>VERSION TIMESTAMP HOST APP-NAME : id=... event=... [structured data]"
	// e.g. <1>1 2026-02-09T07:32:47Z 15c8cb06-... CONN : id=600004 event=conn_open_natsat [message=...]
	inControlRE = regexp.MustCompile(
		`(?s)^<\d+>\d\s+` +
			`(?P<timestamp>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))\s+` +
			`(?P<host>\S+)\s+` +
			`(?P<app>[A-Z_]+)\s*:\s*` +
			`(?P<msg>.*)$`)
)

var months = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

// ParseStatus values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ParsedRecord is the result of parsing one reconstructed syslog record.
// Fields holds every key=value pair with last-write-wins semantics; keys on
// the numeric allowlist additionally appear in Ints when they coerce.
type ParsedRecord struct {
	TS          time.Time
	Device      string
	LogType     string // RFC 5424 APP-NAME on InControl exports (CONN, ALG, ...)
	Fields      map[string]string
	Ints        map[string]int64
	ParseStatus string
	ParseError  string
}

// Field returns the string value for key, or "".
func (r *ParsedRecord) Field(key string) string {
	return r.Fields[key]
}

// FieldAny returns the first non-empty value among keys.
func (r *ParsedRecord) FieldAny(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(r.Fields[key]); v != "" {
			return r.Fields[key]
		}
	}
	return ""
}

// Int returns the coerced integer value for key.
func (r *ParsedRecord) Int(key string) (int64, bool) {
	v, ok := r.Ints[key]
	return v, ok
}

// IntAny returns the first coerced integer among keys.
func (r *ParsedRecord) IntAny(keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := r.Ints[key]; ok {
			return v, true
		}
	}
	return 0, false
}

// ID returns the record id field as a string, preserving leading zeros.
func (r *ParsedRecord) ID() string {
	return r.Fields["id"]
}

// ParseRecord parses one reconstructed record, trying the InControl export
// format first, then RFC 5424 classic, the bracket relay format, and BSD.
// It never fails hard: a record that defeats every dialect still comes back
// with ParseStatus error, a synthetic UTC timestamp, and device "unknown" so
// it can be preserved in raw_logs.
func ParseRecord(raw string) ParsedRecord {
	if rec, ok := parseInControl(raw); ok {
		return rec
	}
	ts, device, rest, err := parseHeader(raw)
	if err != nil {
		return errorRecord(err)
	}
	rec := ParsedRecord{
		TS:          ts,
		Device:      device,
		Fields:      make(map[string]string),
		Ints:        make(map[string]int64),
		ParseStatus: StatusOK,
	}
	parseKVInto(rest, rec.Fields, rec.Ints)
	normalizeConnFields(rec.Fields)
	return rec
}

// parseHeader parses the syslog header and returns (ts, device, rest after
// header). Tries RFC 5424 first, then the bracket format, then BSD with the
// current UTC year. Records matching no header fall through with the current
// time and device "unknown"; only an unparseable date is an error.
func parseHeader(record string) (time.Time, string, string, error) {
	if loc := syslogPrefixRFC5424RE.FindStringSubmatchIndex(record); loc != nil {
		m := syslogPrefixRFC5424RE.FindStringSubmatch(record)
		ts, err := parseISOTimestamp(m[1])
		if err != nil {
			return time.Time{}, "", "", err
		}
		host := strings.TrimSpace(m[2])
		if host == "" {
			host = "unknown"
		}
		return ts, host, record[loc[1]:], nil
	}

	if loc := syslogPrefixAltRE.FindStringSubmatchIndex(record); loc != nil {
		m := syslogPrefixAltRE.FindStringSubmatch(record)
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		ts, err := parseClockDate(year, month, day, m[4])
		if err != nil {
			return time.Time{}, "", "", err
		}
		return ts, "unknown", record[loc[1]:], nil
	}

	if loc := syslogPrefixRE.FindStringSubmatchIndex(record); loc != nil {
		m := syslogPrefixRE.FindStringSubmatch(record)
		day, _ := strconv.Atoi(m[2])
		host := strings.TrimSpace(m[4])
		if host == "" {
			host = "unknown"
		}
		// BSD timestamps carry no year; assume the current UTC year.
		year := time.Now().UTC().Year()
		month, ok := months[m[1]]
		if !ok {
			month = 1
		}
		ts, err := parseClockDate(year, month, day, m[3])
		if err != nil {
			return time.Time{}, "", "", err
		}
		return ts, host, record[loc[1]:], nil
	}

	return time.Now().UTC(), "unknown", record, nil
}

// parseClockDate parses a date assembled from header fields, rejecting
// impossible values such as month 13 or second 61.
func parseClockDate(year, month, day int, clock string) (time.Time, error) {
	s := fmt.Sprintf("%04d-%02d-%02d %s", year, month, day, clock)
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid syslog date %q: %w", s, err)
	}
	return ts.UTC(), nil
}

// parseISOTimestamp parses an RFC 3339 timestamp with Z or ±HH:MM offset and
// normalizes it to UTC.
func parseISOTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func errorRecord(err error) ParsedRecord {
	return ParsedRecord{
		TS:          time.Now().UTC(),
		Device:      "unknown",
		Fields:      make(map[string]string),
		Ints:        make(map[string]int64),
		ParseStatus: StatusError,
		ParseError:  err.Error(),
	}
}
