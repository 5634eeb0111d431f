package netwall

import (
	"regexp"
	"strconv"
	"strings"
)

// kvPairRE parses key=value where value is either "quoted" (may contain
// spaces) or an unquoted non-space token. It is applied to the full
// rest-of-record string, not per token, so quoted values with spaces work.
var kvPairRE = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|(\S+))`)

// intFields is the allowlist of keys coerced to integers.
var intFields = map[string]struct{}{
	"prio":             {},
	"rev":              {},
	"origsent":         {},
	"termsent":         {},
	"conntime":         {},
	"score":            {},
	"iprep_src_score":  {},
	"iprep_dest_score": {},
	"connsrcport":      {},
	"conndestport":     {},
	"connnewsrcport":   {},
	"connnewdestport":  {},
	"devicerank":       {},
}

// parseKVInto scans segment for key=value pairs and writes them into fields,
// last write wins. Allowlisted numeric keys that coerce also land in ints; a
// later non-numeric occurrence clears a stale coerced value.
func parseKVInto(segment string, fields map[string]string, ints map[string]int64) {
	for _, m := range kvPairRE.FindAllStringSubmatch(segment, -1) {
		key := m[1]
		val := m[2]
		if m[3] != "" {
			val = m[3]
		}
		fields[key] = val
		if _, numeric := intFields[key]; numeric {
			if iv, ok := coerceInt(val); ok {
				ints[key] = iv
			} else {
				delete(ints, key)
			}
		}
	}
}

// coerceInt parses leading digits as an integer, ignoring trailing junk.
func coerceInt(s string) (int64, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeConnFields lowercases enum-like values (conn=Open -> open) and
// aliases srcuser to srcusername when the latter is absent.
func normalizeConnFields(fields map[string]string) {
	for _, key := range []string{"conn", "action", "event"} {
		if v, ok := fields[key]; ok && v != "" {
			fields[key] = strings.ToLower(strings.TrimSpace(v))
		}
	}
	if v, ok := fields["srcuser"]; ok {
		if _, exists := fields["srcusername"]; !exists {
			fields["srcusername"] = v
		}
	}
}
