package netwall

import (
	"strings"
)

// parseInControl parses an InControl RFC 5424 export line. The second return
// is false when the record is not in this format; a malformed timestamp in a
// matching record still claims the record and yields an error ParsedRecord.
func parseInControl(raw string) (ParsedRecord, bool) {
	m := inControlRE.FindStringSubmatch(raw)
	if m == nil {
		return ParsedRecord{}, false
	}
	ts, err := parseISOTimestamp(m[1])
	if err != nil {
		return errorRecord(err), true
	}
	host := strings.TrimSpace(m[2])
	if host == "" {
		host = "unknown"
	}
	app := strings.TrimSpace(m[3])
	fields, ints := parseInControlMessage(m[4])
	normalizeConnFields(fields)
	return ParsedRecord{
		TS:          ts,
		Device:      host,
		LogType:     app,
		Fields:      fields,
		Ints:        ints,
		ParseStatus: StatusOK,
	}, true
}

// parseInControlMessage parses the MSG part: an id=/event= prefix before the
// first '[' plus key=value pairs from every bracket block, flattened with
// last-write-wins. Nested blocks contribute their interiors too, so inner
// values override the outer ones they repeat.
func parseInControlMessage(msg string) (map[string]string, map[string]int64) {
	fields := make(map[string]string)
	ints := make(map[string]int64)
	prefix, rest, found := strings.Cut(msg, "[")
	parseKVInto(strings.TrimSpace(prefix), fields, ints)
	if found {
		for _, part := range extractBracketInnerParts("[" + rest) {
			parseKVInto(part, fields, ints)
		}
	}
	return fields, ints
}

// extractBracketInnerParts returns the interior of every matched [ ] group in
// s, including the interiors of nested groups. Unbalanced groups are skipped.
func extractBracketInnerParts(s string) []string {
	var parts []string
	i := 0
	for i < len(s) {
		if s[i] != '[' {
			i++
			continue
		}
		depth := 1
		j := i + 1
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '[':
				depth++
			case ']':
				depth--
			}
			j++
		}
		if depth == 0 {
			inner := s[i+1 : j-1]
			parts = append(parts, inner)
			parts = append(parts, extractBracketInnerParts(inner)...)
		}
		i = j
	}
	return parts
}
