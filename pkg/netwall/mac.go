package netwall

import (
	"strings"
)

var macCleaner = strings.NewReplacer(":", "", "-", "", ".", "")

// NormalizeMAC normalizes a MAC address to uppercase hyphen-separated
// AA-BB-CC-DD-EE-FF format. Colon-separated, hyphen-separated, dot-separated
// (aabb.ccdd.eeff) and bare hex inputs are accepted. Input that is not a
// valid 6-byte MAC falls back to the uppercased original with colons replaced
// by hyphens; empty input yields "".
func NormalizeMAC(mac string) string {
	trimmed := strings.TrimSpace(mac)
	if trimmed == "" {
		return ""
	}
	cleaned := macCleaner.Replace(strings.ToUpper(trimmed))
	if cleaned == "" {
		return ""
	}
	if len(cleaned) != 12 || !isHexString(cleaned) {
		return strings.ReplaceAll(strings.ToUpper(trimmed), ":", "-")
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String()
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
