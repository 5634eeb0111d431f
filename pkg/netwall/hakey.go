package netwall

import (
	"strings"
)

// HA member suffixes as emitted by NetWall nodes. Case-sensitive by
// convention; a lowercase "_master" host is treated as standalone.
const (
	HAMasterSuffix = "_Master"
	HASlaveSuffix  = "_Slave"

	// HAKeyPrefix marks canonical cluster keys ("ha:gw-edge").
	HAKeyPrefix = "ha:"
)

// CanonicalKey collapses an HA member name to its cluster key:
// "gw-edge_Master" and "gw-edge_Slave" both map to "ha:gw-edge"; anything
// else maps to itself. member is the raw hostname when a suffix matched,
// "" for standalone devices, so callers can keep it for display.
//
// Use the key for inventory, endpoints, and flows; use the member for the
// raw device column.
func CanonicalKey(deviceRaw string) (key, member string) {
	d := strings.TrimSpace(deviceRaw)
	if d == "" {
		return d, ""
	}
	for _, suffix := range []string{HAMasterSuffix, HASlaveSuffix} {
		if strings.HasSuffix(d, suffix) {
			base := strings.TrimSpace(strings.TrimSuffix(d, suffix))
			if base == "" {
				return d, d
			}
			return HAKeyPrefix + base, d
		}
	}
	return d, ""
}

// CanonicalKeyForImport returns the trimmed device name unchanged. File
// exports are always single-node, so import jobs must not collapse members
// into a cluster key; enabling a cluster later re-groups them at read time.
func CanonicalKeyForImport(deviceRaw string) string {
	return strings.TrimSpace(deviceRaw)
}

// IsHAKey reports whether key is a canonical cluster key.
func IsHAKey(key string) bool {
	return strings.HasPrefix(key, HAKeyPrefix)
}

// HABase returns the cluster base of a canonical key ("ha:gw" -> "gw").
// Non-cluster keys are returned unchanged.
func HABase(key string) string {
	return strings.TrimSpace(strings.TrimPrefix(key, HAKeyPrefix))
}

// MemberBase returns the cluster base when device is an HA member name.
func MemberBase(device string) (base string, ok bool) {
	d := strings.TrimSpace(device)
	for _, suffix := range []string{HAMasterSuffix, HASlaveSuffix} {
		if strings.HasSuffix(d, suffix) {
			b := strings.TrimSpace(strings.TrimSuffix(d, suffix))
			if b != "" {
				return b, true
			}
		}
	}
	return "", false
}

// DefaultMembers returns the conventional member names for a cluster base.
func DefaultMembers(base string) []string {
	return []string{base + HAMasterSuffix, base + HASlaveSuffix}
}

// DefaultClusterLabel returns the display label used for a cluster until a
// rename: "gw-edge (HA)".
func DefaultClusterLabel(base string) string {
	return base + " (HA)"
}
