package netwall

import "testing"

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name       string
		device     string
		wantKey    string
		wantMember string
	}{
		{"master member", "gw-edge_Master", "ha:gw-edge", "gw-edge_Master"},
		{"slave member", "gw-edge_Slave", "ha:gw-edge", "gw-edge_Slave"},
		{"standalone", "gw-branch", "gw-branch", ""},
		{"suffix is case sensitive", "gw-edge_master", "gw-edge_master", ""},
		{"trims whitespace", "  gw-edge_Master  ", "ha:gw-edge", "gw-edge_Master"},
		{"bare suffix keeps raw name", "_Master", "_Master", "_Master"},
		{"empty", "", "", ""},
		{"whitespace only", "   ", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, member := CanonicalKey(tt.device)
			if key != tt.wantKey || member != tt.wantMember {
				t.Errorf("CanonicalKey(%q) = (%q, %q), want (%q, %q)",
					tt.device, key, member, tt.wantKey, tt.wantMember)
			}
		})
	}
}

func TestCanonicalKeyForImport(t *testing.T) {
	// Imports must never collapse members; files are single-node exports.
	if got := CanonicalKeyForImport(" gw-edge_Master "); got != "gw-edge_Master" {
		t.Errorf("got %q", got)
	}
	if got := CanonicalKeyForImport("gw-branch"); got != "gw-branch" {
		t.Errorf("got %q", got)
	}
}

func TestHAKeyHelpers(t *testing.T) {
	if !IsHAKey("ha:gw-edge") {
		t.Error("IsHAKey(ha:gw-edge) = false")
	}
	if IsHAKey("gw-edge") {
		t.Error("IsHAKey(gw-edge) = true")
	}
	if got := HABase("ha:gw-edge"); got != "gw-edge" {
		t.Errorf("HABase = %q", got)
	}
	if got := HABase("gw-edge"); got != "gw-edge" {
		t.Errorf("HABase passthrough = %q", got)
	}

	base, ok := MemberBase("gw-edge_Slave")
	if !ok || base != "gw-edge" {
		t.Errorf("MemberBase = %q, %v", base, ok)
	}
	if _, ok := MemberBase("gw-edge"); ok {
		t.Error("MemberBase claimed a standalone device")
	}

	members := DefaultMembers("gw-edge")
	if len(members) != 2 || members[0] != "gw-edge_Master" || members[1] != "gw-edge_Slave" {
		t.Errorf("DefaultMembers = %v", members)
	}
	if got := DefaultClusterLabel("gw-edge"); got != "gw-edge (HA)" {
		t.Errorf("DefaultClusterLabel = %q", got)
	}
}
