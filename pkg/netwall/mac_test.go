package netwall

import "testing"

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF"},
		{"AA-BB-CC-DD-EE-FF", "AA-BB-CC-DD-EE-FF"},
		{"aabb.ccdd.eeff", "AA-BB-CC-DD-EE-FF"},
		{"aabbccddeeff", "AA-BB-CC-DD-EE-FF"},
		{"  aa:bb:cc:dd:ee:ff  ", "AA-BB-CC-DD-EE-FF"},
		{"", ""},
		{"   ", ""},
		// Invalid inputs fall back to the uppercased original with colons
		// swapped for hyphens.
		{"not-a-mac", "NOT-A-MAC"},
		{"aa:bb:cc", "AA-BB-CC"},
		{"zz:bb:cc:dd:ee:ff", "ZZ-BB-CC-DD-EE-FF"},
		{"aa:bb:cc:dd:ee:ff:00", "AA-BB-CC-DD-EE-FF-00"},
	}
	for _, tt := range tests {
		if got := NormalizeMAC(tt.in); got != tt.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
