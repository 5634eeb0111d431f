package bytesize

import (
	"testing"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"plain large", "1073741824", 1073741824, false},

		{"bytes suffix", "1024B", 1024, false},
		{"bytes suffix lowercase", "1024b", 1024, false},

		{"kibibytes", "1Ki", 1024, false},
		{"kibibytes long", "1KiB", 1024, false},
		{"mebibytes", "100Mi", 100 * MiB, false},
		{"gibibytes", "1GiB", GiB, false},
		{"tebibytes", "1Ti", TiB, false},

		{"kilobytes", "1KB", 1000, false},
		{"megabytes", "100M", 100 * MB, false},
		{"gigabytes", "1GB", GB, false},
		{"terabytes", "1TB", TB, false},

		{"lowercase unit", "1gi", GiB, false},
		{"uppercase unit", "1GI", GiB, false},
		{"surrounding space", "  1Gi  ", GiB, false},
		{"space between number and unit", "1 Gi", GiB, false},

		{"fractional mebibytes", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"fractional gibibytes", "0.5Gi", ByteSize(0.5 * float64(GiB)), false},

		// Values the config actually uses.
		{"udp read buffer", "1MB", MB, false},
		{"spool read chunk", "64KB", 64 * KB, false},
		{"upload cap", "1GB", GB, false},

		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"unknown unit", "1Xi", 0, true},
		{"negative number", "-1Gi", 0, true},
		{"unit without number", "Gi", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSizeUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("1Gi")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != GiB {
		t.Errorf("UnmarshalText(1Gi) = %d, want %d", b, GiB)
	}

	if err := b.UnmarshalText([]byte("invalid")); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{100 * MiB, "100.00MiB"},
		{GiB, "1.00GiB"},
		{2 * TiB, "2.00TiB"},
		{ByteSize(1.5 * float64(GiB)), "1.50GiB"},
	}

	for _, tt := range tests {
		if got := tt.input.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestByteSizeConversions(t *testing.T) {
	size := GiB
	if got := size.Uint64(); got != 1<<30 {
		t.Errorf("Uint64() = %d, want %d", got, 1<<30)
	}
	if got := size.Int64(); got != 1<<30 {
		t.Errorf("Int64() = %d, want %d", got, 1<<30)
	}
}
