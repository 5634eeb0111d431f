package netwall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBracketInnerParts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "nested groups outer first",
			in:   "a [b [c x=1 ] d=2 ] e",
			want: []string{"b [c x=1 ] d=2 ", "c x=1 "},
		},
		{
			name: "sibling groups",
			in:   "[a=1 ][b=2 ]",
			want: []string{"a=1 ", "b=2 "},
		},
		{
			name: "no groups",
			in:   "a=1 b=2",
			want: nil,
		},
		{
			name: "unbalanced skipped",
			in:   "a [b [c",
			want: nil,
		},
		{
			name: "empty group",
			in:   "[]",
			want: []string{""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBracketInnerParts(tt.in))
		})
	}
}

func TestParseInControlMessageFlattens(t *testing.T) {
	fields, ints := parseInControlMessage(`id=600004 event=conn_open [outer a=1 b=2 [inner a=3 ]]`)

	assert.Equal(t, "600004", fields["id"])
	assert.Equal(t, "conn_open", fields["event"])
	// Inner group values are parsed after the outer group, so they win.
	assert.Equal(t, "3", fields["a"])
	assert.Equal(t, "2", fields["b"])
	assert.NotContains(t, ints, "a")
}

func TestParseInControlBadTimestampClaimsRecord(t *testing.T) {
	rec, claimed := parseInControl(`<1>1 not-a-timestamp 15c8cb06-465b-48b2-b7f7-b6c206e749dc CONN : id=600004 event=conn_open`)

	require.True(t, claimed)
	assert.Equal(t, StatusError, rec.ParseStatus)
	assert.NotEmpty(t, rec.ParseError)
}

func TestParseInControlDoesNotClaimClassic(t *testing.T) {
	_, claimed := parseInControl(sampleBSDLine)
	assert.False(t, claimed)
}

func TestParseInControlSampleMessage(t *testing.T) {
	rec, claimed := parseInControl(sampleConnLine)

	require.True(t, claimed)
	require.Equal(t, StatusOK, rec.ParseStatus)

	// The unquoted message value stops at the first space.
	assert.Equal(t, "Connection", rec.Fields["message"])
	assert.Equal(t, "10.48.11.55", rec.Fields["connsrcip"])
	assert.Equal(t, "wan", rec.Fields["conndestif"])
	port, ok := rec.Int("conndestport")
	require.True(t, ok)
	assert.Equal(t, int64(443), port)
}
