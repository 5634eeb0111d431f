package netwall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, r *Reconstructor, lines ...string) []string {
	t.Helper()
	var out []string
	for _, line := range lines {
		out = append(out, r.Feed(line)...)
	}
	return out
}

func TestReconstructorJoinsContinuations(t *testing.T) {
	r := NewReconstructor()

	out := feedAll(t, r,
		`<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open`,
		`connsrcip=10.0.0.5 connsrcport=51000`,
		`conndestip=93.184.216.34 conndestport=443`,
	)
	// Nothing emits until the next record start or an explicit flush.
	assert.Empty(t, out)

	out = r.Flush()
	require.Len(t, out, 1)
	assert.Equal(t,
		`<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open connsrcip=10.0.0.5 connsrcport=51000 conndestip=93.184.216.34 conndestport=443`,
		out[0])
}

func TestReconstructorEmitsOnNextStart(t *testing.T) {
	r := NewReconstructor()

	out := feedAll(t, r,
		`<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open`,
		`connsrcip=10.0.0.5`,
		`<13>Feb 10 17:37:14 gw EFW: CONN: id=00600002 event=conn_close`,
	)
	require.Len(t, out, 1)
	assert.Equal(t, `<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open connsrcip=10.0.0.5`, out[0])

	out = r.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, `<13>Feb 10 17:37:14 gw EFW: CONN: id=00600002 event=conn_close`, out[0])
}

func TestReconstructorIgnoresOrphans(t *testing.T) {
	r := NewReconstructor()

	out := feedAll(t, r,
		`connsrcip=10.0.0.5`,
		`  trailing junk with no header`,
	)
	assert.Empty(t, out)
	assert.Empty(t, r.Flush())
	// Orphans are ignored, not counted against the size bound.
	assert.Zero(t, r.Dropped())
}

func TestReconstructorTrimsCRLF(t *testing.T) {
	r := NewReconstructor()

	feedAll(t, r, "<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open\r\n")
	out := r.Flush()
	require.Len(t, out, 1)
	assert.False(t, strings.ContainsAny(out[0], "\r\n"))
}

func TestReconstructorRecognizesAllDialects(t *testing.T) {
	starts := []string{
		`<13>Feb 10 17:37:13 gw EFW: CONN: id=1`,
		`<13>[2026-02-10 17:37:13] EFW: CONN: id=1`,
		`<134>1 2026-02-10T18:57:45.970+01:00 fw-lab EFW - - - CONN: id=1`,
		sampleConnLine,
	}
	for _, s := range starts {
		if !IsRecordStart(s) {
			t.Errorf("IsRecordStart(%.40q...) = false", s)
		}
	}
	if IsRecordStart(`connsrcip=10.0.0.5 conndestport=443`) {
		t.Error("continuation line classified as record start")
	}
}

func TestReconstructorBoundsPendingRecord(t *testing.T) {
	r := NewReconstructor()

	r.Feed(`<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open`)
	chunk := strings.Repeat("x", 64*1024)
	for i := 0; i < 20; i++ {
		r.Feed(chunk)
	}

	out := r.Flush()
	require.Len(t, out, 1)
	assert.LessOrEqual(t, len(out[0]), maxPendingBytes+len(chunk)+1)
	assert.Positive(t, r.Dropped())
}

func TestReconstructorFlushResets(t *testing.T) {
	r := NewReconstructor()
	r.Feed(`<13>Feb 10 17:37:13 gw EFW: CONN: id=00600001 event=conn_open`)
	require.Len(t, r.Flush(), 1)
	assert.Empty(t, r.Flush())
}
