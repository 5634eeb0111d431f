package netwall

import (
	"strings"

	"github.com/kvasirlab/connwatch/internal/logger"
)

// maxPendingBytes bounds a single reconstructed record. Continuations past
// this size are dropped so a stream that never produces a record start cannot
// grow the buffer without bound.
const maxPendingBytes = 1 << 20

// Reconstructor joins wrapped syslog lines back into full records.
//
// NetWall firewalls emit one logical record across several lines when the
// message wraps; only lines matching one of the known record-start patterns
// begin a new record, everything else continues the pending one. One
// Reconstructor must be used per source (UDP peer or uploaded file) since the
// pending buffer is stateful.
type Reconstructor struct {
	pending    string
	hasPending bool
	dropped    int64
}

// NewReconstructor returns an empty Reconstructor.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// IsRecordStart reports whether line begins a new syslog record in any of the
// four recognized dialects.
func IsRecordStart(line string) bool {
	return syslogPrefixRE.MatchString(line) ||
		syslogPrefixAltRE.MatchString(line) ||
		syslogPrefixRFC5424RE.MatchString(line) ||
		inControlRE.MatchString(line)
}

// Feed consumes one line and returns any records completed by it. A record
// start emits the previously pending record; a continuation is appended to
// the pending record with a single space. Orphaned continuations (no pending
// record) are dropped.
func (r *Reconstructor) Feed(line string) []string {
	if IsRecordStart(line) {
		var out []string
		if r.hasPending {
			out = append(out, r.pending)
		}
		r.pending = strings.TrimSpace(line)
		r.hasPending = true
		return out
	}
	if !r.hasPending {
		logger.Debug("ignoring continuation without record start", "line", strings.TrimRight(line, "\r\n"))
		return nil
	}
	if len(r.pending) >= maxPendingBytes {
		r.dropped++
		return nil
	}
	r.pending += " " + strings.TrimSpace(line)
	return nil
}

// Flush emits the pending record, if any.
func (r *Reconstructor) Flush() []string {
	if !r.hasPending {
		return nil
	}
	out := []string{r.pending}
	r.pending = ""
	r.hasPending = false
	return out
}

// Dropped returns the number of continuation lines discarded because the
// pending record hit the size bound.
func (r *Reconstructor) Dropped() int64 {
	return r.dropped
}
