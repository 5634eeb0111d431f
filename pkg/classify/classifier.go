// Package classify derives traffic direction for connection events.
//
// Operators label zone and interface names per device as inside, outside or
// remote; the classifier resolves each event's receive and destination ends
// against those rules and stamps recv_side, dest_side and direction_bucket.
// Names that match no rule are counted so the UI can surface what still
// needs labelling.
//
// The full rule table is cached in memory and lookups are served from the
// snapshot. Invalidate drops the snapshot after rules change; the next lookup
// reloads it from the source.
package classify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// Precedence controls which rule kind is consulted first.
type Precedence string

const (
	// ZoneFirst consults zone rules before interface rules.
	ZoneFirst Precedence = "zone_first"
	// InterfaceFirst consults interface rules before zone rules.
	InterfaceFirst Precedence = "interface_first"
)

// IsValid checks if the precedence is a known value.
func (p Precedence) IsValid() bool {
	return p == ZoneFirst || p == InterfaceFirst
}

// Miss identifies a lookup that matched no rule with a known side.
type Miss struct {
	Device string
	Kind   models.ClassificationKind
	Name   string
}

// MissCounter accumulates classification misses across a flush window. The
// caller owns the map and folds it into the batch write.
type MissCounter map[Miss]int64

// Add records one miss. Empty names are not worth surfacing and are skipped.
func (m MissCounter) Add(device string, kind models.ClassificationKind, name string) {
	if m == nil || name == "" {
		return
	}
	m[Miss{Device: device, Kind: kind, Name: name}]++
}

// RuleSource loads classification rules. An empty device selects every
// device's rules.
type RuleSource interface {
	ListClassifications(ctx context.Context, device string) ([]*models.Classification, error)
}

type ruleKey struct {
	device string
	kind   string
	name   string
}

// Classifier resolves zone/interface observations to sides using a cached
// rule snapshot. Safe for concurrent use by the live listener and the import
// worker.
type Classifier struct {
	rules      RuleSource
	precedence Precedence

	mu       sync.RWMutex
	snapshot map[ruleKey]string
}

// New creates a classifier reading rules from source. An invalid precedence
// falls back to zone-first.
func New(source RuleSource, precedence Precedence) *Classifier {
	if !precedence.IsValid() {
		precedence = ZoneFirst
	}
	return &Classifier{
		rules:      source,
		precedence: precedence,
	}
}

// Invalidate drops the cached rule snapshot. Call after rules change so the
// next lookup reloads from the source.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

func (c *Classifier) load(ctx context.Context) (map[ruleKey]string, error) {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot != nil {
		return c.snapshot, nil
	}
	rules, err := c.rules.ListClassifications(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load classification rules: %w", err)
	}
	snap = make(map[ruleKey]string, len(rules))
	for _, rule := range rules {
		snap[ruleKey{device: rule.Device, kind: rule.Kind, name: rule.Name}] = rule.Side
	}
	c.snapshot = snap
	return snap, nil
}

// SideFor resolves one endpoint observation to a side. Rules are consulted in
// precedence order and the first rule with a known side wins; a rule whose
// side is still unknown does not end the search. When nothing matches, both
// observed names count as misses and the side is unknown.
func (c *Classifier) SideFor(ctx context.Context, device, zone, iface string, misses MissCounter) (string, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return string(models.SideUnknown), err
	}

	lookups := []struct {
		kind models.ClassificationKind
		name string
	}{
		{models.KindZone, strings.TrimSpace(zone)},
		{models.KindInterface, strings.TrimSpace(iface)},
	}
	if c.precedence == InterfaceFirst {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	for _, l := range lookups {
		if l.name == "" {
			continue
		}
		side := snap[ruleKey{device: device, kind: string(l.kind), name: l.name}]
		if side != "" && side != string(models.SideUnknown) {
			return side, nil
		}
	}

	for _, l := range lookups {
		misses.Add(device, l.kind, l.name)
	}
	return string(models.SideUnknown), nil
}

// Apply stamps recv_side, dest_side and direction_bucket on the event. The
// bucket is "<recv>_to_<dest>" when both sides resolved, "unknown" otherwise.
func (c *Classifier) Apply(ctx context.Context, ev *models.Event, misses MissCounter) error {
	recvSide, err := c.SideFor(ctx, ev.Device, ev.RecvZone, ev.RecvIf, misses)
	if err != nil {
		return err
	}
	destSide, err := c.SideFor(ctx, ev.Device, ev.DestZone, ev.DestIf, misses)
	if err != nil {
		return err
	}

	ev.RecvSide = recvSide
	ev.DestSide = destSide
	if recvSide != string(models.SideUnknown) && destSide != string(models.SideUnknown) {
		ev.DirectionBucket = recvSide + "_to_" + destSide
	} else {
		ev.DirectionBucket = "unknown"
	}
	return nil
}
