package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

// DeviceHandler handles device discovery and HA grouping endpoints.
type DeviceHandler struct {
	store store.Store
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(store store.Store) *DeviceHandler {
	return &DeviceHandler{store: store}
}

// List handles GET /api/devices - distinct device names observed in events,
// trimmed and sorted.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListEventDevices(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list devices")
		return
	}
	if devices == nil {
		devices = []string{}
	}
	WriteJSONOK(w, devices)
}

// HACandidate is one detected HA pair: both member names seen in events.
type HACandidate struct {
	Base           string `json:"base"`
	Master         string `json:"master"`
	Slave          string `json:"slave"`
	SuggestedLabel string `json:"suggested_label"`
}

// HACandidates handles GET /api/devices/ha-candidates - bases for which both
// the _Master and _Slave member appear in events. Suffix matching is
// case-sensitive.
func (h *DeviceHandler) HACandidates(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListEventDevices(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to list devices")
		return
	}

	deviceSet := make(map[string]bool, len(devices))
	for _, d := range devices {
		deviceSet[d] = true
	}

	bases := make(map[string]bool)
	for _, d := range devices {
		base, ok := netwall.MemberBase(d)
		if !ok {
			continue
		}
		master := base + netwall.HAMasterSuffix
		slave := base + netwall.HASlaveSuffix
		if deviceSet[master] && deviceSet[slave] {
			bases[base] = true
		}
	}

	out := make([]HACandidate, 0, len(bases))
	for base := range bases {
		out = append(out, HACandidate{
			Base:           base,
			Master:         base + netwall.HAMasterSuffix,
			Slave:          base + netwall.HASlaveSuffix,
			SuggestedLabel: netwall.DefaultClusterLabel(base),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })

	WriteJSONOK(w, out)
}

// DeviceGroup is one selectable source-firewall entry: a standalone device
// or an enabled HA cluster.
type DeviceGroup struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Kind    string   `json:"kind"`
	Members []string `json:"members"`
}

// ListGroups handles GET /api/devices/groups - the source-firewall dropdown:
// standalone devices plus enabled HA clusters, members of enabled clusters
// folded away.
func (h *DeviceHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := h.store.ListEventDevices(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list devices")
		return
	}
	clusters, err := h.store.ListEnabledHaClusters(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list HA clusters")
		return
	}
	enabledBases := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		enabledBases[c.Base] = true
	}

	overrides, err := h.store.ListFirewallOverrides(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list overrides")
		return
	}
	overrideLabels := make(map[string]string, len(overrides))
	for _, o := range overrides {
		overrideLabels[o.DeviceKey] = strings.TrimSpace(o.DisplayName)
	}

	result := make([]DeviceGroup, 0, len(devices)+len(clusters))
	for _, d := range devices {
		if base, ok := netwall.MemberBase(d); ok && enabledBases[base] {
			continue
		}
		label := overrideLabels[d]
		if label == "" {
			label = d
		}
		result = append(result, DeviceGroup{
			ID:      d,
			Label:   label,
			Kind:    "single",
			Members: []string{d},
		})
	}
	for _, c := range clusters {
		haID := netwall.HAKeyPrefix + c.Base
		label := overrideLabels[haID]
		if label == "" {
			label = overrideLabels[c.Base]
		}
		if label == "" {
			label = c.Label
		}
		if label == "" {
			label = netwall.DefaultClusterLabel(c.Base)
		}
		members := c.GetMembers()
		if members == nil {
			members = []string{}
		}
		result = append(result, DeviceGroup{
			ID:      haID,
			Label:   label,
			Kind:    "ha",
			Members: members,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].Label), strings.ToLower(result[j].Label)
		if a != b {
			return a < b
		}
		return result[i].ID < result[j].ID
	})

	WriteJSONOK(w, result)
}

// EnableGroupRequest is the body of POST /api/devices/groups/enable.
type EnableGroupRequest struct {
	Base    string `json:"base"`
	Enabled bool   `json:"enabled"`
}

// EnableGroupResponse reports the cluster state after the call.
type EnableGroupResponse struct {
	OK      bool   `json:"ok"`
	Base    string `json:"base"`
	Enabled bool   `json:"enabled"`
}

// EnableGroup handles POST /api/devices/groups/enable - enable or disable an
// HA cluster. The first enable creates the cluster row with its conventional
// members.
func (h *DeviceHandler) EnableGroup(w http.ResponseWriter, r *http.Request) {
	var req EnableGroupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	base := strings.TrimSpace(req.Base)
	if base == "" {
		BadRequest(w, "base is required")
		return
	}

	cluster, err := h.store.EnableHaCluster(r.Context(), base, req.Enabled)
	if err != nil {
		InternalServerError(w, "Failed to update HA cluster")
		return
	}
	if cluster == nil {
		// Disabling a cluster that was never created is a no-op.
		WriteJSONOK(w, EnableGroupResponse{OK: true, Base: base, Enabled: false})
		return
	}

	WriteJSONOK(w, EnableGroupResponse{OK: true, Base: base, Enabled: cluster.IsEnabled})
}

// RenameGroupRequest is the body of POST /api/devices/groups/rename.
type RenameGroupRequest struct {
	Base  string `json:"base"`
	Label string `json:"label"`
}

// RenameGroupResponse reports the cluster label after the call.
type RenameGroupResponse struct {
	OK    bool   `json:"ok"`
	Base  string `json:"base"`
	Label string `json:"label"`
}

// RenameGroup handles POST /api/devices/groups/rename - set the custom label
// for an HA cluster. An empty label keeps the current one.
func (h *DeviceHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req RenameGroupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	base := strings.TrimSpace(req.Base)
	if base == "" {
		BadRequest(w, "base is required")
		return
	}

	cluster, err := h.store.RenameHaCluster(r.Context(), base, strings.TrimSpace(req.Label))
	if err != nil {
		if errors.Is(err, models.ErrClusterNotFound) {
			NotFound(w, "HA cluster not found")
			return
		}
		InternalServerError(w, "Failed to rename HA cluster")
		return
	}

	WriteJSONOK(w, RenameGroupResponse{OK: true, Base: base, Label: cluster.Label})
}
