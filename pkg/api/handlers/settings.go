package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
)

// SettingsHandler handles the runtime settings endpoints.
type SettingsHandler struct {
	store store.Store
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store store.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// List handles GET /api/settings - every setting merged over its default.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.AllSettings(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to load settings")
		return
	}
	WriteJSONOK(w, settings)
}

// GetLogRetention handles GET /api/settings/log-retention.
func (h *SettingsHandler) GetLogRetention(w http.ResponseWriter, r *http.Request) {
	policy, err := h.store.GetRetentionPolicy(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to load retention policy")
		return
	}
	WriteJSONOK(w, policy)
}

// SetLogRetentionResponse is the body of PUT /api/settings/log-retention.
type SetLogRetentionResponse struct {
	OK           bool                    `json:"ok"`
	LogRetention *models.RetentionPolicy `json:"log_retention"`
}

// SetLogRetention handles PUT /api/settings/log-retention.
func (h *SettingsHandler) SetLogRetention(w http.ResponseWriter, r *http.Request) {
	var policy models.RetentionPolicy
	if !decodeJSONBody(w, r, &policy) {
		return
	}
	if policy.KeepDays < 1 || policy.KeepDays > 365 {
		BadRequest(w, "keep_days must be between 1 and 365")
		return
	}

	if err := h.store.SetRetentionPolicy(r.Context(), &policy); err != nil {
		InternalServerError(w, "Failed to save retention policy")
		return
	}

	WriteJSONOK(w, SetLogRetentionResponse{OK: true, LogRetention: &policy})
}

// GetLocalNetworks handles GET /api/settings/local-networks.
func (h *SettingsHandler) GetLocalNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.store.GetLocalNetworks(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to load local networks")
		return
	}
	WriteJSONOK(w, networks)
}

// SetLocalNetworksResponse is the body of PUT /api/settings/local-networks.
type SetLocalNetworksResponse struct {
	OK            bool                  `json:"ok"`
	LocalNetworks *models.LocalNetworks `json:"local_networks"`
}

// SetLocalNetworks handles PUT /api/settings/local-networks.
//
// Each CIDR is normalized to its masked network form; bare addresses become
// host routes. Duplicates are dropped, first occurrence wins.
func (h *SettingsHandler) SetLocalNetworks(w http.ResponseWriter, r *http.Request) {
	var req models.LocalNetworks
	if !decodeJSONBody(w, r, &req) {
		return
	}

	normalized := make([]string, 0, len(req.CIDRs))
	seen := make(map[string]bool, len(req.CIDRs))
	for _, raw := range req.CIDRs {
		cidr, err := normalizeCIDR(raw)
		if err != nil {
			BadRequest(w, fmt.Sprintf("Invalid CIDR '%s'", raw))
			return
		}
		if seen[cidr] {
			continue
		}
		seen[cidr] = true
		normalized = append(normalized, cidr)
	}

	value := &models.LocalNetworks{Enabled: req.Enabled, CIDRs: normalized}
	if err := h.store.SetLocalNetworks(r.Context(), value); err != nil {
		InternalServerError(w, "Failed to save local networks")
		return
	}

	WriteJSONOK(w, SetLocalNetworksResponse{OK: true, LocalNetworks: value})
}

// normalizeCIDR parses a CIDR or bare address and returns the masked
// network form ("10.1.2.3/24" -> "10.1.2.0/24", "10.1.2.3" -> "10.1.2.3/32").
func normalizeCIDR(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return "", fmt.Errorf("invalid address %q", raw)
		}
		if ip.To4() != nil {
			return ip.String() + "/32", nil
		}
		return ip.String() + "/128", nil
	}
	_, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return "", err
	}
	return ipnet.String(), nil
}
