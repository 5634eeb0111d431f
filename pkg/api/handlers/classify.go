package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/classify"
)

// ClassifyHandler handles zone/interface classification endpoints: observed
// name discovery and the rule CRUD behind direction labelling.
type ClassifyHandler struct {
	store      store.Store
	classifier *classify.Classifier
}

// NewClassifyHandler creates a new classify handler. classifier may be nil;
// rule changes then skip cache invalidation.
func NewClassifyHandler(store store.Store, classifier *classify.Classifier) *ClassifyHandler {
	return &ClassifyHandler{store: store, classifier: classifier}
}

func (h *ClassifyHandler) invalidate() {
	if h.classifier != nil {
		h.classifier.Invalidate()
	}
}

// Names handles GET /api/classify/names?device=...&kind=... - distinct zone
// or interface names observed in events for a device or HA cluster key.
func (h *ClassifyHandler) Names(w http.ResponseWriter, r *http.Request) {
	device := strings.TrimSpace(r.URL.Query().Get("device"))
	if device == "" {
		BadRequest(w, "device is required")
		return
	}
	kind := models.ClassificationKind(r.URL.Query().Get("kind"))
	if !kind.IsValid() {
		BadRequest(w, "kind must be zone or interface")
		return
	}

	members, err := h.store.ResolveDeviceMembers(r.Context(), device)
	if err != nil {
		InternalServerError(w, "Failed to resolve device")
		return
	}
	if len(members) == 0 {
		WriteJSONOK(w, []string{})
		return
	}

	names, err := h.store.ListEventNames(r.Context(), members, kind)
	if err != nil {
		InternalServerError(w, "Failed to list names")
		return
	}
	if names == nil {
		names = []string{}
	}

	WriteJSONOK(w, names)
}

// ListRules handles GET /api/classify/rules - classification rules, for one
// device when ?device= is given, otherwise all.
func (h *ClassifyHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	device := strings.TrimSpace(r.URL.Query().Get("device"))

	rules, err := h.store.ListClassifications(r.Context(), device)
	if err != nil {
		InternalServerError(w, "Failed to list rules")
		return
	}
	if rules == nil {
		rules = []*models.Classification{}
	}

	WriteJSONOK(w, rules)
}

// SetRuleRequest is the body of PUT /api/classify/rules.
type SetRuleRequest struct {
	Device   string `json:"device"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Side     string `json:"side"`
	Priority int    `json:"priority"`
}

// SetRule handles PUT /api/classify/rules - create or replace the rule for
// (device, kind, name).
func (h *ClassifyHandler) SetRule(w http.ResponseWriter, r *http.Request) {
	var req SetRuleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	device := strings.TrimSpace(req.Device)
	if device == "" {
		BadRequest(w, "device is required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		BadRequest(w, "name is required")
		return
	}
	kind := models.ClassificationKind(req.Kind)
	if !kind.IsValid() {
		BadRequest(w, "kind must be zone or interface")
		return
	}
	side := models.ClassificationSide(req.Side)
	if !side.IsValid() {
		BadRequest(w, "side must be inside, outside, remote, or unknown")
		return
	}

	rule, err := h.store.UpsertClassification(r.Context(), &models.Classification{
		Device:   device,
		Kind:     string(kind),
		Name:     name,
		Side:     string(side),
		Priority: req.Priority,
	})
	if err != nil {
		InternalServerError(w, "Failed to save rule")
		return
	}

	h.invalidate()
	WriteJSONOK(w, rule)
}

// DeleteRule handles DELETE /api/classify/rules?device=...&kind=...&name=...
func (h *ClassifyHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	device := strings.TrimSpace(r.URL.Query().Get("device"))
	if device == "" {
		BadRequest(w, "device is required")
		return
	}
	kind := models.ClassificationKind(r.URL.Query().Get("kind"))
	if !kind.IsValid() {
		BadRequest(w, "kind must be zone or interface")
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		BadRequest(w, "name is required")
		return
	}

	err := h.store.DeleteClassification(r.Context(), device, string(kind), name)
	if err != nil {
		if errors.Is(err, models.ErrClassificationNotFound) {
			NotFound(w, "Rule not found")
			return
		}
		InternalServerError(w, "Failed to delete rule")
		return
	}

	h.invalidate()
	WriteNoContent(w)
}
