package apiclient

import "net/url"

// Rule is one classification rule mapping a zone or interface name to a
// traffic side for a device.
type Rule struct {
	ID       int64  `json:"id"`
	Device   string `json:"device"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Side     string `json:"side"`
	Priority int    `json:"priority"`
}

// setRuleRequest is the body of PUT /api/classify/rules.
type setRuleRequest struct {
	Device   string `json:"device"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Side     string `json:"side"`
	Priority int    `json:"priority"`
}

// ClassifyNames returns the distinct zone or interface names observed in
// events for a device or HA cluster key. kind is "zone" or "interface".
func (c *Client) ClassifyNames(device, kind string) ([]string, error) {
	q := url.Values{}
	q.Set("device", device)
	q.Set("kind", kind)
	return listResources[string](c, "/api/classify/names?"+q.Encode())
}

// ListRules returns classification rules, for one device when device is
// non-empty, otherwise all.
func (c *Client) ListRules(device string) ([]Rule, error) {
	path := "/api/classify/rules"
	if device != "" {
		q := url.Values{}
		q.Set("device", device)
		path += "?" + q.Encode()
	}
	return listResources[Rule](c, path)
}

// SetRule creates or replaces the rule for (device, kind, name).
func (c *Client) SetRule(device, kind, name, side string, priority int) (*Rule, error) {
	req := setRuleRequest{Device: device, Kind: kind, Name: name, Side: side, Priority: priority}
	return putResource[Rule](c, "/api/classify/rules", req)
}

// DeleteRule removes the rule for (device, kind, name).
func (c *Client) DeleteRule(device, kind, name string) error {
	q := url.Values{}
	q.Set("device", device)
	q.Set("kind", kind)
	q.Set("name", name)
	return c.delete("/api/classify/rules?"+q.Encode(), nil)
}
