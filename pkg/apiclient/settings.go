package apiclient

// RetentionPolicy is the log retention setting.
type RetentionPolicy struct {
	Enabled  bool `json:"enabled"`
	KeepDays int  `json:"keep_days"`
}

// LocalNetworks is the local networks setting used for remote-host matching.
type LocalNetworks struct {
	Enabled bool     `json:"enabled"`
	CIDRs   []string `json:"cidrs"`
}

// SetRetentionResult is the body of PUT /api/settings/log-retention.
type SetRetentionResult struct {
	OK           bool             `json:"ok"`
	LogRetention *RetentionPolicy `json:"log_retention"`
}

// SetLocalNetworksResult is the body of PUT /api/settings/local-networks.
type SetLocalNetworksResult struct {
	OK            bool           `json:"ok"`
	LocalNetworks *LocalNetworks `json:"local_networks"`
}

// AllSettings returns every runtime setting merged over its default.
func (c *Client) AllSettings() (map[string]any, error) {
	var result map[string]any
	if err := c.get("/api/settings", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRetention returns the log retention policy.
func (c *Client) GetRetention() (*RetentionPolicy, error) {
	return getResource[RetentionPolicy](c, "/api/settings/log-retention")
}

// SetRetention updates the log retention policy.
func (c *Client) SetRetention(enabled bool, keepDays int) (*SetRetentionResult, error) {
	req := RetentionPolicy{Enabled: enabled, KeepDays: keepDays}
	return putResource[SetRetentionResult](c, "/api/settings/log-retention", req)
}

// GetLocalNetworks returns the local networks setting.
func (c *Client) GetLocalNetworks() (*LocalNetworks, error) {
	return getResource[LocalNetworks](c, "/api/settings/local-networks")
}

// SetLocalNetworks replaces the local networks setting. The server normalizes
// each CIDR to its masked network form.
func (c *Client) SetLocalNetworks(enabled bool, cidrs []string) (*SetLocalNetworksResult, error) {
	req := LocalNetworks{Enabled: enabled, CIDRs: cidrs}
	return putResource[SetLocalNetworksResult](c, "/api/settings/local-networks", req)
}
