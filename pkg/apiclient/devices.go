package apiclient

// HACandidate is one detected HA pair: both member names seen in events.
type HACandidate struct {
	Base           string `json:"base"`
	Master         string `json:"master"`
	Slave          string `json:"slave"`
	SuggestedLabel string `json:"suggested_label"`
}

// DeviceGroup is one selectable source-firewall entry: a standalone device or
// an enabled HA cluster.
type DeviceGroup struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Kind    string   `json:"kind"`
	Members []string `json:"members"`
}

// EnableGroupResult reports the cluster state after an enable/disable call.
type EnableGroupResult struct {
	OK      bool   `json:"ok"`
	Base    string `json:"base"`
	Enabled bool   `json:"enabled"`
}

// RenameGroupResult reports the cluster label after a rename call.
type RenameGroupResult struct {
	OK    bool   `json:"ok"`
	Base  string `json:"base"`
	Label string `json:"label"`
}

type enableGroupRequest struct {
	Base    string `json:"base"`
	Enabled bool   `json:"enabled"`
}

type renameGroupRequest struct {
	Base  string `json:"base"`
	Label string `json:"label"`
}

// ListDevices returns the distinct device names observed in events.
func (c *Client) ListDevices() ([]string, error) {
	return listResources[string](c, "/api/devices")
}

// HACandidates returns bases for which both HA members appear in events.
func (c *Client) HACandidates() ([]HACandidate, error) {
	return listResources[HACandidate](c, "/api/devices/ha-candidates")
}

// ListDeviceGroups returns the source-firewall dropdown entries: standalone
// devices plus enabled HA clusters.
func (c *Client) ListDeviceGroups() ([]DeviceGroup, error) {
	return listResources[DeviceGroup](c, "/api/devices/groups")
}

// EnableDeviceGroup enables or disables an HA cluster by its base name.
func (c *Client) EnableDeviceGroup(base string, enabled bool) (*EnableGroupResult, error) {
	return postResource[EnableGroupResult](c, "/api/devices/groups/enable", enableGroupRequest{Base: base, Enabled: enabled})
}

// RenameDeviceGroup sets the custom label for an HA cluster.
func (c *Client) RenameDeviceGroup(base, label string) (*RenameGroupResult, error) {
	return postResource[RenameGroupResult](c, "/api/devices/groups/rename", renameGroupRequest{Base: base, Label: label})
}
