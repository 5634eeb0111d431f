package apiclient

// Health is the body of GET /health.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health checks server and database health.
func (c *Client) Health() (*Health, error) {
	return getResource[Health](c, "/health")
}
