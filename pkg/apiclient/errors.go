package apiclient

import (
	"fmt"
	"net/http"
)

// APIError represents an error response from the API. The server answers
// failures with RFC 7807 problem details; Title and Detail carry the problem
// fields.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if this is a conflict error.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsTooLarge returns true if the server rejected an upload for its size.
func (e *APIError) IsTooLarge() bool {
	return e.StatusCode == http.StatusRequestEntityTooLarge
}
