package apiclient

import (
	"fmt"
	"net/url"
)

// Generic helpers wrapping the underlying Client.get/post/put/delete methods
// with type-safe decoding. They are unexported (package-internal).

// getResource performs a GET request to the given path and decodes the
// response body into a value of type T.
//
// Example:
//
//	job, err := getResource[JobStatus](c, "/api/ingest/upload/abc/status")
func getResource[T any](c *Client, path string) (*T, error) {
	var result T
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// listResources performs a GET request to the given path and decodes the
// response body into a slice of type T.
//
// Example:
//
//	rows, err := listResources[Firewall](c, "/api/firewalls")
func listResources[T any](c *Client, path string) ([]T, error) {
	var results []T
	if err := c.get(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// postResource performs a POST request to the given path with the provided
// body and decodes the response into a value of type T.
func postResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// putResource performs a PUT request to the given path with the provided body
// and decodes the response into a value of type T.
func putResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.put(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// resourcePath builds a resource path by formatting a path template with the
// given arguments, URL-escaping each one. Device keys can carry "ha:" prefixes
// and user-chosen names, so nothing is interpolated raw.
//
// Example:
//
//	path := resourcePath("/api/firewalls/%s/jobs", "ha:FW-Berlin")
func resourcePath(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			escaped[i] = url.PathEscape(s)
		} else {
			escaped[i] = arg
		}
	}
	return fmt.Sprintf(format, escaped...)
}
