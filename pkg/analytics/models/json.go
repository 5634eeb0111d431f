package models

import "encoding/json"

// parseCountMap deserializes a JSON-encoded string→count map stored as text.
// Returns nil for empty, "null", or invalid JSON.
func parseCountMap(raw string) map[string]int64 {
	if raw == "" || raw == "null" {
		return nil
	}
	var m map[string]int64
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// marshalCountMap serializes a string→count map into a JSON string for storage.
// Returns an empty string for nil or empty maps.
func marshalCountMap(m map[string]int64) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// parseAnyMap deserializes a JSON object stored as text into a generic map.
func parseAnyMap(raw string) map[string]any {
	if raw == "" || raw == "null" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// marshalAnyMap serializes a generic map into a JSON string for storage.
func marshalAnyMap(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// parseStringSlice deserializes a JSON array stored as text.
func parseStringSlice(raw string) []string {
	if raw == "" || raw == "null" {
		return nil
	}
	var s []string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil
	}
	return s
}

// marshalStringSlice serializes a string slice into a JSON string for storage.
func marshalStringSlice(s []string) string {
	if len(s) == 0 {
		return ""
	}
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}
