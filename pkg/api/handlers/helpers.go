package handlers

import (
	"encoding/json"
	"math"
	"net/http"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// round4 rounds a progress ratio to four decimal places for wire stability.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
