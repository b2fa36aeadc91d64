package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/actionhost/agentgate/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its wire status and body. A *apierr.Error carries
// its own Kind; anything else is treated as an opaque INTERNAL failure so a
// bug never leaks implementation details to the caller.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.Kind.HTTPStatus(), map[string]interface{}{
			"error": map[string]interface{}{
				"kind":    apiErr.Kind,
				"message": apiErr.Message,
			},
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    apierr.Internal,
			"message": "internal error",
		},
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
