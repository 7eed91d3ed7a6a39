// Package health serves the liveness probe of the admin listener.
package health

import (
	"encoding/json"
	"net/http"

	applog "github.com/janisto/canvas-api/internal/platform/logging"
)

// Response is the payload of the health endpoint.
type Response struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Handler reports the process as healthy along with the running build version.
func Handler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(Response{Status: "healthy", Version: version}); err != nil {
			applog.LogError(r.Context(), "failed to write health response", err)
		}
	}
}
