package handler

import (
	"net/http"

	"chatrelay/internal/pkg/resp"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status          string   `json:"status"`
	ActiveUserCount int      `json:"activeUserCount"`
	Names           []string `json:"names"`
}

// HandleHealth reports liveness plus the display names of everyone online.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := deps.Hub.Registry().Snapshot()

		resp.RespondJSON(w, http.StatusOK, HealthStatus{
			Status:          "OK",
			ActiveUserCount: len(snap),
			Names:           snap.Names(),
		})
	}
}
