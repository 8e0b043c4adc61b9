package handlers

import (
	"encoding/json"
	"net/http"

	"camouflage/internal/logger"
	"camouflage/internal/services"
)

// StatusSource reports the pipeline state.
type StatusSource interface {
	Status() services.Status
}

// StatusResponse is served by /api/status.
type StatusResponse struct {
	Pipeline          services.Status `json:"pipeline"`
	Viewers           int             `json:"viewers"`
	BufferedSnapshots int             `json:"bufferedSnapshots"`
}

// StatusHandler serves the pipeline state as JSON. viewers and buffered may be nil.
func StatusHandler(pipeline StatusSource, viewers func() int, buffered func() int, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{Pipeline: pipeline.Status()}
		if viewers != nil {
			resp.Viewers = viewers()
		}
		if buffered != nil {
			resp.BufferedSnapshots = buffered()
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
