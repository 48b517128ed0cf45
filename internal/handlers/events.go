package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pointsbot/internal/events"
	"pointsbot/internal/logger"
)

// LiveEventResponse describes one live event
type LiveEventResponse struct {
	ID           string               `json:"id"`
	Kind         string               `json:"kind"`
	State        string               `json:"state"`
	Deadline     time.Time            `json:"deadline"`
	Participants []events.Participant `json:"participants"`
}

// HandleLiveEvents returns a handler for GET /api/events listing events
// currently open or resolving.
func HandleLiveEvents(registry *events.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondWithError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		live := registry.All()
		resp := make([]LiveEventResponse, 0, len(live))
		for _, ev := range live {
			resp = append(resp, LiveEventResponse{
				ID:           ev.ID.String(),
				Kind:         string(ev.Kind),
				State:        string(ev.State()),
				Deadline:     ev.Deadline(),
				Participants: ev.Participants(),
			})
		}

		logger.Debug("", "live_events_success", fmt.Sprintf("count=%d", len(resp)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
