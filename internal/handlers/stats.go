package handlers

import "net/http"

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalRooms      int64 `json:"total_rooms"`
	TotalMessages   int64 `json:"total_messages"`
	LiveConnections int   `json:"live_connections"`
}

// Stats returns chat platform statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalRooms, err := h.store.CountRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	live := 0
	if h.registry != nil {
		live = h.registry.Connections()
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalRooms:      totalRooms,
		TotalMessages:   totalMessages,
		LiveConnections: live,
	})
}
