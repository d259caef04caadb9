package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sannge/pms-collab-gateway/internal/hub"
)

// HTTPHandler exposes the health surface read by external monitoring.
type HTTPHandler struct {
	hub *hub.Hub
}

func NewHTTPHandler(h *hub.Hub) *HTTPHandler {
	return &HTTPHandler{hub: h}
}

// HealthResponse reports live gateway counts at the moment of the request.
type HealthResponse struct {
	Status    string          `json:"status"`
	WebSocket WebSocketCounts `json:"websocket"`
}

type WebSocketCounts struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// HealthCheck handles GET /health. Counts are snapshot reads from the
// registries, so a disconnect that has completed is already reflected.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status: "ok",
		WebSocket: WebSocketCounts{
			Connections: h.hub.ClientCount(),
			Rooms:       h.hub.RoomCount(),
		},
	})
}
