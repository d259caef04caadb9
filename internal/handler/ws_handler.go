package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sannge/pms-collab-gateway/internal/auth"
	"github.com/sannge/pms-collab-gateway/internal/config"
	"github.com/sannge/pms-collab-gateway/internal/hub"
	"github.com/sannge/pms-collab-gateway/internal/metrics"
	"github.com/sannge/pms-collab-gateway/internal/service"
	"github.com/sannge/pms-collab-gateway/pkg/log"
)

// Close codes surfaced to clients during admission, distinguishable from
// each other and from normal closure so a client can tell "no credential"
// apart from "bad credential".
const (
	CloseCodeAuthRequired = 4001
	CloseCodeInvalidToken = 4002
)

// WSHandler performs admission and hands authenticated connections to the
// hub and router.
type WSHandler struct {
	hub      *hub.Hub
	service  service.CollabService
	verifier auth.Verifier
	metrics  *metrics.Registry
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, svc service.CollabService, v auth.Verifier, m *metrics.Registry, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		verifier: v,
		metrics:  m,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection, verifies the bearer token from
// the `token` query parameter, and either refuses with a close code before
// any message exchange or registers the client and starts its pumps.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.refuse(conn, err)
		return
	}

	client := hub.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()

	// The connected ack is queued before the read loop starts, so it is
	// always the first frame a client observes.
	h.service.HandleConnect(client)

	go client.ReadPump(h.service.HandleMessage, h.service.HandleDisconnect)
}

// refuse closes an unauthenticated connection with the admission close code
// matching the failure kind. No handshake state is retained.
func (h *WSHandler) refuse(conn *websocket.Conn, verr error) {
	code := CloseCodeInvalidToken
	reason := "invalid token"
	label := "invalid_token"
	if errors.Is(verr, auth.ErrMissingToken) {
		code = CloseCodeAuthRequired
		reason = "authentication required"
		label = "missing_token"
	}

	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(label).Inc()
	}
	log.L().Info().Err(verr).Msg("connection refused")

	deadline := time.Now().Add(h.cfg.WriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
