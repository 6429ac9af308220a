package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	ws "github.com/isdelr/ender-accounts-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades connections to the user change feed.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browser connections are
// accepted only from allowedOrigins; requests without an Origin header pass.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Serve handles user.events. An optional userId query parameter narrows the
// feed to a single user's changes.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	var userID uint
	if raw := r.URL.Query().Get("userId"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			http.Error(w, "userId must be an integer", http.StatusBadRequest)
			return
		}
		userID = uint(v)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
