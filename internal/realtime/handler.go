package realtime

import (
	"net/http"
	"time"

	"ms-bidding/internal/auth"
	"ms-bidding/internal/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway terminates origins; the core accepts whatever it forwards.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades /ws/bids connections and hands them to the hub.
type Handler struct {
	Hub          *Hub
	Logger       *logger.Logger
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, role, err := auth.ExtractPrincipalFromJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("WS", "upgrade failed: "+err.Error())
		return
	}

	client := &Client{
		hub:          h.Hub,
		conn:         conn,
		send:         make(chan Frame, 64),
		userID:       userID,
		role:         role,
		rooms:        make(map[string]bool),
		pingInterval: h.PingInterval,
		pongTimeout:  h.PongTimeout,
	}

	h.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
