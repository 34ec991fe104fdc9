package realtime

import (
	"encoding/json"
	"time"

	"ms-bidding/internal/auth"
	"ms-bidding/internal/models"

	"github.com/gorilla/websocket"
)

// Frame is one outbound websocket message.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	Room string      `json:"room,omitempty"`
}

type inbound struct {
	Type    string `json:"type"`
	Payload struct {
		GigID  string `json:"gigId"`
		UserID string `json:"userId"`
	} `json:"payload"`
}

// Client is one websocket connection. The read pump routes join/leave/ping
// messages to the hub; the write pump drains the send queue. The rooms map
// is touched only by the hub goroutine.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Frame
	userID string
	role   string
	rooms  map[string]bool

	pingInterval time.Duration
	pongTimeout  time.Duration
}

// enqueue offers a frame without blocking the hub. A client whose queue is
// full is too slow to keep up; it drops the frame and reconciles by
// re-fetching, which is the protocol's recovery path anyway.
func (c *Client) enqueue(frame Frame) {
	select {
	case c.send <- frame:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inbound) {
	switch msg.Type {
	case "JOIN_GIG":
		if msg.Payload.GigID != "" {
			c.hub.join <- joinRequest{client: c, room: models.GigRoom(msg.Payload.GigID)}
		}

	case "JOIN_GIG_AS_ARTIST":
		// The artist-side room carries the same standing events but is only
		// for principals who could actually bid.
		if msg.Payload.GigID != "" && c.role == auth.RoleArtist {
			c.hub.join <- joinRequest{client: c, room: models.GigArtistRoom(msg.Payload.GigID)}
		}

	case "JOIN_USER":
		// A connection may only subscribe to its own user room.
		if msg.Payload.UserID == c.userID && c.userID != "" {
			c.hub.join <- joinRequest{client: c, room: models.UserRoom(c.userID)}
		}

	case "LEAVE_GIG":
		if msg.Payload.GigID != "" {
			c.hub.leave <- joinRequest{client: c, room: models.GigRoom(msg.Payload.GigID)}
			c.hub.leave <- joinRequest{client: c, room: models.GigArtistRoom(msg.Payload.GigID)}
		}

	case "PING":
		c.enqueue(Frame{Type: "PONG"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
