package realtime

import (
	"context"
	"fmt"

	"ms-bidding/internal/logger"
	"ms-bidding/internal/models"
)

type joinRequest struct {
	client *Client
	room   string
}

// Hub owns all room membership. Every join, leave, disconnect and broadcast
// funnels through one goroutine via channels, so there is no shared mutable
// registry to race on, and events fan out in exactly the order they were
// published.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	leave      chan joinRequest
	broadcast  chan models.Event

	rooms  map[string]map[*Client]bool
	logger *logger.Logger
	done   chan struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		leave:      make(chan joinRequest),
		broadcast:  make(chan models.Event, 256),
		rooms:      make(map[string]map[*Client]bool),
		logger:     log,
		done:       make(chan struct{}),
	}
}

// Publish hands an event to the hub for fan-out. Implements the Publisher
// side consumed by the bid and auction services. Once the run loop has
// stopped, events are dropped instead of blocking the publishing request;
// clients reconcile by re-fetching, and during shutdown there is nobody
// left to reconcile anyway.
func (h *Hub) Publish(event models.Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

// Run drives the hub until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.logger.LogWS("CONNECT", "user "+client.userID)

		case client := <-h.unregister:
			for room := range client.rooms {
				h.removeFromRoom(client, room)
			}
			close(client.send)
			h.logger.LogWS("DISCONNECT", "user "+client.userID)

		case req := <-h.join:
			if h.rooms[req.room] == nil {
				h.rooms[req.room] = make(map[*Client]bool)
			}
			h.rooms[req.room][req.client] = true
			req.client.rooms[req.room] = true
			req.client.enqueue(Frame{Type: "JOINED", Room: req.room})

		case req := <-h.leave:
			h.removeFromRoom(req.client, req.room)
			delete(req.client.rooms, req.room)

		case event := <-h.broadcast:
			members := h.rooms[event.Room]
			if len(members) == 0 {
				continue
			}
			frame := Frame{Type: event.Type, Data: event.Data, Room: event.Room}
			for client := range members {
				client.enqueue(frame)
			}

		case <-ctx.Done():
			return
		}
	}
}

// removeFromRoom drops a member and releases the room once it's empty, so no
// broadcast work is wasted on rooms nobody is in.
func (h *Hub) removeFromRoom(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
		h.logger.Debug("WS", fmt.Sprintf("room %s released", room))
	}
}
