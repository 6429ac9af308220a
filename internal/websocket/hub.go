package websocket

import (
	"context"
	"encoding/json"

	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/rs/zerolog/log"
)

type envelope struct {
	userID uint
	data   []byte
}

// Hub maintains the set of active clients and broadcasts user change events to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound events for broadcast.
	broadcast chan envelope

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run returns.
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Info().Str("client_id", client.ID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Info().Str("client_id", client.ID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.UserID != 0 && client.UserID != msg.userID {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					// Drop clients that cannot keep up.
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every interested client. It never blocks;
// events are dropped when the queue is full or the hub has stopped.
func (h *Hub) Publish(event models.Event) {
	data, err := json.Marshal(Message{Action: event.Type, Payload: event})
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to encode event")
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- envelope{userID: event.UserID, data: data}:
	default:
		log.Warn().Str("event_id", event.ID).Msg("Change feed queue full, dropping event")
	}
}
