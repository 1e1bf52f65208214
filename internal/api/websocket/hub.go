// Package websocket streams compilation progress to browser clients.
package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/calloway/gridfax/internal/events"
)

// Hub keeps the set of connected clients and fans broadcast messages out
// to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// Hub doubles as an event sink so every Reporter event of the active run
// reaches connected clients.
var _ events.Sink = (*Hub)(nil)

// NewHub creates a hub. Call Run in its own goroutine before serving
// connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set. It never returns.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[ws] Client connected (%d total)", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it rather than stall the run.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send marshals one progress envelope and broadcasts it. It never blocks
// the caller; messages are dropped when the hub is saturated.
func (h *Hub) Send(e events.Envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[ws] ⚠ Failed to marshal %s event: %v", e.Type, err)
		return
	}
	h.Broadcast(data)
}

// Broadcast sends raw bytes to every connected client.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		log.Printf("[ws] ⚠ Broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
