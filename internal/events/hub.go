package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is one workflow notification pushed to connected dashboards.
type Event struct {
	Type   string    `json:"type"` // loan_created, stage_advanced, stage_updated, loan_deleted, documents_uploaded
	LoanID string    `json:"loanId"`
	Stage  int       `json:"stage,omitempty"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// Hub maintains the set of subscribed dashboard clients and fans events
// out to all of them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("🖥️ Dashboard connected (%d active)", h.count())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("📴 Dashboard disconnected (%d active)", h.count())
		}
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every connected client. Slow clients are
// skipped rather than blocking the caller.
func (h *Hub) Broadcast(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Buffer full or client dead
		}
	}
}
