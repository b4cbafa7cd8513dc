package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is the message pushed to every connected observer.
// Type 1 is a new paid order, type 2 is a customer reminder.
type Event struct {
	Type    int       `json:"type"`
	OrderID uuid.UUID `json:"orderId"`
	Content string    `json:"content"`
}

// Hub maintains the set of connected observers and broadcasts events to all
// of them. Delivery is best-effort: observers connecting after a broadcast
// do not receive it, and a slow observer is dropped rather than letting it
// stall the rest.
type Hub struct {
	observers map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event

	logger *zap.Logger

	// Guards observers for the Run loop and test inspection.
	mu sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		observers:  make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		logger:     logger,
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.observers[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.observers[client]; ok {
				delete(h.observers, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("marshal notification", zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.observers {
				select {
				case client.send <- message:
				default:
					// Send buffer full: the observer is not keeping up.
					// Drop it so the remaining observers still get the event.
					close(client.send)
					delete(h.observers, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for delivery to every currently-registered
// observer. Fire-and-forget: failures never reach the caller.
func (h *Hub) Broadcast(event Event) {
	h.broadcast <- event
}
