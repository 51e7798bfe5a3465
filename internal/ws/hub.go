package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"FacilityBot/entity"
	"FacilityBot/internal/lib/sl"
)

const (
	eventSession       = "session"
	eventCancelResult  = "cancel_result"
	clientCancel       = "cancel_session"
	broadcastQueueSize = 256
)

// ClientMessageHandler handles requests sent by operator dashboards.
type ClientMessageHandler interface {
	CancelSession(ctx context.Context, phone string) (bool, error)
}

// Event represents a WebSocket event sent to operator clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With(sl.Module("ws-hub")),
	}
}

func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run starts the hub's event loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// reply queues data for one client if it is still registered.
func (h *Hub) reply(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// SessionEvent forwards a bot session transition to every dashboard.
// Events are dropped when the queue is full so the bot never blocks.
func (h *Hub) SessionEvent(e entity.SessionEvent) {
	select {
	case h.broadcast <- &Event{Type: eventSession, Data: e}:
	default:
		h.log.Warn("event queue full, dropping", slog.String("type", e.Type))
	}
}

// clientEvent represents an incoming WebSocket message from a client.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and dispatches an incoming message from a
// client and returns the reply to send back, if any.
func (h *Hub) HandleClientMessage(ctx context.Context, username string, raw []byte) *Event {
	if h.handler == nil {
		return nil
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message", sl.Err(err))
		return nil
	}

	switch event.Type {
	case clientCancel:
		var data struct {
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.Phone == "" {
			h.log.Warn("invalid cancel_session data", slog.String("username", username))
			return nil
		}
		cancelled, err := h.handler.CancelSession(ctx, data.Phone)
		result := map[string]any{"phone": data.Phone, "cancelled": cancelled}
		if err != nil {
			h.log.Error("failed to cancel session",
				slog.String("username", username),
				sl.Phone(data.Phone),
				sl.Err(err),
			)
			result["error"] = err.Error()
		} else {
			h.log.Info("session cancelled by operator",
				slog.String("username", username),
				sl.Phone(data.Phone),
				slog.Bool("cancelled", cancelled),
			)
		}
		return &Event{Type: eventCancelResult, Data: result}
	}
	return nil
}
