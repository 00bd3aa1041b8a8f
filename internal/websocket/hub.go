package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cotpulse/internal/infrastructure"
	"cotpulse/pkg/contracts/domain"
)

// Message types
const (
	TypeConnection = "connection"
	TypeDataUpdate = "data_update"
	TypeHeartbeat  = "heartbeat"
)

// Message is the envelope of every server push.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// DataUpdate is the payload of a data_update message.
type DataUpdate struct {
	Dataset domain.DatasetKind `json:"dataset"`
	Records int                `json:"records"`
	Source  string             `json:"source,omitempty"`
}

// Stats are cumulative hub counters.
type Stats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	Dropped          int64 `json:"dropped_clients"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *infrastructure.Metrics

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	dropped          atomic.Int64
}

// NewHub creates a hub. A nil metrics records nothing.
func NewHub(logger *slog.Logger, metrics *infrastructure.Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = infrastructure.NopMetrics()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Run is the hub loop. It returns when ctx is cancelled, after closing every
// client's send queue so their write pumps exit.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)
			h.metrics.WebSocketClientsChanged(ctx, 1)

			h.logger.InfoContext(c.ctx(), "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr))

			h.sendTo(c, Message{
				Type:      TypeConnection,
				Data:      map[string]string{"status": "connected", "client_id": c.id},
				Timestamp: time.Now().UTC(),
				TraceID:   c.traceID,
			})

		case c := <-h.unregister:
			h.remove(ctx, c, "client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- msg:
					h.messagesSent.Add(1)
				default:
					h.dropped.Add(1)
					h.remove(ctx, c, "client send buffer full, disconnecting")
				}
			}
		}
	}
}

func (h *Hub) remove(ctx context.Context, c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.WebSocketClientsChanged(ctx, -1)

	h.logger.InfoContext(c.ctx(), reason,
		slog.Int("total_clients", count),
		slog.String("client_id", c.id),
		slog.Duration("connection_duration", time.Since(c.connectedAt)))
}

func (h *Hub) sendTo(c *Client, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
		h.messagesSent.Add(1)
	default:
		h.logger.Warn("client buffer full, connection message skipped", slog.String("client_id", c.id))
	}
}

// Broadcast queues a message of msgType for every client. It never blocks
// once the hub has stopped.
func (h *Hub) Broadcast(ctx context.Context, msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal broadcast failed",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.done:
	case <-ctx.Done():
	}
}

// BroadcastDataUpdate announces that a dataset was replaced.
func (h *Hub) BroadcastDataUpdate(ctx context.Context, dataset domain.DatasetKind, records int, source string) {
	h.Broadcast(ctx, TypeDataUpdate, DataUpdate{Dataset: dataset, Records: records, Source: source})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns current hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		Dropped:          h.dropped.Load(),
	}
}
