// Package notify carries job completion events to connected UI clients over
// websockets, and accepts inbound completion signals pushed over the same
// connection (the cross-context delivery channel).
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

// SignalHandler applies an inbound completion signal.
type SignalHandler interface {
	Apply(ctx context.Context, sig domain.CompletionSignal) error
}

// JobEvent is the outbound wire shape broadcast on a terminal transition.
type JobEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// inboundSignal is the wire shape a provider (or a window acting for it)
// pushes over an open connection.
type inboundSignal struct {
	Type   string `json:"type"`
	JobID  string `json:"jobId"`
	Kind   string `json:"kind"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Hub fans completion events out to every connected client. Connection
// bookkeeping runs on a single goroutine fed by channels.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	logger     zerolog.Logger
}

// NewHub creates a Hub. Call Run before use.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			return
		case conn := <-h.register:
			h.clients[conn] = true
			h.logger.Debug().Int("clients", len(h.clients)).Msg("hub: client connected")
		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.logger.Debug().Int("clients", len(h.clients)).Msg("hub: client disconnected")
		case message := <-h.broadcast:
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn().Err(err).Msg("hub: write failed, dropping client")
					conn.Close()
					delete(h.clients, conn)
				}
			}
		}
	}
}

// BroadcastJob pushes a job's terminal state to all connected clients.
func (h *Hub) BroadcastJob(job domain.Job) {
	event := JobEvent{
		Type:      "job_update",
		JobID:     job.ID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Result:    job.ResultPayload,
		Error:     job.ErrorMessage,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("hub: marshal event failed")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn().Msg("hub: broadcast buffer full, event dropped")
	}
}

// ServeConn registers the connection and reads it until it closes. Inbound
// completion messages are translated and handed to the signal handler;
// everything else is ignored.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn, handler SignalHandler) {
	h.register <- conn
	defer func() { h.unregister <- conn }()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundSignal
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Warn().Err(err).Msg("hub: unreadable message ignored")
			continue
		}
		if msg.Type != "completion" || msg.JobID == "" {
			continue
		}
		sig := domain.CompletionSignal{
			JobID:      msg.JobID,
			Kind:       domain.JobKind(msg.Kind),
			Result:     msg.Result,
			Error:      msg.Error,
			ReceivedAt: time.Now().UTC(),
		}
		if handler != nil {
			if err := handler.Apply(ctx, sig); err != nil {
				h.logger.Error().Err(err).Str("job_id", sig.JobID).Msg("hub: apply inbound signal failed")
			}
		}
	}
}
