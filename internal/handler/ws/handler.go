package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/agora-sim/backend/internal/model/conversation"
	convo "github.com/agora-sim/backend/internal/service/conversation"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBufSize   = 64
)

// Handler owns the websocket endpoint that carries conversation events.
type Handler struct {
	engine   *convo.Engine
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(engine *convo.Engine) *Handler {
	return &Handler{
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// handleWebSocket upgrades the connection and runs the read loop. The
// connection doubles as the engine's event sink for the session it starts.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	sub := newSubscriber(conn)
	go sub.writePump()
	defer func() {
		// The subscriber is gone; a conversation without an audience
		// has no reason to keep running.
		h.engine.Stop()
		sub.close()
	}()

	log.Printf("[ws] client connected remote=%s", conn.RemoteAddr())

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		var envelope conversation.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		h.dispatch(sub, envelope)
	}
}

func (h *Handler) dispatch(sub *subscriber, envelope conversation.Envelope) {
	switch envelope.Event {
	case conversation.EventStartConversation:
		var req conversation.StartRequest
		if len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, &req); err != nil {
				sub.sendError("malformed start_conversation payload")
				return
			}
		}

		session, err := h.engine.Start(req, sub)
		switch {
		case errors.Is(err, convo.ErrAlreadyActive):
			sub.sendError("a conversation is already active")
		case errors.Is(err, convo.ErrInvalidRequest):
			sub.sendError(err.Error())
		case err != nil:
			sub.sendError("failed to start conversation")
		default:
			log.Printf("[ws] session=%s started for remote=%s", session.ID, sub.conn.RemoteAddr())
		}

	case conversation.EventStopConversation:
		h.engine.Stop()

	default:
		sub.sendError("unknown event: " + envelope.Event)
	}
}

// subscriber serializes outbound events onto a single writer goroutine.
// It implements the engine's Sink.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

var errSubscriberGone = errors.New("subscriber disconnected or too slow")

// Emit queues one event for delivery. Queueing preserves emission order;
// a closed or saturated connection surfaces as a transport error.
func (s *subscriber) Emit(event string, payload any) error {
	envelope, err := conversation.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return errSubscriberGone
	case s.send <- data:
		return nil
	default:
		return errSubscriberGone
	}
}

func (s *subscriber) sendError(message string) {
	if err := s.Emit(conversation.EventError, conversation.ErrorPayload{Error: message}); err != nil {
		log.Printf("[ws] failed to send error event: %v", err)
	}
}

// writePump drains the send channel and keeps the connection alive.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
