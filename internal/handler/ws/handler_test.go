package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/agora-sim/backend/internal/handler/ws"
	model "github.com/agora-sim/backend/internal/model/conversation"
	"github.com/agora-sim/backend/internal/service/ai"
	convo "github.com/agora-sim/backend/internal/service/conversation"
)

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()

	engine := convo.New(ai.NewSimulated(), nil, convo.Config{Pacing: time.Millisecond})
	r := chi.NewRouter()
	ws.New(engine).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	envelope, err := model.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("build envelope err: %v", err)
	}
	if err := conn.WriteJSON(envelope); err != nil {
		t.Fatalf("write err: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) model.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var envelope model.Envelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("read err: %v", err)
	}
	return envelope
}

// readUntil drains events until one with the wanted name arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) model.Envelope {
	t.Helper()
	for i := 0; i < 50; i++ {
		envelope := read(t, conn)
		if envelope.Event == event {
			return envelope
		}
	}
	t.Fatalf("never received %s", event)
	return model.Envelope{}
}

func TestStartConversationStreamsEvents(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, model.EventStartConversation, model.StartRequest{
		Topic:  "robots",
		Agents: "Alice, Bob",
		Rounds: 1,
	})

	wantNames := []string{
		model.EventAgentTyping,
		model.EventConversationResponse,
		model.EventAgentTyping,
		model.EventConversationResponse,
		model.EventConversationEnded,
	}
	wantAgents := []string{"Alice", "Alice", "Bob", "Bob", ""}

	for i, wantName := range wantNames {
		envelope := read(t, conn)
		if envelope.Event != wantName {
			t.Fatalf("event %d: got %s want %s", i, envelope.Event, wantName)
		}

		switch wantName {
		case model.EventAgentTyping:
			var payload model.TypingPayload
			if err := json.Unmarshal(envelope.Data, &payload); err != nil {
				t.Fatalf("decode typing: %v", err)
			}
			if payload.Agent != wantAgents[i] {
				t.Fatalf("event %d: got agent %s want %s", i, payload.Agent, wantAgents[i])
			}
		case model.EventConversationResponse:
			var payload model.ResponsePayload
			if err := json.Unmarshal(envelope.Data, &payload); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if payload.Agent != wantAgents[i] {
				t.Fatalf("event %d: got agent %s want %s", i, payload.Agent, wantAgents[i])
			}
			if payload.Message == "" {
				t.Fatalf("event %d: empty message", i)
			}
		case model.EventConversationEnded:
			var payload model.EndedPayload
			if err := json.Unmarshal(envelope.Data, &payload); err != nil {
				t.Fatalf("decode ended: %v", err)
			}
			if payload.Reason != model.ReasonCompleted {
				t.Fatalf("unexpected end reason: %s", payload.Reason)
			}
		}
	}
}

func TestStartConversationValidation(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, model.EventStartConversation, model.StartRequest{Agents: "Alice"})

	envelope := read(t, conn)
	if envelope.Event != model.EventError {
		t.Fatalf("expected error event, got %s", envelope.Event)
	}

	var payload model.ErrorPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(payload.Error, "topic") {
		t.Fatalf("error should mention the topic: %q", payload.Error)
	}
}

func TestStopConversation(t *testing.T) {
	conn := dialTestServer(t)

	// Unbounded conversation; only the stop event ends it.
	send(t, conn, model.EventStartConversation, model.StartRequest{
		Topic:  "robots",
		Agents: "Alice, Bob",
	})

	readUntil(t, conn, model.EventConversationResponse)
	send(t, conn, model.EventStopConversation, nil)

	envelope := readUntil(t, conn, model.EventConversationEnded)
	var payload model.EndedPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode ended: %v", err)
	}
	if payload.Reason != model.ReasonStopped {
		t.Fatalf("unexpected end reason: %s", payload.Reason)
	}
}

func TestSecondStartRejected(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, model.EventStartConversation, model.StartRequest{
		Topic:  "robots",
		Agents: "Alice, Bob",
	})
	readUntil(t, conn, model.EventAgentTyping)

	send(t, conn, model.EventStartConversation, model.StartRequest{
		Topic:  "cooking",
		Agents: "Eve",
	})

	envelope := readUntil(t, conn, model.EventError)
	var payload model.ErrorPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(payload.Error, "already active") {
		t.Fatalf("unexpected error: %q", payload.Error)
	}

	send(t, conn, model.EventStopConversation, nil)
	readUntil(t, conn, model.EventConversationEnded)
}

func TestUnknownEvent(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, "rewind_conversation", nil)

	envelope := read(t, conn)
	if envelope.Event != model.EventError {
		t.Fatalf("expected error event, got %s", envelope.Event)
	}
}
