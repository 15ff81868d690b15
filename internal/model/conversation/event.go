package conversation

import (
	"encoding/json"
	"fmt"
)

// Client → server event names.
const (
	EventStartConversation = "start_conversation"
	EventStopConversation  = "stop_conversation"
)

// Server → client event names.
const (
	EventAgentTyping          = "agent_typing"
	EventConversationResponse = "conversation_response"
	EventConversationEnded    = "conversation_ended"
	EventError                = "error"
)

// End reasons carried by conversation_ended.
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonError     = "error"
)

// Envelope wraps every message crossing the websocket in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals a payload into an outbound envelope.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// TypingPayload announces that a participant is composing a reply.
type TypingPayload struct {
	Agent string `json:"agent"`
}

// ResponsePayload carries one accepted reply.
type ResponsePayload struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// EndedPayload closes a conversation with one of the Reason constants.
type EndedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload surfaces a user-visible failure.
type ErrorPayload struct {
	Error string `json:"error"`
}
