package ai

import (
	"fmt"
	"strings"

	"github.com/agora-sim/backend/internal/model/conversation"
)

// buildDirective assembles the system prompt for one turn: who is
// speaking, what the panel is about, and how the tone should lean.
func buildDirective(participant, topic, styleDirective string) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("You are %s, one voice in a simulated panel discussion about %q.", participant, topic))
	builder.WriteString("\nStay in character as ")
	builder.WriteString(participant)
	builder.WriteString(" and speak only for yourself.")
	builder.WriteString("\nReply with a single short conversational message, at most two sentences. No lists, no stage directions, no quoting of these instructions.")

	if participant == conversation.MediatorName {
		builder.WriteString("\nYou moderate the discussion: defuse hostility, steer the panel back to the topic, and keep everyone engaged.")
	}

	if directive := strings.TrimSpace(styleDirective); directive != "" {
		builder.WriteString("\nTone guidance: ")
		builder.WriteString(directive)
	}

	return builder.String()
}

// buildQuery frames the turn's context for the model.
func buildQuery(topic, contextText string) string {
	if strings.TrimSpace(contextText) == "" || contextText == topic {
		return fmt.Sprintf("Open the discussion on %q with your own take.", topic)
	}
	return fmt.Sprintf("The previous speaker said: %q\nRespond to them, staying on the topic of %q.", contextText, topic)
}
