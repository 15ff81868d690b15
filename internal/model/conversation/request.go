package conversation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTopicRequired  = errors.New("topic is required")
	ErrAgentsRequired = errors.New("at least one agent is required")
	ErrDuplicateAgent = errors.New("agent names must be distinct")
	ErrInvalidRounds  = errors.New("rounds must be a positive integer")
)

// MediatorName is appended to the participant list when the mediator
// flag is set on a start request.
const MediatorName = "Mediator"

// StartRequest is the wire payload of a start_conversation event. Agents
// arrive as a single comma-and-space-separated string, matching the
// frontend contract.
type StartRequest struct {
	Topic    string `json:"topic"`
	Agents   string `json:"agents"`
	Prompt   string `json:"prompt,omitempty"`
	Toxicity *int   `json:"toxicity,omitempty"`
	Mediator bool   `json:"mediator,omitempty"`
	Rounds   int    `json:"rounds,omitempty"`
}

// NormalizedStart is a validated start request ready for the engine.
type NormalizedStart struct {
	Topic          string
	Participants   []string
	StyleDirective string
	RoundLimit     int
}

// Normalize validates the request and derives the participant list and
// style directive. Toxicity outside 0..10 is clamped rather than rejected.
func (r StartRequest) Normalize() (NormalizedStart, error) {
	topic := strings.TrimSpace(r.Topic)
	if topic == "" {
		return NormalizedStart{}, ErrTopicRequired
	}

	participants := splitAgents(r.Agents)
	if len(participants) == 0 {
		return NormalizedStart{}, ErrAgentsRequired
	}
	if r.Mediator {
		participants = append(participants, MediatorName)
	}

	seen := make(map[string]bool, len(participants))
	for _, name := range participants {
		if seen[name] {
			return NormalizedStart{}, fmt.Errorf("%w: %s", ErrDuplicateAgent, name)
		}
		seen[name] = true
	}

	if r.Rounds < 0 {
		return NormalizedStart{}, ErrInvalidRounds
	}

	return NormalizedStart{
		Topic:          topic,
		Participants:   participants,
		StyleDirective: buildStyleDirective(r.Prompt, r.Toxicity),
		RoundLimit:     r.Rounds,
	}, nil
}

func splitAgents(raw string) []string {
	parts := strings.Split(raw, ", ")
	agents := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		agents = append(agents, name)
	}
	return agents
}

// buildStyleDirective turns the optional toxicity dial and free-text
// prompt into one directive string biasing generation tone.
func buildStyleDirective(prompt string, toxicity *int) string {
	var sections []string

	if toxicity != nil {
		level := *toxicity
		if level < 0 {
			level = 0
		}
		if level > 10 {
			level = 10
		}
		switch {
		case level <= 3:
			sections = append(sections, "Keep the exchange civil and constructive.")
		case level <= 6:
			sections = append(sections, "Let the exchange get heated; participants may disagree sharply.")
		default:
			sections = append(sections, "Participants are openly hostile and confrontational with each other.")
		}
	}

	if trimmed := strings.TrimSpace(prompt); trimmed != "" {
		sections = append(sections, trimmed)
	}

	return strings.Join(sections, " ")
}
