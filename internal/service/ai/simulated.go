package ai

import (
	"context"
	"fmt"
	"sync"
)

// simulatedTemplates mirrors the canned replies the first prototype
// shipped with, so the server stays usable without model credentials.
var simulatedTemplates = []string{
	"%s thinks %s is interesting.",
	"%s wants to know more about %s.",
	"%s agrees with the other agent on %s.",
	"%s is considering different perspectives on %s.",
	"%s raises a point about %s.",
}

// Simulated is a deterministic Generator used when no completion backend
// is configured, and as a fixture in tests.
type Simulated struct {
	mu   sync.Mutex
	next int
}

// NewSimulated returns a generator that rotates through canned replies.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Generate returns the next canned reply for the participant and topic.
func (s *Simulated) Generate(_ context.Context, participant, topic, _, _ string) (string, error) {
	s.mu.Lock()
	template := simulatedTemplates[s.next%len(simulatedTemplates)]
	s.next++
	s.mu.Unlock()

	return fmt.Sprintf(template, participant, topic), nil
}
