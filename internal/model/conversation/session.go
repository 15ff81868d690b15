package conversation

import "time"

// Status tracks where a session sits in its lifecycle.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusActive   Status = "active"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
)

// Cursor marks the engine's position in the turn sequence.
type Cursor struct {
	Round       int `json:"round"`
	Participant int `json:"participant"`
}

// Session captures one running conversation. At most one session is
// active or stopping per process.
type Session struct {
	ID                string    `json:"id"`
	Status            Status    `json:"status"`
	Topic             string    `json:"topic"`
	Participants      []string  `json:"participants"`
	StyleDirective    string    `json:"styleDirective,omitempty"`
	RoundLimit        int       `json:"roundLimit,omitempty"` // 0 = run until stopped
	Cursor            Cursor    `json:"cursor"`
	LastAcceptedReply string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Live reports whether the session still owns the conversation loop.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusStopping
}

// Turn is one participant's contribution attempt within a round.
type Turn struct {
	Participant string
	Context     string
	Reply       string
	Flagged     bool
}
