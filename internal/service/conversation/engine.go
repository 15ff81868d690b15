package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-sim/backend/internal/model/conversation"
	"github.com/agora-sim/backend/internal/service/moderation"
)

var (
	// ErrAlreadyActive is returned when a start request arrives while a
	// session is still live.
	ErrAlreadyActive = errors.New("a conversation is already active")
	// ErrInvalidRequest wraps normalization failures of a start request.
	ErrInvalidRequest = errors.New("invalid conversation request")
)

// Generator produces one short reply for a participant's turn.
type Generator interface {
	Generate(ctx context.Context, participant, topic, contextText, styleDirective string) (string, error)
}

// Moderator renders a verdict on a candidate reply.
type Moderator interface {
	Check(ctx context.Context, text string) (moderation.Verdict, error)
}

// Sink delivers named events to the connected subscriber. Delivery order
// must match emission order.
type Sink interface {
	Emit(event string, payload any) error
}

// Config tunes the engine's turn loop.
type Config struct {
	// Pacing is the delay between a typing indicator and its message,
	// and between a message and the next turn.
	Pacing time.Duration
	// FailClosed treats a moderation backend failure as flagged instead
	// of accepted.
	FailClosed bool
}

// Engine drives the turn loop for the single live session. Start returns
// immediately; the loop runs on its own goroutine and observes Stop at
// turn-boundary checkpoints.
type Engine struct {
	generator Generator
	moderator Moderator
	cfg       Config

	mu      sync.Mutex
	session *conversation.Session
	cancel  context.CancelFunc
}

// New builds an engine around the generation and moderation capabilities.
func New(generator Generator, moderator Moderator, cfg Config) *Engine {
	if moderator == nil {
		moderator = moderation.Disabled{}
	}
	return &Engine{
		generator: generator,
		moderator: moderator,
		cfg:       cfg,
	}
}

// Start validates the request and launches the conversation loop. It
// fails with ErrAlreadyActive while a session is live and with
// ErrInvalidRequest on bad input. The returned session is a snapshot.
func (e *Engine) Start(req conversation.StartRequest, sink Sink) (conversation.Session, error) {
	norm, err := req.Normalize()
	if err != nil {
		return conversation.Session{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil && e.session.Status.Live() {
		return conversation.Session{}, ErrAlreadyActive
	}

	session := &conversation.Session{
		ID:             uuid.NewString(),
		Status:         conversation.StatusActive,
		Topic:          norm.Topic,
		Participants:   norm.Participants,
		StyleDirective: norm.StyleDirective,
		RoundLimit:     norm.RoundLimit,
		CreatedAt:      time.Now().UTC(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.session = session
	e.cancel = cancel

	go e.run(ctx, sink)

	log.Printf("[engine] session=%s started topic=%q agents=%d rounds=%d",
		session.ID, session.Topic, len(session.Participants), session.RoundLimit)
	return e.snapshotLocked(), nil
}

// Stop requests the live session to halt. It is idempotent, returns
// immediately, and has no effect when no session is live. The loop
// observes the request at its next checkpoint; an in-flight turn still
// delivers its typing/message pair.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil || e.session.Status != conversation.StatusActive {
		return
	}

	e.session.Status = conversation.StatusStopping
	if e.cancel != nil {
		e.cancel()
	}
	log.Printf("[engine] session=%s stop requested", e.session.ID)
}

// Snapshot returns a copy of the current session, if any.
func (e *Engine) Snapshot() (conversation.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return conversation.Session{}, false
	}
	return e.snapshotLocked(), true
}

func (e *Engine) snapshotLocked() conversation.Session {
	copied := *e.session
	copied.Participants = append([]string(nil), e.session.Participants...)
	return copied
}

// run is the conversation loop. It owns the cursor and lastAcceptedReply
// and is the only writer of both.
func (e *Engine) run(ctx context.Context, sink Sink) {
	session := e.snapshotUnlocked()
	reason := conversation.ReasonCompleted

loop:
	for round := 0; session.RoundLimit == 0 || round < session.RoundLimit; round++ {
		for idx, participant := range session.Participants {
			// Checkpoint: a stop request flips the status to Stopping
			// and is honored here, never inside a turn.
			if !e.active() {
				reason = conversation.ReasonStopped
				break loop
			}
			e.setCursor(round, idx)

			turn := conversation.Turn{Participant: participant, Context: e.lastReply()}
			if turn.Context == "" {
				turn.Context = session.Topic
			}

			reply, err := e.generator.Generate(ctx, participant, session.Topic, turn.Context, session.StyleDirective)
			if err != nil {
				if !e.active() {
					// Stop canceled the in-flight backend call.
					reason = conversation.ReasonStopped
					break loop
				}
				log.Printf("[engine] session=%s agent=%s generation failed: %v", session.ID, participant, err)
				if emitErr := sink.Emit(conversation.EventError, conversation.ErrorPayload{
					Error: fmt.Sprintf("%s could not reply", participant),
				}); emitErr != nil {
					reason = conversation.ReasonError
					break loop
				}
				continue
			}

			turn.Reply = reply
			turn.Flagged = e.moderate(ctx, session.ID, participant, reply)
			if turn.Flagged {
				// Flagged turns are silent on the wire.
				continue
			}
			if !e.active() {
				reason = conversation.ReasonStopped
				break loop
			}

			if err := sink.Emit(conversation.EventAgentTyping, conversation.TypingPayload{Agent: participant}); err != nil {
				log.Printf("[engine] session=%s emit typing failed: %v", session.ID, err)
				reason = conversation.ReasonError
				break loop
			}

			// The typing→message gap always runs to completion so a stop
			// never tears the pair; stop latency stays bounded by Pacing.
			time.Sleep(e.cfg.Pacing)

			if err := sink.Emit(conversation.EventConversationResponse, conversation.ResponsePayload{
				Agent:   participant,
				Message: turn.Reply,
			}); err != nil {
				log.Printf("[engine] session=%s emit response failed: %v", session.ID, err)
				reason = conversation.ReasonError
				break loop
			}
			e.setLastReply(turn.Reply)

			// Between turns the wait is interruptible; the next
			// checkpoint converts an early wakeup into a stop.
			e.pause(ctx)
		}
	}

	e.finish(sink, reason)
}

// moderate applies the verdict and the configured failure policy.
// It returns true when the reply must be withheld.
func (e *Engine) moderate(ctx context.Context, sessionID, participant, reply string) bool {
	verdict, err := e.moderator.Check(ctx, reply)
	if err != nil {
		if e.cfg.FailClosed {
			log.Printf("[engine] session=%s agent=%s moderation unavailable, withholding reply (fail-closed): %v", sessionID, participant, err)
			return true
		}
		log.Printf("[engine] session=%s agent=%s moderation unavailable, accepting reply (fail-open): %v", sessionID, participant, err)
		return false
	}
	if verdict.Flagged {
		log.Printf("[engine] session=%s agent=%s reply flagged category=%q", sessionID, participant, verdict.Category)
		return true
	}
	return false
}

// finish transitions the session to Stopped and announces the end.
func (e *Engine) finish(sink Sink, reason string) {
	e.mu.Lock()
	session := e.session
	session.Status = conversation.StatusStopped
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	// Best effort: the subscriber may already be gone.
	if err := sink.Emit(conversation.EventConversationEnded, conversation.EndedPayload{Reason: reason}); err != nil {
		log.Printf("[engine] session=%s emit ended failed: %v", session.ID, err)
	}
	log.Printf("[engine] session=%s ended reason=%s rounds=%d", session.ID, reason, session.Cursor.Round+1)
}

// pause waits one pacing interval or until the session is canceled.
func (e *Engine) pause(ctx context.Context) {
	if e.cfg.Pacing <= 0 {
		return
	}
	timer := time.NewTimer(e.cfg.Pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && e.session.Status == conversation.StatusActive
}

func (e *Engine) setCursor(round, participant int) {
	e.mu.Lock()
	e.session.Cursor = conversation.Cursor{Round: round, Participant: participant}
	e.mu.Unlock()
}

func (e *Engine) lastReply() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.LastAcceptedReply
}

func (e *Engine) setLastReply(reply string) {
	e.mu.Lock()
	e.session.LastAcceptedReply = reply
	e.mu.Unlock()
}

func (e *Engine) snapshotUnlocked() conversation.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}
