package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Verdict is the moderation outcome for one candidate reply.
type Verdict struct {
	Flagged  bool
	Category string
}

// Service classifies candidate replies with the chat model. How a
// classification failure is treated (fail-open vs fail-closed) is the
// caller's policy, not this package's.
type Service struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the moderation classifier chain.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(moderationSystemPrompt),
		schema.UserMessage("Candidate message:\n{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile moderation chain: %w", err)
	}

	return &Service{classifier: runnable}, nil
}

// Check returns the verdict for the candidate text.
func (s *Service) Check(ctx context.Context, text string) (Verdict, error) {
	msg, err := s.classifier.Invoke(ctx, map[string]any{"text": text})
	if err != nil {
		return Verdict{}, fmt.Errorf("moderation backend: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Verdict{}, fmt.Errorf("moderation backend returned an empty verdict")
	}

	return parseVerdict(msg.Content)
}

// parseVerdict extracts the JSON object from the classifier output. The
// model occasionally wraps it in prose or code fences.
func parseVerdict(content string) (Verdict, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return Verdict{}, fmt.Errorf("verdict missing json object: %q", trimmed)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	return Verdict{
		Flagged:  payload.Flagged,
		Category: strings.TrimSpace(payload.Category),
	}, nil
}

type verdictPayload struct {
	Flagged  bool   `json:"flagged"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

const moderationSystemPrompt = "You are a content moderation classifier for a casual multi-agent chat. " +
	"Decide whether the candidate message should be withheld from the audience. Flag only harassment targeting real people, hate speech, sexual content involving minors, or credible threats; heated disagreement and rudeness between fictional panelists are allowed. " +
	"Return exactly one JSON object with fields: flagged (boolean), category (short string, empty when not flagged), reason (short string). No extra text."

// Disabled is a Checker that accepts everything. Used when moderation is
// switched off or no chat model is available.
type Disabled struct{}

// Check always accepts.
func (Disabled) Check(context.Context, string) (Verdict, error) {
	return Verdict{}, nil
}
