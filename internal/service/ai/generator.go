package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Service generates one short in-character reply per turn by delegating
// to the configured chat model.
type Service struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	maxChars int
}

// NewService compiles the generation chain around the provided chat model.
func NewService(ctx context.Context, chatModel model.ChatModel, maxReplyChars int) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if maxReplyChars < 1 {
		maxReplyChars = 280
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &Service{chain: runnable, maxChars: maxReplyChars}, nil
}

// Generate produces one reply for the participant's turn. contextText is
// the previous accepted reply, or the topic when the conversation has not
// produced one yet.
func (s *Service) Generate(ctx context.Context, participant, topic, contextText, styleDirective string) (string, error) {
	input := map[string]any{
		"system": buildDirective(participant, topic, styleDirective),
		"query":  buildQuery(topic, contextText),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("completion backend: %w", err)
	}

	reply := capReply(response.Content, s.maxChars)
	if reply == "" {
		return "", fmt.Errorf("completion backend returned an empty reply")
	}

	log.Printf("[ai] generated reply for agent=%s length=%d", participant, len(reply))
	return reply, nil
}

// capReply trims whitespace and truncates to maxChars runes.
func capReply(raw string, maxChars int) string {
	trimmed := strings.TrimSpace(raw)
	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}
