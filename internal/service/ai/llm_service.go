package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/analysis/emotion"
	"github.com/zhouzirui/tuft-client/internal/config"
	"github.com/zhouzirui/tuft-client/internal/model/chat"
	"github.com/zhouzirui/tuft-client/internal/model/persona"
)

const historyLimit = 10

// Service encapsulates AI-powered reply generation for the local agent server
type Service struct {
	prompts *PersonaPromptManager
	chain   compose.Runnable[map[string]any, *schema.Message]
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the operator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time rendered into the system prompt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a service backed by the Ark chat model described by cfg
func NewService(ctx context.Context, cfg config.AIConfig, opts ...Option) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, opts...)
}

// NewServiceWithModel compiles the prompt chain around an existing chat model
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, opts ...Option) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	s := &Service{
		prompts: NewPersonaPromptManager(),
		chain:   runnable,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateResponse generates the persona's reply to userMessage given the prior transcript
func (s *Service) GenerateResponse(ctx context.Context, p persona.Persona, history []chat.Message, userMessage string) (*schema.Message, error) {
	input := map[string]any{
		"system":  s.buildSystemPrompt(p, userMessage),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Info("generated response",
		zap.String("persona", p.ID),
		zap.Int("length", len(response.Content)))
	return response, nil
}

func (s *Service) buildSystemPrompt(p persona.Persona, userMessage string) string {
	base := s.prompts.BuildSystemPrompt(p, s.now())

	mood := describeMood(emotion.Analyze(userMessage).Emotion)
	if mood == "" {
		return base
	}
	return base + "\n\n今の君の様子：" + mood
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case "user":
			history = append(history, schema.UserMessage(msg.Content))
		case "assistant":
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
