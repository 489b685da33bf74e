// Package responder builds run replies for the local agent server. Each
// response shape mirrors one envelope the upstream service has produced.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/analysis/emotion"
	"github.com/zhouzirui/tuft-client/internal/model/chat"
	"github.com/zhouzirui/tuft-client/internal/model/persona"
	"github.com/zhouzirui/tuft-client/internal/service/extract"
)

// Shape selects the reply envelope.
type Shape string

const (
	ShapeMetadata    Shape = "metadata"
	ShapeContentJSON Shape = "content_json"
	ShapeContentMap  Shape = "content_map"
	ShapeState       Shape = "state"
	ShapeText        Shape = "text"
)

// Shapes lists every supported envelope.
func Shapes() []Shape {
	return []Shape{ShapeMetadata, ShapeContentJSON, ShapeContentMap, ShapeState, ShapeText}
}

// ParseShape validates a configured shape name.
func ParseShape(raw string) (Shape, error) {
	name := Shape(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Shapes() {
		if s == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown response shape %q", raw)
}

// ErrNoInput is returned when a run carries no user message.
var ErrNoInput = errors.New("run input has no user message")

// RunRequest is the decoded body of a run call.
type RunRequest struct {
	AssistantID string `json:"assistant_id"`
	Input       struct {
		Messages []*schema.Message `json:"messages"`
	} `json:"input"`
	Config struct {
		Configurable struct {
			ResponseModelExtras map[string]any `json:"response_model_extras"`
		} `json:"configurable"`
	} `json:"config"`
}

// UserText returns the content of the last user message.
func (r RunRequest) UserText() string {
	for i := len(r.Input.Messages) - 1; i >= 0; i-- {
		msg := r.Input.Messages[i]
		if msg != nil && msg.Role == schema.User {
			return strings.TrimSpace(msg.Content)
		}
	}
	return ""
}

// Threads is the thread store the responder reads and appends to.
type Threads interface {
	SaveMessage(ctx context.Context, message chat.Message) (chat.Message, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Generator produces the persona's reply text, typically through an LLM.
type Generator interface {
	GenerateResponse(ctx context.Context, p persona.Persona, history []chat.Message, userMessage string) (*schema.Message, error)
}

// Responder answers runs against stored threads.
type Responder struct {
	threads     Threads
	generator   Generator
	persona     persona.Persona
	assistantID string
	shape       Shape
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Responder.
type Option func(*Responder)

// WithGenerator replies through g instead of canned lines.
func WithGenerator(g Generator) Option {
	return func(r *Responder) {
		r.generator = g
	}
}

// WithPersona sets the persona that replies.
func WithPersona(p persona.Persona) Option {
	return func(r *Responder) {
		r.persona = p
	}
}

// WithAssistantID sets the only assistant this server answers for.
func WithAssistantID(id string) Option {
	return func(r *Responder) {
		if id != "" {
			r.assistantID = id
		}
	}
}

// WithShape sets the reply envelope.
func WithShape(s Shape) Option {
	return func(r *Responder) {
		if s != "" {
			r.shape = s
		}
	}
}

// WithLogger sets the operator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time used for "auto" timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		r.now = now
	}
}

// New creates a responder over threads.
func New(threads Threads, opts ...Option) *Responder {
	r := &Responder{
		threads:     threads,
		persona:     persona.Seed()[0],
		assistantID: "agent",
		shape:       ShapeMetadata,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Shape reports the configured envelope.
func (r *Responder) Shape() Shape {
	return r.shape
}

// Run answers one run on threadID. Failures the upstream service reports
// in-band (unknown assistant, generation errors) come back as an error
// envelope body with a nil error.
func (r *Responder) Run(ctx context.Context, threadID string, req RunRequest) (map[string]any, error) {
	if req.AssistantID != r.assistantID {
		return errorEnvelope("ValueError", fmt.Sprintf("assistant %q not found", req.AssistantID)), nil
	}

	userText := req.UserText()
	if userText == "" {
		return nil, ErrNoInput
	}

	history, err := r.threads.LoadTranscript(ctx, threadID)
	if err != nil {
		return nil, err
	}

	fields, err := r.reply(ctx, history, userText)
	if err != nil {
		r.logger.Warn("reply generation failed", zap.String("thread_id", threadID), zap.Error(err))
		return errorEnvelope("GenerationError", err.Error()), nil
	}
	// the user turn is stored only once it has a reply
	if _, err := r.threads.SaveMessage(ctx, chat.Message{SessionID: threadID, Sender: "user", Content: userText}); err != nil {
		return nil, err
	}
	for key, value := range req.Config.Configurable.ResponseModelExtras {
		if key == "content" || key == "emotion" {
			continue
		}
		if key == "timestamp" && value == "auto" {
			value = r.now().UTC().Format(time.RFC3339)
		}
		fields[key] = value
	}

	encoded := extract.ValueString(fields)
	label := emotion.Normalize(fields["emotion"])
	if _, err := r.threads.SaveMessage(ctx, chat.Message{
		SessionID: threadID,
		Sender:    "assistant",
		Content:   encoded,
		Emotion:   string(label),
	}); err != nil {
		return nil, err
	}

	if r.shape == ShapeState {
		transcript, err := r.threads.LoadTranscript(ctx, threadID)
		if err != nil {
			return nil, err
		}
		return stateBody(transcript), nil
	}
	return r.envelope(fields, encoded), nil
}

func (r *Responder) reply(ctx context.Context, history []chat.Message, userText string) (map[string]any, error) {
	decision := emotion.Analyze(userText)

	if r.generator == nil {
		return map[string]any{
			"content": cannedReply(decision.Emotion),
			"emotion": string(decision.Emotion),
		}, nil
	}

	msg, err := r.generator.GenerateResponse(ctx, r.persona, history, userText)
	if err != nil {
		return nil, err
	}
	if fields, ok := extract.ParseEncoded(msg.Content); ok {
		if _, hasEmotion := fields["emotion"]; !hasEmotion {
			fields["emotion"] = string(decision.Emotion)
		}
		return fields, nil
	}
	return map[string]any{
		"content": strings.TrimSpace(msg.Content),
		"emotion": string(decision.Emotion),
	}, nil
}

func (r *Responder) envelope(fields map[string]any, encoded string) map[string]any {
	text := extract.ValueString(fields["content"])

	var message map[string]any
	switch r.shape {
	case ShapeContentJSON:
		message = map[string]any{"type": "ai", "content": "```json\n" + encoded + "\n```"}
	case ShapeContentMap:
		message = map[string]any{"type": "ai", "content": fields}
	case ShapeText:
		message = map[string]any{"type": "ai", "content": text}
	default:
		message = map[string]any{
			"type":              "ai",
			"content":           text,
			"additional_kwargs": map[string]any{"json_data": fields},
		}
	}
	return map[string]any{
		"output": map[string]any{"messages": []any{message}},
	}
}

func stateBody(transcript []chat.Message) map[string]any {
	messages := make([]any, 0, len(transcript))
	for _, msg := range transcript {
		kind := "human"
		if msg.Sender == "assistant" {
			kind = "ai"
		}
		messages = append(messages, map[string]any{
			"id":      msg.ID,
			"type":    kind,
			"content": msg.Content,
		})
	}
	return map[string]any{"messages": messages}
}

func errorEnvelope(kind, message string) map[string]any {
	return map[string]any{
		"__error__": map[string]any{"error": kind, "message": message},
	}
}

func cannedReply(label emotion.Label) string {
	switch label {
	case emotion.Happy:
		return "やったね 僕もうれしいよ"
	case emotion.Sad:
		return "大丈夫 僕がそばにいるよ 少し休もう"
	default:
		return "うん 聞いてるよ 英語でも言ってみる？"
	}
}
