// Package session owns the conversation thread and issues user turns to the
// agent service, journaling each exchange when asked to.
package session

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/model/chat"
	"github.com/zhouzirui/tuft-client/internal/model/journal"
)

// DefaultAssistantID is the graph the service runs when none is configured.
const DefaultAssistantID = "agent"

// Transport is the request/response collaborator reaching the agent service.
type Transport interface {
	CreateThread(ctx context.Context, metadata map[string]any) (string, error)
	RunWait(ctx context.Context, threadID string, body any, requestID string) (any, error)
}

// Recorder persists exchanges.
type Recorder interface {
	Record(ex journal.Exchange) (string, error)
}

// Exchange describes one completed turn.
type Exchange struct {
	RequestID   string
	Request     map[string]any
	Response    any
	Elapsed     time.Duration
	JournalFile string
}

// Client issues turns against the agent service.
type Client struct {
	transport   Transport
	assistantID string
	extras      map[string]any
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures a Client.
type Option func(*Client)

// WithAssistantID selects the assistant (graph) that handles turns.
func WithAssistantID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.assistantID = id
		}
	}
}

// WithExtras sets auxiliary fields sent with every turn.
func WithExtras(extras map[string]any) Option {
	return func(c *Client) {
		c.extras = extras
	}
}

// WithLogger sets the operator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for timing turns.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithRequestIDs overrides request identifier generation.
func WithRequestIDs(newID func() string) Option {
	return func(c *Client) {
		c.newID = newID
	}
}

// NewClient creates a session client over transport.
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport:   transport,
		assistantID: DefaultAssistantID,
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession opens a new conversation thread.
func (c *Client) CreateSession(ctx context.Context) (chat.Session, error) {
	metadata := map[string]any{"purpose": "conversation"}
	id, err := c.transport.CreateThread(ctx, metadata)
	if err != nil {
		return chat.Session{}, err
	}

	c.logger.Info("session created", zap.String("thread_id", id))
	return chat.Session{ID: id, CreatedAt: c.now(), Metadata: metadata}, nil
}

// SendTurn sends one user turn and waits for the run to finish. When rec is
// non-nil the exchange is journaled whether or not the call succeeded; a
// journal failure is logged and never changes the returned result or error.
func (c *Client) SendTurn(ctx context.Context, req chat.TurnRequest, rec Recorder) (Exchange, error) {
	ex := Exchange{
		RequestID: c.newID(),
		Request:   BuildRequestBody(c.assistantID, req.Text, c.mergeExtras(req.Extras)),
	}

	start := c.now()
	raw, err := c.transport.RunWait(ctx, req.SessionID, ex.Request, ex.RequestID)
	ex.Elapsed = c.now().Sub(start)
	if ex.Elapsed < 0 {
		ex.Elapsed = 0
	}
	ex.Response = raw

	if err != nil {
		c.logger.Warn("turn failed",
			zap.String("thread_id", req.SessionID),
			zap.String("request_id", ex.RequestID),
			zap.Duration("elapsed", ex.Elapsed),
			zap.Error(err))
	} else {
		c.logger.Debug("turn completed",
			zap.String("thread_id", req.SessionID),
			zap.String("request_id", ex.RequestID),
			zap.Duration("elapsed", ex.Elapsed))
	}

	if rec != nil {
		name, jerr := rec.Record(journal.Exchange{
			UserInput: req.Text,
			SessionID: req.SessionID,
			RequestID: ex.RequestID,
			Request:   ex.Request,
			Response:  raw,
			Err:       err,
			Elapsed:   ex.Elapsed,
		})
		if jerr != nil {
			c.logger.Warn("journal write failed, entry skipped",
				zap.String("request_id", ex.RequestID),
				zap.Error(jerr))
		} else {
			ex.JournalFile = name
		}
	}

	return ex, err
}

func (c *Client) mergeExtras(turn map[string]any) map[string]any {
	if len(c.extras) == 0 && len(turn) == 0 {
		return nil
	}
	merged := make(map[string]any, len(c.extras)+len(turn))
	for k, v := range c.extras {
		merged[k] = v
	}
	for k, v := range turn {
		merged[k] = v
	}
	return merged
}

// BuildRequestBody builds the run payload for one user turn.
func BuildRequestBody(assistantID, text string, extras map[string]any) map[string]any {
	body := map[string]any{
		"assistant_id": assistantID,
		"input": map[string]any{
			"messages": []*schema.Message{schema.UserMessage(text)},
		},
	}
	if len(extras) > 0 {
		body["config"] = map[string]any{
			"configurable": map[string]any{
				"response_model_extras": extras,
			},
		}
	}
	return body
}
