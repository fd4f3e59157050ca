// Package conversation orchestrates one request/response cycle per
// conversation: append the user message, stream the agent's reply, apply
// entity inference, append the assistant message.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/procureflow/assistant/internal/adk"
	"github.com/procureflow/assistant/internal/entity"
	"github.com/procureflow/assistant/internal/ingest"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	// ErrEmptyMessage rejects a submit whose trimmed text is empty.
	ErrEmptyMessage = errors.New("conversation: empty message")

	// ErrBusy rejects a submit while a send is already in flight for the
	// same conversation.
	ErrBusy = errors.New("conversation: send already in progress")
)

// SessionResolver maps a local conversation ID to a backend session ID.
type SessionResolver interface {
	Resolve(ctx context.Context, localID, userID string) (string, error)
	Forget(ctx context.Context, localID string) error
}

// Runner sends a user message to the agent and returns the raw reply stream.
type Runner interface {
	Run(ctx context.Context, req *adk.RunRequest) (io.ReadCloser, error)
}

// Exchange is the outcome of one completed send cycle.
type Exchange struct {
	ConversationID string             `json:"conversation_id"`
	Assistant      Message            `json:"message"`
	Entity         *entity.Suggestion `json:"entity,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
}

type conversationState struct {
	messages []Message
	sending  bool
}

// Controller holds in-memory conversation state and runs send cycles against
// the agent backend. Conversations do not survive a restart; only the
// session mappings behind the resolver do.
type Controller struct {
	mu            sync.Mutex
	conversations map[string]*conversationState

	sessions    SessionResolver
	client      Runner
	logger      *slog.Logger
	defaultLang string
}

// Option configures the controller.
type Option func(*Controller)

// WithDefaultLanguage sets the notice language used when a send names none.
// When unset, the language is detected from the message text instead.
func WithDefaultLanguage(lang string) Option {
	return func(c *Controller) {
		c.defaultLang = lang
	}
}

// New creates a controller.
func New(sessions SessionResolver, client Runner, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		conversations: make(map[string]*conversationState),
		sessions:      sessions,
		client:        client,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send runs one full cycle for the given conversation. The user message is
// appended immediately and never rolled back. On any failure in the chain a
// localized failure notice is appended as the assistant message, the
// conversation returns to idle, and the error is returned alongside the
// exchange for logging.
func (c *Controller) Send(ctx context.Context, conversationID, userID, text, lang string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if lang == "" {
		lang = c.defaultLang
	}
	if lang == "" {
		lang = DetectLanguage(text)
	}

	c.mu.Lock()
	conv, ok := c.conversations[conversationID]
	if !ok {
		conv = &conversationState{}
		c.conversations[conversationID] = conv
	}
	if conv.sending {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	conv.sending = true
	conv.messages = append(conv.messages, newMessage(RoleUser, text))
	c.mu.Unlock()

	result, err := c.dispatch(ctx, conversationID, userID, text)

	var assistant Message
	if err != nil {
		c.logger.Error("send failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		assistant = newMessage(RoleAssistant, failureNotice(lang, err))
	} else {
		assistant = newMessage(RoleAssistant, assistantContent(result))
	}

	c.mu.Lock()
	conv.messages = append(conv.messages, assistant)
	conv.sending = false
	c.mu.Unlock()

	exchange := &Exchange{
		ConversationID: conversationID,
		Assistant:      assistant,
	}
	if err != nil {
		return exchange, err
	}

	exchange.Entity = result.Entity
	exchange.Metadata = result.Metadata
	return exchange, nil
}

func (c *Controller) dispatch(ctx context.Context, conversationID, userID, text string) (*ingest.Result, error) {
	sessionID, err := c.sessions.Resolve(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	stream, err := c.client.Run(ctx, &adk.RunRequest{
		UserID:     userID,
		SessionID:  sessionID,
		NewMessage: adk.NewUserMessage(text),
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return ingest.Ingest(ctx, stream, c.logger)
}

// Messages returns the ordered message list for a conversation and whether a
// send is in flight. ok is false for an unknown conversation.
func (c *Controller) Messages(conversationID string) (messages []Message, typing bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.conversations[conversationID]
	if !ok {
		return nil, false, false
	}

	out := make([]Message, len(conv.messages))
	copy(out, conv.messages)
	return out, conv.sending, true
}

// Drop discards a conversation and its stored session mapping.
func (c *Controller) Drop(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	delete(c.conversations, conversationID)
	c.mu.Unlock()

	return c.sessions.Forget(ctx, conversationID)
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// assistantContent is the reply text plus a human-readable suffix when an
// entity suggestion with records was produced.
func assistantContent(result *ingest.Result) string {
	content := result.ResponseText
	if result.Entity != nil && result.Entity.Records != nil {
		content += fmt.Sprintf("\n\n[Created Entity in %s]", result.Entity.EntityName)
	}
	return content
}

func failureNotice(lang string, err error) string {
	if lang == "he" {
		return fmt.Sprintf("מצטער, הייתה שגיאה בחיבור לסוכן. אנא נסה שוב.\n\n(%v)", err)
	}
	return fmt.Sprintf("Sorry, there was an error reaching the assistant. Please try again.\n\n(%v)", err)
}

// DetectLanguage picks he when the text contains Hebrew codepoints, en
// otherwise.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 0x0590 && r <= 0x05FF {
			return "he"
		}
	}
	return "en"
}
