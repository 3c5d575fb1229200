package usecase

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
)

// DefaultContextDepth is the number of prior messages sent as context
// with each request when continuous-context mode is on.
const DefaultContextDepth = 10

// ConversationConfig controls context-window behavior for sends.
type ConversationConfig struct {
	// ContextDepth is the maximum number of prior messages included as
	// context. Zero means DefaultContextDepth.
	ContextDepth int
	// ContinuousContext toggles sending prior messages at all.
	ContinuousContext bool
}

// Conversation is the single source of truth for conversation state.
// All mutations go through its methods and are applied as whole groups
// under one lock, so observers always see a consistent snapshot.
type Conversation struct {
	mu        sync.Mutex
	snap      entities.ConversationSnapshot
	responder repositories.Responder
	config    ConversationConfig
	logger    *zap.Logger

	// onChange is invoked, still under the store lock, after every
	// mutation. It must not block and must not call back into the store.
	onChange func(entities.ConversationSnapshot)
}

// NewConversation creates an empty conversation store backed by the
// given responder.
func NewConversation(responder repositories.Responder, config ConversationConfig, logger *zap.Logger) *Conversation {
	if config.ContextDepth <= 0 {
		config.ContextDepth = DefaultContextDepth
	}
	return &Conversation{
		responder: responder,
		config:    config,
		logger:    logger,
	}
}

// SetOnChange registers the single change observer. The orchestrator
// installs a non-blocking queue push here.
func (c *Conversation) SetOnChange(fn func(entities.ConversationSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns a consistent copy of the current state.
func (c *Conversation) Snapshot() entities.ConversationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Conversation) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.snap)
	}
}

// appendLocked replaces the message slice copy-on-write so previously
// returned snapshots stay immutable.
func (c *Conversation) appendLocked(msg entities.Message) {
	messages := make([]entities.Message, len(c.snap.Messages), len(c.snap.Messages)+1)
	copy(messages, c.snap.Messages)
	c.snap.Messages = append(messages, msg)
}

// Submit appends the user message and dispatches it to the responder
// asynchronously. Blank input is ignored, as is any submit while a send
// is already in flight.
func (c *Conversation) Submit(ctx context.Context, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	c.mu.Lock()
	if c.snap.IsLoading {
		c.mu.Unlock()
		c.logger.Debug("Rejecting submit while a send is in flight")
		return
	}

	// Context window is captured before the new message is appended, so
	// it never includes the utterance being sent.
	var window []entities.Message
	if c.config.ContinuousContext {
		window = c.snap.ContextWindow(c.config.ContextDepth)
	}

	c.appendLocked(entities.NewMessage(trimmed, entities.OriginatorUser))
	c.snap.PendingInput = ""
	c.snap.IsLoading = true
	c.snap.LastError = nil
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Info("Dispatching message",
		zap.Int("contextSize", len(window)))

	go func() {
		response, err := c.responder.Send(ctx, trimmed, window)
		c.resolveSend(response, err)
	}()
}

// resolveSend applies the outcome of an in-flight send as one atomic
// mutation group.
func (c *Conversation) resolveSend(response string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Send failed", zap.Error(err))
		detail := err.Error()
		c.appendLocked(entities.NewErrorMessage("Sorry, I encountered an error: " + detail))
		c.snap.IsLoading = false
		c.snap.LastError = &detail
		c.notifyLocked()
		return
	}

	c.appendLocked(entities.NewMessage(response, entities.OriginatorAssistant))
	c.snap.IsLoading = false
	c.snap.LastError = nil
	c.notifyLocked()
}

// SetListening updates the listening flag. Leaving the listening state
// also clears partial speech text and the user-speaking flag.
func (c *Conversation) SetListening(listening bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.IsListening = listening
	if !listening {
		c.snap.PartialSpeechText = ""
		c.snap.IsUserSpeaking = false
	}
	c.notifyLocked()
}

// SetUserSpeaking updates the user-speaking flag.
func (c *Conversation) SetUserSpeaking(speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.IsUserSpeaking = speaking
	c.notifyLocked()
}

// SetPartialSpeechText records an interim transcript.
func (c *Conversation) SetPartialSpeechText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.PartialSpeechText = text
	c.notifyLocked()
}

// SetError records a session-level error. The error is sticky until
// cleared or until the next successful send.
func (c *Conversation) SetError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.LastError = &message
	c.notifyLocked()
}

// ClearError removes the current error, if any.
func (c *Conversation) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.LastError = nil
	c.notifyLocked()
}

// UpdateInput replaces the pending typed input.
func (c *Conversation) UpdateInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.PendingInput = text
	c.notifyLocked()
}

// ClearHistory drops all messages. Other fields are untouched.
func (c *Conversation) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Messages = nil
	c.notifyLocked()
}

// ExportMarkdown renders the full history as a Markdown document.
// Embedded newlines become Markdown hard breaks.
func (c *Conversation) ExportMarkdown() string {
	c.mu.Lock()
	messages := c.snap.Messages
	c.mu.Unlock()

	var b strings.Builder
	b.WriteString("# Chat History\n\n")
	for _, msg := range messages {
		sender := "Assistant"
		if msg.Originator == entities.OriginatorUser {
			sender = "You"
		}
		b.WriteString("**" + sender + "**: ")
		b.WriteString(strings.ReplaceAll(msg.Content, "\n", "  \n"))
		b.WriteString("\n\n")
	}
	return b.String()
}
