// Package chat keeps one conversation with the webhook: its messages, its
// session id and the flag that allows a single request in flight.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picochat/pkg/config"
	"github.com/sipeed/picochat/pkg/format"
	"github.com/sipeed/picochat/pkg/logger"
)

var (
	ErrEmptyInput = errors.New("chat: empty message")
	ErrBusy       = errors.New("chat: a message is already being sent")
)

// Sender delivers user text to the remote side and returns its reply.
type Sender interface {
	Send(ctx context.Context, text, sessionID string) (string, error)
}

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
	Doc       format.Document `json:"blocks,omitempty"`
	// Failed marks the generic reply shown when the webhook call fails.
	Failed bool `json:"failed,omitempty"`
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// Clock formats the timestamp the way the thread shows it.
func (m Message) Clock() string {
	return m.Timestamp.Format("15:04")
}

type Session struct {
	id             string
	sender         Sender
	failureMessage string
	now            func() time.Time

	mu       sync.RWMutex
	messages []Message
	lastUsed time.Time

	busy atomic.Bool
}

type Option func(*Session)

// WithID reuses an existing session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithFailureMessage(msg string) Option {
	return func(s *Session) {
		if strings.TrimSpace(msg) != "" {
			s.failureMessage = msg
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(sender Sender, opts ...Option) *Session {
	s := &Session{
		sender:         sender,
		failureMessage: config.DefaultFailureMessage,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.lastUsed = s.now()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// ShortID is the truncated id shown under the input box.
func (s *Session) ShortID() string {
	if len(s.id) <= 8 {
		return s.id
	}
	return s.id[:8] + "..."
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Messages returns a copy of the thread.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastReply returns the most recent bot message, if any.
func (s *Session) LastReply() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleBot {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

// LastUsed reports when the session last accepted or produced a message.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Begin records the user's message and marks the session busy. Every
// successful Begin must be followed by exactly one Complete.
func (s *Session) Begin(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyInput
	}
	if !s.busy.CompareAndSwap(false, true) {
		return Message{}, ErrBusy
	}

	msg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: s.now(),
	}
	s.append(msg)
	return msg, nil
}

// Complete sends a message accepted by Begin and records the reply. A failed
// call records the generic failure message instead. The busy flag is
// cleared on every path.
func (s *Session) Complete(ctx context.Context, user Message) Message {
	defer s.busy.Store(false)

	reply, err := s.sender.Send(ctx, user.Text, s.id)
	if err != nil {
		logger.ErrorCF("chat", "Error sending message", map[string]interface{}{
			"session": s.id,
			"error":   err.Error(),
		})
		msg := s.botMessage(s.failureMessage)
		msg.Failed = true
		s.append(msg)
		return msg
	}

	msg := s.botMessage(reply)
	s.append(msg)
	return msg
}

// Send is Begin followed by Complete.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	user, err := s.Begin(text)
	if err != nil {
		return Message{}, err
	}
	return s.Complete(ctx, user), nil
}

// Reset drops the thread. It fails while a message is in flight.
func (s *Session) Reset() error {
	if s.busy.Load() {
		return ErrBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.lastUsed = s.now()
	return nil
}

func (s *Session) botMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleBot,
		Text:      text,
		Timestamp: s.now(),
		Doc:       format.Format(text),
	}
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	s.lastUsed = m.Timestamp
}
