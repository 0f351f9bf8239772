package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"SiteBeacon/internal/chatstore"
	"SiteBeacon/internal/completion"
	"SiteBeacon/internal/config"

	gocache "github.com/patrickmn/go-cache"
)

// ErrorReply is appended to the transcript in place of an assistant reply
// when the completion request fails, so the failure is visible in the
// conversation rather than silent.
const ErrorReply = "Sorry, I ran into a problem answering that. Please try again in a moment."

const titleLimit = 30

// Completer is the external completion collaborator. *completion.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []completion.ChatMessage) (string, error)
}

// Service bridges send-message intents to the chat store and the
// completion collaborator. The in-memory transcript it exposes and the
// durable store never diverge once SendMessage settles: every append to
// one is paired with an append to the other, in the same order.
type Service struct {
	store     *chatstore.Store
	completer Completer
	logger    *slog.Logger
	timeout   time.Duration
	replies   *gocache.Cache // nil when reply caching is disabled

	mu            sync.Mutex
	active        *chatstore.Chat
	messages      []chatstore.Message
	loading       bool
	onChatCreated func(chatstore.Chat)
}

// NewService creates the orchestration service. cacheTTL of zero disables
// the reply cache.
func NewService(store *chatstore.Store, completer Completer, logger *slog.Logger, timeout, cacheTTL time.Duration) *Service {
	if timeout <= 0 {
		timeout = config.DefaultCompletionTimeout
	}
	s := &Service{
		store:     store,
		completer: completer,
		logger:    logger,
		timeout:   timeout,
	}
	if cacheTTL > 0 {
		s.replies = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

// OnChatCreated registers a callback invoked whenever the service creates
// a chat, explicitly or implicitly.
func (s *Service) OnChatCreated(fn func(chatstore.Chat)) {
	s.mu.Lock()
	s.onChatCreated = fn
	s.mu.Unlock()
}

// SendMessage appends the user's message, requests a completion for the
// full history, and appends the reply. On failure the reply is ErrorReply.
// The loading flag is cleared on every path out.
func (s *Service) SendMessage(ctx context.Context, content string) chatstore.Message {
	s.mu.Lock()
	noActive := s.active == nil
	s.mu.Unlock()
	if noActive {
		s.ResetChat()
	}

	s.mu.Lock()
	chatID := s.active.ID
	firstMessage := len(s.messages) == 0
	userMsg := s.store.AddMessage(chatID, chatstore.RoleUser, content)
	s.messages = append(s.messages, userMsg)
	s.loading = true
	history := make([]completion.ChatMessage, len(s.messages))
	for i, m := range s.messages {
		history[i] = completion.ChatMessage{Role: m.Role, Content: m.Content}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	if firstMessage {
		if updated := s.store.UpdateChatTitle(chatID, deriveTitle(content)); updated != nil {
			s.refreshActive(updated)
		}
	}

	reply, err := s.complete(ctx, history)
	if err != nil {
		s.logger.Error("completion request failed", "chat_id", chatID, "error", err)
		reply = ErrorReply
	}

	asst := s.store.AddMessage(chatID, chatstore.RoleAssistant, reply)
	s.mu.Lock()
	if s.active != nil && s.active.ID == chatID {
		s.messages = append(s.messages, asst)
	}
	s.mu.Unlock()
	if refreshed := s.store.GetChat(chatID); refreshed != nil {
		s.refreshActive(refreshed)
	}
	return asst
}

// ResetChat starts a fresh chat and switches to it. The prior chat stays
// in the store untouched.
func (s *Service) ResetChat() chatstore.Chat {
	chat := s.store.CreateChat()
	s.mu.Lock()
	s.active = &chat
	s.messages = nil
	cb := s.onChatCreated
	s.mu.Unlock()
	if cb != nil {
		cb(chat)
	}
	return chat
}

// SelectChat loads the chat's message log into the in-memory transcript,
// replacing whatever was shown before. The store is not mutated. Returns
// false when the chat does not exist.
func (s *Service) SelectChat(id string) bool {
	chat := s.store.GetChat(id)
	if chat == nil {
		return false
	}
	messages := s.store.GetChatMessages(id)
	s.mu.Lock()
	s.active = chat
	s.messages = messages
	s.mu.Unlock()
	return true
}

// ActiveChat returns a copy of the currently selected chat, or nil.
func (s *Service) ActiveChat() *chatstore.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	chat := *s.active
	return &chat
}

// Messages returns a copy of the in-memory transcript.
func (s *Service) Messages() []chatstore.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chatstore.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Loading reports whether a completion request is in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Filter selects messages from the in-memory transcript. An empty Role
// matches every role. From is inclusive; To is inclusive through the end
// of its calendar day.
type Filter struct {
	Role string
	From *time.Time
	To   *time.Time
}

// FilterMessages is a pure projection over the transcript; it never
// mutates service state.
func (s *Service) FilterMessages(f Filter) []chatstore.Message {
	msgs := s.Messages()
	var until time.Time
	if f.To != nil {
		until = f.To.AddDate(0, 0, 1)
	}
	out := make([]chatstore.Message, 0, len(msgs))
	for _, m := range msgs {
		if f.Role != "" && m.Role != f.Role {
			continue
		}
		if f.From != nil && m.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !m.Timestamp.Before(until) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Service) refreshActive(chat *chatstore.Chat) {
	s.mu.Lock()
	if s.active != nil && s.active.ID == chat.ID {
		c := *chat
		s.active = &c
	}
	s.mu.Unlock()
}

func (s *Service) complete(ctx context.Context, history []completion.ChatMessage) (string, error) {
	key := replyKey(history)
	if s.replies != nil {
		if cached, ok := s.replies.Get(key); ok {
			s.logger.Info("reply cache hit", "key", key[:16])
			return cached.(string), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.completer.Complete(ctx, history)
	if err != nil {
		return "", err
	}

	if s.replies != nil {
		s.replies.Set(key, reply, gocache.DefaultExpiration)
	}
	return reply, nil
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + "..."
}
