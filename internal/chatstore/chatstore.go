package chatstore

import (
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"SiteBeacon/internal/clock"
	"SiteBeacon/internal/ident"
	"SiteBeacon/internal/storage"
)

// Status tags a chat in the drawer. The zero value means untagged.
type Status string

const (
	StatusNone     Status = ""
	StatusStarred  Status = "starred"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	chatKeyPrefix    = "chat:"
	messageKeyPrefix = "chat_messages:"

	// DefaultTitle is the title of a chat before its first message names it.
	DefaultTitle = "New Chat"

	previewLimit = 100
)

// Chat is one named thread of messages.
type Chat struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"lastUpdated"`
	Preview     string    `json:"preview,omitempty"`
	Status      Status    `json:"status,omitempty"`
}

// Message is a single chat message. Messages are never mutated after
// creation and never deleted individually.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store provides chat and message persistence over the local key/value
// store. It has no network dependency; every operation is synchronous.
type Store struct {
	kv     storage.Store
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a chat store over kv.
func New(kv storage.Store, clk clock.Clock, logger *slog.Logger) *Store {
	return &Store{kv: kv, clock: clk, logger: logger}
}

// CreateChat generates and persists a new chat with the default title.
func (s *Store) CreateChat() Chat {
	chat := Chat{
		ID:          ident.NewID(),
		Title:       DefaultTitle,
		LastUpdated: s.clock.Now(),
	}
	s.SaveChat(chat)
	s.logger.Info("created chat", "chat_id", chat.ID)
	return chat
}

// GetChats returns every stored chat, most recently updated first.
// Malformed records are logged and skipped.
func (s *Store) GetChats() []Chat {
	keys := s.kv.Keys(chatKeyPrefix)
	chats := make([]Chat, 0, len(keys))
	for _, key := range keys {
		raw, ok := s.kv.Get(key)
		if !ok {
			continue
		}
		var chat Chat
		if err := json.Unmarshal([]byte(raw), &chat); err != nil {
			s.logger.Warn("skipping malformed chat record", "key", key, "error", err)
			continue
		}
		chats = append(chats, chat)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastUpdated.After(chats[j].LastUpdated)
	})
	return chats
}

// GetChat returns the chat with the given id, or nil when absent or
// unreadable.
func (s *Store) GetChat(id string) *Chat {
	raw, ok := s.kv.Get(chatKeyPrefix + id)
	if !ok {
		return nil
	}
	var chat Chat
	if err := json.Unmarshal([]byte(raw), &chat); err != nil {
		s.logger.Warn("malformed chat record", "chat_id", id, "error", err)
		return nil
	}
	return &chat
}

// SaveChat persists chat as a whole-record overwrite.
func (s *Store) SaveChat(chat Chat) {
	raw, err := json.Marshal(chat)
	if err != nil {
		s.logger.Warn("failed to encode chat", "chat_id", chat.ID, "error", err)
		return
	}
	s.kv.Set(chatKeyPrefix+chat.ID, string(raw))
}

// UpdateChatTitle sets the chat's title and refreshes lastUpdated.
// Returns nil without side effects when the chat is absent.
func (s *Store) UpdateChatTitle(id, title string) *Chat {
	chat := s.GetChat(id)
	if chat == nil {
		return nil
	}
	chat.Title = title
	chat.LastUpdated = s.clock.Now()
	s.SaveChat(*chat)
	return chat
}

// UpdateChatStatus sets the chat's status and refreshes lastUpdated.
// Returns nil without side effects when the chat is absent.
func (s *Store) UpdateChatStatus(id string, status Status) *Chat {
	chat := s.GetChat(id)
	if chat == nil {
		return nil
	}
	chat.Status = status
	chat.LastUpdated = s.clock.Now()
	s.SaveChat(*chat)
	return chat
}

// DeleteChat removes the chat record and its message log. Deleting an
// absent chat is not an error, so it always reports success.
func (s *Store) DeleteChat(id string) bool {
	s.kv.Delete(chatKeyPrefix + id)
	s.kv.Delete(messageKeyPrefix + id)
	return true
}

// GetChatMessages returns the chat's messages in append order. An absent
// or malformed log comes back as an empty slice.
func (s *Store) GetChatMessages(chatID string) []Message {
	raw, ok := s.kv.Get(messageKeyPrefix + chatID)
	if !ok {
		return []Message{}
	}
	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		s.logger.Warn("malformed message log", "chat_id", chatID, "error", err)
		return []Message{}
	}
	return messages
}

// AddMessage appends a message to the chat's log and refreshes the owning
// chat's preview and lastUpdated. The cross-record update is part of the
// operation's contract, not an optimization.
func (s *Store) AddMessage(chatID, role, content string) Message {
	msg := Message{
		ID:        ident.NewID(),
		Role:      role,
		Content:   content,
		Timestamp: s.clock.Now(),
	}

	messages := append(s.GetChatMessages(chatID), msg)
	raw, err := json.Marshal(messages)
	if err != nil {
		s.logger.Warn("failed to encode message log", "chat_id", chatID, "error", err)
		return msg
	}
	s.kv.Set(messageKeyPrefix+chatID, string(raw))

	if chat := s.GetChat(chatID); chat != nil {
		chat.Preview = truncate(content, previewLimit)
		chat.LastUpdated = msg.Timestamp
		s.SaveChat(*chat)
	}
	return msg
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
