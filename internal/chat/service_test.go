package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SiteBeacon/internal/chatstore"
	"SiteBeacon/internal/clock"
	"SiteBeacon/internal/completion"
	"SiteBeacon/internal/storage"
)

type fakeCompleter struct {
	reply string
	err   error
	calls [][]completion.ChatMessage
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []completion.ChatMessage) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestService(completer Completer, cacheTTL time.Duration) (*Service, *chatstore.Store) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := chatstore.New(storage.NewMemoryStore(), clock.Real(), logger)
	return NewService(store, completer, logger, time.Second, cacheTTL), store
}

func TestSendMessageSuccess(t *testing.T) {
	completer := &fakeCompleter{reply: "hi there"}
	svc, store := newTestService(completer, 0)

	reply := svc.SendMessage(context.Background(), "hello")
	assert.Equal(t, chatstore.RoleAssistant, reply.Role)
	assert.Equal(t, "hi there", reply.Content)
	assert.False(t, svc.Loading())

	// The implicit chat holds both turns, in order, in memory and store.
	active := svc.ActiveChat()
	require.NotNil(t, active)
	inMemory := svc.Messages()
	stored := store.GetChatMessages(active.ID)
	require.Len(t, inMemory, 2)
	require.Len(t, stored, 2)
	for i := range stored {
		assert.Equal(t, stored[i].ID, inMemory[i].ID)
	}
	assert.Equal(t, chatstore.RoleUser, stored[0].Role)
	assert.Equal(t, chatstore.RoleAssistant, stored[1].Role)

	// The request carried role/content pairs only, user message included.
	require.Len(t, completer.calls, 1)
	require.Len(t, completer.calls[0], 1)
	assert.Equal(t, completion.ChatMessage{Role: "user", Content: "hello"}, completer.calls[0][0])
}

func TestSendMessageFailureAppendsApology(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("boom")}
	svc, store := newTestService(completer, 0)

	reply := svc.SendMessage(context.Background(), "hello")
	assert.Equal(t, ErrorReply, reply.Content)
	assert.Equal(t, chatstore.RoleAssistant, reply.Role)
	assert.False(t, svc.Loading())

	active := svc.ActiveChat()
	require.NotNil(t, active)
	stored := store.GetChatMessages(active.ID)
	require.Len(t, stored, 2)
	assert.Equal(t, ErrorReply, stored[1].Content)
	assert.Equal(t, ErrorReply, svc.Messages()[1].Content)
}

func TestTitleDerivation(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, store := newTestService(completer, 0)

	long := strings.Repeat("a", 40)
	svc.SendMessage(context.Background(), long)

	active := svc.ActiveChat()
	require.NotNil(t, active)
	want := strings.Repeat("a", 30) + "..."
	assert.Equal(t, want, active.Title)
	assert.Equal(t, want, store.GetChat(active.ID).Title)

	// A second message leaves the title alone.
	svc.SendMessage(context.Background(), "something else entirely, also quite long")
	assert.Equal(t, want, store.GetChat(active.ID).Title)
}

func TestTitleShortMessageKeptWhole(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, store := newTestService(completer, 0)

	svc.SendMessage(context.Background(), "short")
	active := svc.ActiveChat()
	require.NotNil(t, active)
	assert.Equal(t, "short", store.GetChat(active.ID).Title)
}

func TestResetChatLeavesPriorChat(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, store := newTestService(completer, 0)

	svc.SendMessage(context.Background(), "first conversation")
	prior := svc.ActiveChat()
	require.NotNil(t, prior)

	fresh := svc.ResetChat()
	assert.NotEqual(t, prior.ID, fresh.ID)
	assert.Empty(t, svc.Messages())

	// The prior chat and its messages are untouched.
	require.NotNil(t, store.GetChat(prior.ID))
	assert.Len(t, store.GetChatMessages(prior.ID), 2)
}

func TestSelectChat(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, _ := newTestService(completer, 0)

	svc.SendMessage(context.Background(), "conversation one")
	first := svc.ActiveChat()

	svc.ResetChat()
	svc.SendMessage(context.Background(), "conversation two")

	require.True(t, svc.SelectChat(first.ID))
	msgs := svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "conversation one", msgs[0].Content)

	assert.False(t, svc.SelectChat("missing"))
}

func TestOnChatCreated(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	svc, _ := newTestService(completer, 0)

	var created []chatstore.Chat
	svc.OnChatCreated(func(c chatstore.Chat) { created = append(created, c) })

	svc.SendMessage(context.Background(), "hello") // implicit creation
	svc.ResetChat()                                // explicit creation
	assert.Len(t, created, 2)
}

func TestReplyCache(t *testing.T) {
	completer := &fakeCompleter{reply: "cached answer"}
	svc, _ := newTestService(completer, time.Minute)

	svc.SendMessage(context.Background(), "same question")
	svc.ResetChat()
	reply := svc.SendMessage(context.Background(), "same question")

	assert.Equal(t, "cached answer", reply.Content)
	// The second identical history was served from cache.
	assert.Len(t, completer.calls, 1)
	// Both chats still carry the full exchange.
	assert.Len(t, svc.Messages(), 2)
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestFilterMessages(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &fakeClock{}
	store := chatstore.New(storage.NewMemoryStore(), clk, logger)
	svc := NewService(store, &fakeCompleter{reply: "ok"}, logger, time.Second, 0)

	day := func(d, hour int) time.Time {
		return time.Date(2025, 6, d, hour, 0, 0, 0, time.UTC)
	}

	clk.now = day(1, 9)
	chat := store.CreateChat()
	store.AddMessage(chat.ID, chatstore.RoleUser, "d1 user")
	clk.now = day(2, 10)
	store.AddMessage(chat.ID, chatstore.RoleAssistant, "d2 assistant")
	clk.now = day(2, 18)
	store.AddMessage(chat.ID, chatstore.RoleUser, "d2 evening user")
	clk.now = day(3, 8)
	store.AddMessage(chat.ID, chatstore.RoleUser, "d3 user")
	require.True(t, svc.SelectChat(chat.ID))

	from := day(2, 0)
	to := day(2, 0)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "no filter returns everything",
			filter: Filter{},
			want:   []string{"d1 user", "d2 assistant", "d2 evening user", "d3 user"},
		},
		{
			name:   "role only",
			filter: Filter{Role: chatstore.RoleAssistant},
			want:   []string{"d2 assistant"},
		},
		{
			name:   "from is inclusive",
			filter: Filter{From: &from},
			want:   []string{"d2 assistant", "d2 evening user", "d3 user"},
		},
		{
			name:   "to covers its whole day",
			filter: Filter{To: &to},
			want:   []string{"d1 user", "d2 assistant", "d2 evening user"},
		},
		{
			name:   "role and range combined",
			filter: Filter{Role: chatstore.RoleUser, From: &from, To: &to},
			want:   []string{"d2 evening user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.FilterMessages(tt.filter)
			contents := make([]string, len(got))
			for i, m := range got {
				contents[i] = m.Content
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}
