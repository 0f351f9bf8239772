package analytics

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SiteBeacon/internal/storage"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSessions() (*SessionManager, *storage.MemoryStore, *fakeClock) {
	kv := storage.NewMemoryStore()
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewSessionManager(kv, clk, discardLogger(), 30*time.Minute), kv, clk
}

func TestFirstVisitCreatesSession(t *testing.T) {
	m, kv, clk := newTestSessions()

	sess := m.Load()
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.IsReturning)
	assert.Equal(t, clk.Now().Add(30*time.Minute), sess.ExpiresAt)

	// The historical flag flips on immediately after first creation.
	visited, _ := kv.Get("hasVisitedBefore")
	assert.Equal(t, "true", visited)
}

func TestUnexpiredSessionReused(t *testing.T) {
	m, _, clk := newTestSessions()

	first := m.Load()
	clk.Advance(10 * time.Minute)

	second := m.Load()
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsReturning)
}

func TestExpiredSessionReplaced(t *testing.T) {
	m, _, clk := newTestSessions()

	first := m.Load()
	clk.Advance(31 * time.Minute)

	second := m.Load()
	assert.NotEqual(t, first.ID, second.ID)
	// Expiry replaces the session but not the visit history.
	assert.True(t, second.IsReturning)
}

func TestTouchExtendsExpiry(t *testing.T) {
	m, kv, clk := newTestSessions()

	first := m.Load()
	clk.Advance(29 * time.Minute)
	m.Touch()

	// Without the touch this load would have missed the window.
	clk.Advance(20 * time.Minute)
	second := m.Load()
	assert.Equal(t, first.ID, second.ID)

	raw, ok := kv.Get("sessionExpiry")
	require.True(t, ok)
	expiry, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	assert.True(t, expiry.After(clk.Now()))
}

func TestMalformedExpiryTreatedAsExpired(t *testing.T) {
	m, kv, _ := newTestSessions()

	first := m.Load()
	kv.Set("sessionExpiry", "not a timestamp")

	second := m.Load()
	assert.NotEqual(t, first.ID, second.ID)
}
