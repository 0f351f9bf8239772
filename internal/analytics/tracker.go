package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"SiteBeacon/internal/clock"
)

// Initialization states for the one-shot bootstrap guard. The guard lives
// here, outside any caller's render cycle, so re-entrant mounts cannot
// run the bootstrap twice.
type trackerState int

const (
	stateUninitialized trackerState = iota
	stateInitializing
	stateActive
)

// PageInfo describes the route being entered.
type PageInfo struct {
	Path     string
	Title    string
	Referrer string
	Query    map[string]string
}

// pageView is the tracker's local bookkeeping for the open page view. The
// remote id is held only in memory; it does not survive a restart.
type pageView struct {
	remoteID  string
	path      string
	enteredAt time.Time
}

// Tracker maintains the browsing session and emits page-view telemetry.
// Every remote failure is logged and swallowed: telemetry never blocks
// navigation and never surfaces to the user.
type Tracker struct {
	sessions *SessionManager
	beacon   *BeaconClient
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	state   trackerState
	session Session
	current *pageView
}

// NewTracker wires the tracker to its collaborators.
func NewTracker(sessions *SessionManager, beacon *BeaconClient, clk clock.Clock, logger *slog.Logger) *Tracker {
	return &Tracker{sessions: sessions, beacon: beacon, clock: clk, logger: logger}
}

// Init performs the first-time bootstrap exactly once: load or create the
// session, renew its expiry, upsert the session row with the entry page,
// and open the initial page view. Repeat calls are no-ops.
func (t *Tracker) Init(ctx context.Context, page PageInfo) {
	t.mu.Lock()
	if t.state != stateUninitialized {
		t.mu.Unlock()
		return
	}
	t.state = stateInitializing
	t.mu.Unlock()

	sess := t.sessions.Load()
	sess.ExpiresAt = t.sessions.Touch()

	t.mu.Lock()
	t.session = sess
	t.state = stateActive
	t.mu.Unlock()

	payload := map[string]any{
		"session_id":   sess.ID,
		"is_returning": sess.IsReturning,
		"entry_page":   page.Path,
	}
	// A failed session upsert must not stop the page view from opening.
	if _, err := t.beacon.Insert(ctx, TableSessions, payload); err != nil {
		t.logger.Warn("session upsert failed", "session_id", sess.ID, "error", err)
	}

	t.openPageView(ctx, page)
}

// PageEnter records a navigation: it closes the previously open page view
// with its time on page, renews the session expiry, and opens a page view
// for the new route. Before Init it behaves as Init.
func (t *Tracker) PageEnter(ctx context.Context, page PageInfo) {
	t.mu.Lock()
	if t.state != stateActive {
		t.mu.Unlock()
		t.Init(ctx, page)
		return
	}
	prev := t.current
	t.current = nil
	t.mu.Unlock()

	if prev != nil {
		payload := map[string]any{
			"time_on_page_seconds": t.secondsSince(prev.enteredAt),
			"exit_page":            false,
		}
		if err := t.beacon.Patch(ctx, TablePageViews, prev.remoteID, payload); err != nil {
			t.logger.Warn("page view close failed", "path", prev.path, "error", err)
		}
	}

	t.sessions.Touch()
	t.openPageView(ctx, page)
}

// Unload closes the open page view from a teardown path. Delivery is
// fire-and-forget; nothing waits on the response.
func (t *Tracker) Unload() {
	t.mu.Lock()
	pv := t.current
	t.current = nil
	t.mu.Unlock()

	if pv == nil {
		return
	}
	t.beacon.SendBeacon(TablePageViews, pv.remoteID, map[string]any{
		"time_on_page_seconds": t.secondsSince(pv.enteredAt),
		"exit_page":            true,
	})
}

// Session returns the active session. The zero Session before Init.
func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

func (t *Tracker) openPageView(ctx context.Context, page PageInfo) {
	entered := t.clock.Now()

	t.mu.Lock()
	sessionID := t.session.ID
	t.mu.Unlock()

	payload := map[string]any{
		"session_id": sessionID,
		"path":       page.Path,
		"title":      page.Title,
		"opened_at":  entered.Format(time.RFC3339),
	}
	if page.Referrer != "" {
		payload["referrer"] = page.Referrer
	}
	if len(page.Query) > 0 {
		payload["query_params"] = page.Query
	}

	id, err := t.beacon.Insert(ctx, TablePageViews, payload)
	if err != nil {
		// No resolved id means the eventual close is skipped rather than
		// patched onto a stale record.
		t.logger.Warn("page view create failed", "path", page.Path, "error", err)
		return
	}

	t.mu.Lock()
	t.current = &pageView{remoteID: id, path: page.Path, enteredAt: entered}
	t.mu.Unlock()
}

func (t *Tracker) secondsSince(start time.Time) int {
	secs := int(t.clock.Now().Sub(start).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs
}
