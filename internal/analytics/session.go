package analytics

import (
	"log/slog"
	"time"

	"SiteBeacon/internal/clock"
	"SiteBeacon/internal/config"
	"SiteBeacon/internal/ident"
	"SiteBeacon/internal/storage"
)

// Well-known storage keys for session bookkeeping.
const (
	keySessionID     = "sessionId"
	keySessionExpiry = "sessionExpiry"
	keyHasVisited    = "hasVisitedBefore"
)

// Session is one bounded window of browsing activity. It expires by idle
// time only; nothing deletes it explicitly.
type Session struct {
	ID          string
	ExpiresAt   time.Time
	IsReturning bool
}

// SessionManager owns the per-browser session id. At most one live
// session exists at a time; an expired one is replaced, but the
// historical has-visited flag survives replacement.
type SessionManager struct {
	kv          storage.Store
	clock       clock.Clock
	logger      *slog.Logger
	idleTimeout time.Duration
}

// NewSessionManager creates a session manager over kv. idleTimeout of
// zero means the 30 minute default.
func NewSessionManager(kv storage.Store, clk clock.Clock, logger *slog.Logger, idleTimeout time.Duration) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = config.DefaultIdleTimeout
	}
	return &SessionManager{kv: kv, clock: clk, logger: logger, idleTimeout: idleTimeout}
}

// Load returns the current session, creating a fresh one when none is
// stored or the stored one has idled out. IsReturning reflects the
// has-visited flag as it stood before this load.
func (m *SessionManager) Load() Session {
	now := m.clock.Now()
	visited := m.visitedBefore()

	id, ok := m.kv.Get(keySessionID)
	expiry := m.storedExpiry()
	if ok && id != "" && now.Before(expiry) {
		return Session{ID: id, ExpiresAt: expiry, IsReturning: visited}
	}

	id = ident.NewSessionID()
	expiresAt := now.Add(m.idleTimeout)
	m.kv.Set(keySessionID, id)
	m.kv.Set(keySessionExpiry, expiresAt.Format(time.RFC3339))
	m.kv.Set(keyHasVisited, "true")
	m.logger.Info("created session", "session_id", id, "is_returning", visited)
	return Session{ID: id, ExpiresAt: expiresAt, IsReturning: visited}
}

// Touch pushes the current session's expiry forward by the idle timeout.
func (m *SessionManager) Touch() time.Time {
	expiresAt := m.clock.Now().Add(m.idleTimeout)
	m.kv.Set(keySessionExpiry, expiresAt.Format(time.RFC3339))
	return expiresAt
}

func (m *SessionManager) visitedBefore() bool {
	v, _ := m.kv.Get(keyHasVisited)
	return v == "true"
}

func (m *SessionManager) storedExpiry() time.Time {
	raw, ok := m.kv.Get(keySessionExpiry)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		m.logger.Warn("malformed session expiry, treating as expired", "value", raw, "error", err)
		return time.Time{}
	}
	return t
}
