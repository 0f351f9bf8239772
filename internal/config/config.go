package config

import "time"

const (
	// DefaultIdleTimeout is how long a browsing session survives without a
	// tracked navigation before a new one is started.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultCompletionTimeout bounds a single completion request.
	DefaultCompletionTimeout = 60 * time.Second
)

// Config holds application configuration
type Config struct {
	BeaconURL     string // analytics table-store endpoint
	CompletionURL string // AI completion endpoint
	StoragePath   string // SQLite file backing the local key/value store
	Debug         bool

	IdleTimeout       time.Duration
	CompletionTimeout time.Duration
	ReplyCacheTTL     time.Duration // 0 disables the completion reply cache
}
