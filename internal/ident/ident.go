package ident

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// NewID returns a timestamp-derived identifier for chats and messages.
// The leading unix-millisecond component makes ids comparable by recency;
// the random suffix keeps two records created in the same millisecond
// distinct.
func NewID() string {
	return fmt.Sprintf("%d_%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// NewSessionID returns a random identifier for a browsing session.
func NewSessionID() string {
	return uuid.NewString()
}
