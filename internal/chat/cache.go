package chat

import (
	"crypto/sha256"
	"fmt"

	"SiteBeacon/internal/completion"
)

// replyKey hashes the transcript so identical histories share one cached
// reply.
func replyKey(messages []completion.ChatMessage) string {
	h := sha256.New()
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte(msg.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
