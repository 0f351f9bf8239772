package storage

// Store is the durable local key/value port shared by the chat store and
// the analytics tracker. All operations are synchronous and string-valued.
// Implementations log and swallow their own I/O failures: a failed read is
// reported as an absent key, a failed write is dropped. Callers never see
// storage errors.
//
// A Store has a single owner. Two processes pointed at the same backing
// file race with last-write-wins semantics; that is accepted, not solved.
type Store interface {
	// Get returns the value for key, or false when absent.
	Get(key string) (string, bool)
	// Set writes or overwrites key.
	Set(key, value string)
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string)
	// Keys returns every stored key beginning with prefix.
	Keys(prefix string) []string
}
