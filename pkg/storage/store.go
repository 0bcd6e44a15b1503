package storage

// Store defines the contract entity actors persist against. Values are
// opaque serialized blobs; implementations must offer durable, per-key
// linearizable semantics so that an actor's next turn observes its
// previous turn's writes.
type Store interface {
	// Save writes value under (actorID, key), replacing any prior value.
	Save(actorID, key string, value []byte) error

	// Retrieve returns the value under (actorID, key), or nil when absent.
	Retrieve(actorID, key string) ([]byte, error)

	// Delete removes the value under (actorID, key) and reports whether
	// a value was present.
	Delete(actorID, key string) (bool, error)

	// Utility
	Close() error
}
