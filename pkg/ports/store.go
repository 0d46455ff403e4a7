package ports

import "context"

// KVStore is the persistence gateway consumed by the engine.
// Values are opaque strings; the caller owns serialization.
type KVStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// KeyLister is implemented by stores that can enumerate their keys.
// It backs operator tooling; the engine never lists.
type KeyLister interface {
	// List returns the keys starting with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
