// internal/storage/storage.go
package storage

// KV is durable key-value storage of UTF-8 strings.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	Close() error
}
