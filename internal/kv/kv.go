// Package kv provides the durable storage medium for soltrack: a synchronous,
// string-keyed, string-valued store with single-key atomicity and nothing
// stronger. The profile store and catalog cache treat it the way the original
// browser build treated localStorage.
package kv

// Store is the durable medium. Get reports found=false for a missing key
// rather than an error; Delete on a missing key is a no-op.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}
