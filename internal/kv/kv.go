// Package kv provides the ephemeral key-value storage the session and
// mail-cache layers are built on: string values with per-key TTLs,
// membership sets for index tracking, and counters for rate limiting.
package kv

import "time"

// Store is the storage surface shared by the session store, the mail
// cache and the login rate limiter. All entries are ephemeral; a Get
// after a key's TTL has elapsed must miss even if the entry has not
// been swept yet.
type Store interface {
	// Set stores value under key with the given TTL. A zero TTL means
	// the entry does not expire.
	Set(key, value string, ttl time.Duration) error

	// Get returns the value for key. The second return is false when
	// the key is absent or expired; "expired" and "never existed" are
	// not distinguished.
	Get(key string) (string, bool, error)

	// Del removes the given keys. Missing keys are ignored.
	Del(keys ...string) error

	// SAdd adds members to the set stored under key, creating it if
	// needed. Adding to a set does not change its TTL.
	SAdd(key string, members ...string) error

	// SMembers returns all members of the set under key. An absent or
	// expired set yields an empty slice.
	SMembers(key string) ([]string, error)

	// SRem removes members from the set under key.
	SRem(key string, members ...string) error

	// Expire sets or refreshes the TTL of an existing key. It is a
	// no-op when the key is absent.
	Expire(key string, ttl time.Duration) error

	// Incr atomically increments the integer counter under key and
	// returns the new value. A missing counter starts at zero.
	Incr(key string) (int64, error)

	// Close releases any background resources held by the store.
	Close() error
}
