// Package storage is the session scoped key-value layer the credential stores persist into.
package storage

import (
	"context"
	"time"
)

type KeyValueStore interface {
	// Get returns types.ErrNotFound if the key doesn't exist
	Get(ctx context.Context, key string) (string, error)
	// Set stores the value, ttl 0 means no expiry
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete doesn't fail on missing keys
	Delete(ctx context.Context, key string) error
	// Keys returns keys matching a glob pattern
	Keys(ctx context.Context, pattern string) ([]string, error)
}

const sessionPrefix = "session:"

// SessionKey scopes a fixed storage key to a session
func SessionKey(sessionID, name string) string {
	return sessionPrefix + sessionID + ":" + name
}

// SessionPattern matches the fixed key name across all sessions
func SessionPattern(name string) string {
	return sessionPrefix + "*:" + name
}

// SessionIDFromKey extracts the session id out of a key built by SessionKey
func SessionIDFromKey(key, name string) string {
	id := key
	if len(id) > len(sessionPrefix) {
		id = id[len(sessionPrefix):]
	}
	if suffix := ":" + name; len(id) > len(suffix) && id[len(id)-len(suffix):] == suffix {
		id = id[:len(id)-len(suffix)]
	}
	return id
}
