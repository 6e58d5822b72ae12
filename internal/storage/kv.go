// Package storage persists users, sessions, bookmarks and apps as four whole
// JSON collections over a pluggable key-value store.
package storage

import (
	"context"
	"errors"
)

// Namespace keys. Each holds one whole JSON document.
const (
	KeyUser      = "spark_user"
	KeySessions  = "spark_sessions"
	KeyBookmarks = "spark_bookmarks_data"
	KeyApps      = "spark_apps"
)

// Namespaces lists every collection key
var Namespaces = []string{KeyUser, KeySessions, KeyBookmarks, KeyApps}

var (
	// ErrNotFound is returned when a key or record does not exist
	ErrNotFound = errors.New("not found")
	// ErrLoginRequired is returned by mutations that need a signed-in user
	ErrLoginRequired = errors.New("login required")
)

// KVStore is a flat byte store. Get returns ErrNotFound for absent keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watcher is implemented by stores that can report writes made by other
// processes. Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, onChange func(key string)) error
}
