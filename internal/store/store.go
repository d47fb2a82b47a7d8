// Package store is the persistence contract the session core needs:
// fetch a player document by key and upsert it back. Writes are
// fire-and-forget from the caller's point of view; failures are logged,
// never surfaced to the connection.
package store

import (
	"context"
	"errors"

	"github.com/woslots/WO/internal/player"
)

// ErrNotFound is returned by Fetch when no document matches.
var ErrNotFound = errors.New("store: player not found")

// PlayerStore is implemented by the postgres store and by the in-memory
// store used in tests and database-less dev runs.
type PlayerStore interface {
	// Fetch loads the document for a display name.
	Fetch(ctx context.Context, dname string) (*player.Snapshot, error)

	// Upsert writes the document keyed by its id, creating it if absent.
	Upsert(ctx context.Context, snap *player.Snapshot) error

	// Exists reports whether a document already claims the display name
	// or email.
	Exists(ctx context.Context, dname, email string) (bool, error)
}
