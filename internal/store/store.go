// Package store defines the persistence contracts the dispatcher runs on:
// a connection registry and a versioned tournament store. Tournament puts
// are compare-and-swap so concurrent workers can serialize through the
// store instead of sharing memory.
package store

import (
	"context"
	"errors"
	"time"

	"thirteen/internal/tourney"
)

// ConnectionTTL is the default lifetime of a connection record without a
// reconnect; the dispatcher can be configured with a different one.
const ConnectionTTL = 2 * time.Hour

var (
	// ErrNotFound is returned when a key does not exist (or has expired).
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned by a tournament put whose expected
	// version no longer matches the stored one.
	ErrVersionConflict = errors.New("store: version conflict")
)

// Connection is a connected client's registry record.
type Connection struct {
	ConnectionID string `json:"connectionId"`
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	ConnectedAt  int64  `json:"connectedAt"`
	LastPing     int64  `json:"lastPing"`
	TTL          int64  `json:"ttl"` // unix seconds after which the record expires
}

// ConnectionStore persists connection records keyed by connection id.
// Expired records are invisible to reads and reaped lazily.
type ConnectionStore interface {
	Put(ctx context.Context, conn Connection) error
	Get(ctx context.Context, connectionID string) (Connection, error)
	Delete(ctx context.Context, connectionID string) error
	Touch(ctx context.Context, connectionID string, lastPing int64) error
	List(ctx context.Context) ([]Connection, error)
}

// TourneyStore persists tournament snapshots keyed by tournament id with
// optimistic concurrency. Get returns the snapshot and its version; Put
// succeeds only when expectedVersion matches the stored version (0 for a
// fresh insert) and returns the new version.
type TourneyStore interface {
	Get(ctx context.Context, tourneyID string) (*tourney.Tourney, int64, error)
	Put(ctx context.Context, t *tourney.Tourney, expectedVersion int64) (int64, error)
}
