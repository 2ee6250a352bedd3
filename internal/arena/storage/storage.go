// Package storage defines the persistence contracts for the durable event
// log and the snapshot store. The log is the single source of truth; every
// other view of session history is derived from it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// EventStore persists the append-only session journal. Appends for a given
// session are serialized by the implementation so sequence numbers stay
// gapless; reads may run concurrently with writes and observe a consistent
// prefix.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with sequence
	// and hash set.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns events with sequence greater than afterSeq, ordered
	// by sequence ascending, up to limit.
	ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error)
	// GetEventBySeq retrieves a specific event by sequence number.
	GetEventBySeq(ctx context.Context, sessionID string, seq uint64) (event.Event, error)
	// GetLatestSeq returns the latest sequence number for a session, 0 when
	// no events exist.
	GetLatestSeq(ctx context.Context, sessionID string) (uint64, error)
}

// Snapshot is a complete, independently loadable serialization of session
// state at a given sequence number.
type Snapshot struct {
	SessionID string
	Seq       uint64
	TakenAt   time.Time
	State     []byte
}

// SnapshotStore persists checkpoints. Superseded snapshots may be pruned,
// but the journal must remain intact back to the oldest retained snapshot.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	GetLatestSnapshot(ctx context.Context, sessionID string) (Snapshot, error)
	PruneSnapshotsBefore(ctx context.Context, sessionID string, seq uint64) error
}

// Store combines the event journal and snapshot persistence.
type Store interface {
	EventStore
	SnapshotStore
}
