// Package memory provides an in-memory Store for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/storage"
)

// Store keeps journals and snapshots in process memory with the same
// semantics as the durable store: per-session serialized appends, gapless
// sequences, hash chaining.
type Store struct {
	mu        sync.Mutex
	events    map[string][]event.Event
	snapshots map[string][]storage.Snapshot
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:    make(map[string][]event.Event),
		snapshots: make(map[string][]storage.Snapshot),
	}
}

// AppendEvent atomically appends an event, assigning sequence and hash.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[evt.SessionID]
	evt.Seq = uint64(len(journal)) + 1
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	prevHash := ""
	if len(journal) > 0 {
		prevHash = journal[len(journal)-1].Hash
	}
	evt.PrevHash = prevHash

	hash, err := storage.EventHash(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt.Hash = hash

	s.events[evt.SessionID] = append(journal, evt)
	return evt, nil
}

// ListEvents returns events after afterSeq in ascending sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[sessionID]
	out := make([]event.Event, 0, limit)
	for _, evt := range journal {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetEventBySeq retrieves one event by sequence number.
func (s *Store) GetEventBySeq(ctx context.Context, sessionID string, seq uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, evt := range s.events[sessionID] {
		if evt.Seq == seq {
			return evt, nil
		}
	}
	return event.Event{}, storage.ErrNotFound
}

// GetLatestSeq returns the latest sequence, 0 when the journal is empty.
func (s *Store) GetLatestSeq(ctx context.Context, sessionID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.events[sessionID]
	if len(journal) == 0 {
		return 0, nil
	}
	return journal[len(journal)-1].Seq, nil
}

// SaveSnapshot persists a checkpoint.
func (s *Store) SaveSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stateCopy := append([]byte(nil), snap.State...)
	snap.State = stateCopy
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	s.snapshots[snap.SessionID] = append(s.snapshots[snap.SessionID], snap)
	return nil
}

// GetLatestSnapshot returns the snapshot with the highest sequence.
func (s *Store) GetLatestSnapshot(ctx context.Context, sessionID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.snapshots[sessionID]
	if len(snaps) == 0 {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.Seq > latest.Seq {
			latest = snap
		}
	}
	latest.State = append([]byte(nil), latest.State...)
	return latest, nil
}

// PruneSnapshotsBefore removes snapshots with sequence lower than seq.
func (s *Store) PruneSnapshotsBefore(ctx context.Context, sessionID string, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.snapshots[sessionID]
	kept := snaps[:0]
	for _, snap := range snaps {
		if snap.Seq >= seq {
			kept = append(kept, snap)
		}
	}
	s.snapshots[sessionID] = kept
	return nil
}
