package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/storage"
)

// SaveSnapshot persists a checkpoint, replacing any snapshot at the same
// sequence.
func (s *Store) SaveSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (session_id, seq, taken_at, state) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, seq) DO UPDATE SET taken_at = excluded.taken_at, state = excluded.state`,
		snap.SessionID,
		int64(snap.Seq),
		snap.TakenAt.UnixMilli(),
		snap.State,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the snapshot with the highest sequence.
func (s *Store) GetLatestSnapshot(ctx context.Context, sessionID string) (storage.Snapshot, error) {
	var snap storage.Snapshot
	var seq, takenAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, seq, taken_at, state FROM snapshots WHERE session_id = ? ORDER BY seq DESC LIMIT 1`,
		sessionID,
	).Scan(&snap.SessionID, &seq, &takenAt, &snap.State)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.Seq = uint64(seq)
	snap.TakenAt = time.UnixMilli(takenAt).UTC()
	return snap, nil
}

// PruneSnapshotsBefore removes snapshots with sequence lower than seq. The
// journal itself is never pruned.
func (s *Store) PruneSnapshotsBefore(ctx context.Context, sessionID string, seq uint64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE session_id = ? AND seq < ?`,
		sessionID, int64(seq),
	); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
