package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/storage"
)

// AppendEvent atomically appends an event and returns it with sequence and
// hash set. The sequence is computed inside the transaction, so appends for
// a session are serialized and gapless.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.db == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("event type is required")
	}
	if !evt.Visibility.IsValid() {
		return event.Event{}, fmt.Errorf("event visibility is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	var lastSeq uint64
	var prevHash string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, hash FROM events WHERE session_id = ? ORDER BY seq DESC LIMIT 1`,
		evt.SessionID,
	).Scan(&lastSeq, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, fmt.Errorf("load previous event: %w", err)
	}

	evt.Seq = lastSeq + 1
	evt.PrevHash = prevHash

	hash, err := storage.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, seq, hash, prev_hash, timestamp, event_type, visibility, actor_id, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.SessionID,
		int64(evt.Seq),
		evt.Hash,
		evt.PrevHash,
		evt.Timestamp.UnixMilli(),
		string(evt.Type),
		string(evt.Visibility),
		evt.ActorID,
		evt.PayloadJSON,
	); err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit append: %w", err)
	}
	return evt, nil
}

const eventColumns = `session_id, seq, hash, prev_hash, timestamp, event_type, visibility, actor_id, payload`

func scanEvent(scanner interface{ Scan(...any) error }) (event.Event, error) {
	var evt event.Event
	var seq, ts int64
	var typ, visibility string
	if err := scanner.Scan(
		&evt.SessionID,
		&seq,
		&evt.Hash,
		&evt.PrevHash,
		&ts,
		&typ,
		&visibility,
		&evt.ActorID,
		&evt.PayloadJSON,
	); err != nil {
		return event.Event{}, err
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = time.UnixMilli(ts).UTC()
	evt.Type = event.Type(typ)
	evt.Visibility = event.Visibility(visibility)
	return evt, nil
}

// ListEvents returns events with sequence greater than afterSeq in ascending
// order, up to limit.
func (s *Store) ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE session_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		sessionID, int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// GetEventBySeq retrieves one event by sequence number.
func (s *Store) GetEventBySeq(ctx context.Context, sessionID string, seq uint64) (event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE session_id = ? AND seq = ?`,
		sessionID, int64(seq),
	)
	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event by seq: %w", err)
	}
	return evt, nil
}

// GetLatestSeq returns the latest sequence for a session, 0 when none exist.
func (s *Store) GetLatestSeq(ctx context.Context, sessionID string) (uint64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM events WHERE session_id = ?`,
		sessionID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}
