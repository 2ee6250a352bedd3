package sqlite

import (
	"context"
	"fmt"
)

// migrations are applied in order; user_version tracks the last applied
// index. Statements must stay append-only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		session_id  TEXT    NOT NULL,
		seq         INTEGER NOT NULL,
		hash        TEXT    NOT NULL,
		prev_hash   TEXT    NOT NULL DEFAULT '',
		timestamp   INTEGER NOT NULL,
		event_type  TEXT    NOT NULL,
		visibility  TEXT    NOT NULL,
		actor_id    TEXT    NOT NULL DEFAULT '',
		payload     BLOB    NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_hash ON events (hash)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		session_id  TEXT    NOT NULL,
		seq         INTEGER NOT NULL,
		taken_at    INTEGER NOT NULL,
		state       BLOB    NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("bump user_version: %w", err)
		}
	}
	return nil
}
