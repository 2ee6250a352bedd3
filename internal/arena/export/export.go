// Package export writes a session's journal as line-delimited JSON for
// offline analysis. The export is an ordered full read of the log; it never
// mutates anything.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/storage"
)

const pageSize = 500

// Options controls what the export includes.
type Options struct {
	// PublicOnly drops everything except PUBLIC events, producing a spectator
	// transcript safe to share.
	PublicOnly bool
}

// record is the wire shape of one exported event.
type record struct {
	SessionID  string           `json:"session_id"`
	Seq        uint64           `json:"seq"`
	Hash       string           `json:"hash"`
	PrevHash   string           `json:"prev_hash,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       event.Type       `json:"type"`
	Visibility event.Visibility `json:"visibility"`
	ActorID    string           `json:"actor_id,omitempty"`
	Payload    json.RawMessage  `json:"payload"`
}

// WriteLog streams the session's events to w as JSON lines in sequence
// order. Returns the number of events written.
func WriteLog(ctx context.Context, w io.Writer, store storage.EventStore, sessionID string, opts Options) (int, error) {
	encoder := json.NewEncoder(w)
	written := 0
	afterSeq := uint64(0)

	for {
		events, err := store.ListEvents(ctx, sessionID, afterSeq, pageSize)
		if err != nil {
			return written, fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			return written, nil
		}
		for _, evt := range events {
			afterSeq = evt.Seq
			if opts.PublicOnly && evt.Visibility != event.VisibilityPublic {
				continue
			}
			if err := encoder.Encode(record{
				SessionID:  evt.SessionID,
				Seq:        evt.Seq,
				Hash:       evt.Hash,
				PrevHash:   evt.PrevHash,
				Timestamp:  evt.Timestamp,
				Type:       evt.Type,
				Visibility: evt.Visibility,
				ActorID:    evt.ActorID,
				Payload:    json.RawMessage(evt.PayloadJSON),
			}); err != nil {
				return written, fmt.Errorf("encode event %d: %w", evt.Seq, err)
			}
			written++
		}
	}
}
