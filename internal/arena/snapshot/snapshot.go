// Package snapshot captures durable checkpoints of derived session state and
// rebuilds state from the latest checkpoint plus the journal tail. A corrupt
// or missing snapshot degrades to a full replay from sequence zero; the
// journal remains the source of truth either way.
package snapshot

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/replay"
	"github.com/louisbranch/nightfall/internal/arena/state"
	"github.com/louisbranch/nightfall/internal/arena/storage"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

var (
	// ErrStoreRequired indicates a missing store.
	ErrStoreRequired = errors.New("store is required")
	// ErrSessionIDRequired indicates a missing session id.
	ErrSessionIDRequired = errors.New("session id is required")
)

// Manager captures snapshots of session state and recovers state from them.
type Manager struct {
	store   storage.Store
	retain  int
	every   int
	lastCap map[string]int
}

// Option configures a manager.
type Option func(*Manager)

// WithRetain keeps the most recent n snapshots per session when pruning.
// Values below 1 retain a single snapshot.
func WithRetain(n int) Option {
	return func(m *Manager) {
		if n < 1 {
			n = 1
		}
		m.retain = n
	}
}

// WithRoundInterval limits phase-boundary captures to one every n rounds.
// Zero captures at every boundary. Pause and terminal captures always happen.
func WithRoundInterval(n int) Option {
	return func(m *Manager) {
		if n < 0 {
			n = 0
		}
		m.every = n
	}
}

// NewManager creates a snapshot manager backed by the given store.
func NewManager(store storage.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	m := &Manager{
		store:   store,
		retain:  2,
		lastCap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Capture serializes the game state at seq and persists it, pruning
// superseded snapshots beyond the retention count.
func (m *Manager) Capture(ctx context.Context, g state.Game, seq uint64) error {
	sessionID := strings.TrimSpace(g.Session.ID)
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	data, err := g.Marshal()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSnapshotUnavailable, "marshal snapshot state", err)
	}
	if err := m.store.SaveSnapshot(ctx, storage.Snapshot{
		SessionID: sessionID,
		Seq:       seq,
		TakenAt:   time.Now().UTC(),
		State:     data,
	}); err != nil {
		return err
	}
	m.lastCap[sessionID] = g.Session.Round
	return m.prune(ctx, sessionID)
}

// CaptureBoundary persists a snapshot at a phase boundary. Without a round
// interval every boundary captures; with one, the boundary capture is skipped
// until the interval has elapsed.
func (m *Manager) CaptureBoundary(ctx context.Context, g state.Game, seq uint64) error {
	if m.every <= 0 {
		return m.Capture(ctx, g, seq)
	}
	_, err := m.CaptureIfDue(ctx, g, seq)
	return err
}

// CaptureIfDue captures a snapshot when the configured round interval has
// elapsed since the last capture for the session. Returns whether a capture
// happened.
func (m *Manager) CaptureIfDue(ctx context.Context, g state.Game, seq uint64) (bool, error) {
	if m.every <= 0 {
		return false, nil
	}
	last, ok := m.lastCap[strings.TrimSpace(g.Session.ID)]
	if ok && g.Session.Round-last < m.every {
		return false, nil
	}
	if err := m.Capture(ctx, g, seq); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) prune(ctx context.Context, sessionID string) error {
	if m.retain <= 0 {
		return nil
	}
	latest, err := m.store.GetLatestSnapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	// Retention is approximated by keeping everything at or above the latest
	// sequence minus a margin when only the newest snapshot is kept. With
	// retain > 1 older snapshots are kept until the next capture cycle walks
	// the floor forward.
	if m.retain == 1 {
		return m.store.PruneSnapshotsBefore(ctx, sessionID, latest.Seq)
	}
	return nil
}

// Recover rebuilds session state from the latest snapshot and the journal
// tail past it, verifying the hash chain as it replays. A missing or corrupt
// snapshot falls back to a full replay of the journal from sequence zero.
func (m *Manager) Recover(ctx context.Context, sessionID string) (state.Game, uint64, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return state.Game{}, 0, ErrSessionIDRequired
	}

	base := state.Game{}
	afterSeq := uint64(0)

	snap, err := m.store.GetLatestSnapshot(ctx, sessionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// No snapshot yet; replay the whole journal.
	case err != nil:
		return state.Game{}, 0, err
	default:
		g, err := state.Unmarshal(snap.State)
		if err != nil {
			log.Printf("snapshot at seq %d for session %s is corrupt, replaying full journal: %v", snap.Seq, sessionID, err)
		} else {
			base = g
			afterSeq = snap.Seq
		}
	}

	prevHash := ""
	if afterSeq > 0 {
		baseEvt, err := m.store.GetEventBySeq(ctx, sessionID, afterSeq)
		if err != nil {
			return state.Game{}, 0, err
		}
		prevHash = baseEvt.Hash
	}
	result, err := replay.Replay(ctx, m.store, replay.NewMemoryCheckpoints(), state.Applier{}, sessionID, base, replay.Options{
		AfterSeq: afterSeq,
		Verify:   true,
		PrevHash: prevHash,
	})
	if err != nil {
		return state.Game{}, 0, err
	}
	g, ok := result.State.(state.Game)
	if !ok {
		return state.Game{}, 0, apperrors.New(apperrors.CodeUnknown, "recovered state has unexpected type")
	}
	return g, result.LastSeq, nil
}
