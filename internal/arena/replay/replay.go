// Package replay folds journal events through the pure state transition in
// strict sequence order, detecting gaps and tracking checkpoints.
package replay

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/storage"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrCheckpointStoreRequired indicates a missing checkpoint store.
	ErrCheckpointStoreRequired = errors.New("checkpoint store is required")
	// ErrApplierRequired indicates a missing applier.
	ErrApplierRequired = errors.New("applier is required")
	// ErrSessionIDRequired indicates a missing session id.
	ErrSessionIDRequired = errors.New("session id is required")
	// ErrCheckpointNotFound indicates no checkpoint exists yet.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// CheckpointStore manages replay checkpoints.
type CheckpointStore interface {
	Get(ctx context.Context, sessionID string) (Checkpoint, error)
	Save(ctx context.Context, checkpoint Checkpoint) error
}

// Applier applies a journal event to derived state.
type Applier interface {
	Apply(state any, evt event.Event) (any, error)
}

// Checkpoint captures the last applied sequence for a session.
type Checkpoint struct {
	SessionID string
	LastSeq   uint64
	UpdatedAt time.Time
}

// Options configures replay behavior.
type Options struct {
	AfterSeq uint64
	UntilSeq uint64
	PageSize int

	// Verify re-checks each event's hash and chain link during replay.
	// PrevHash is the hash of the event at AfterSeq (empty at sequence 0).
	Verify   bool
	PrevHash string
}

// Result captures replay outcomes.
type Result struct {
	State   any
	LastSeq uint64
	Applied int
}

// Replay replays events in order and updates checkpoints after each apply.
// A detected sequence gap or duplicate is a log integrity failure, fatal to
// the session; with Verify set, a hash-chain break is too.
func Replay(ctx context.Context, store EventStore, checkpoints CheckpointStore, applier Applier, sessionID string, state any, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	if checkpoints == nil {
		return Result{}, ErrCheckpointStoreRequired
	}
	if applier == nil {
		return Result{}, ErrApplierRequired
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Result{}, ErrSessionIDRequired
	}

	checkpointSeq := uint64(0)
	checkpoint, err := checkpoints.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrCheckpointNotFound) {
			return Result{}, err
		}
	} else {
		checkpointSeq = checkpoint.LastSeq
	}

	lastSeq := options.AfterSeq
	if checkpointSeq > lastSeq {
		lastSeq = checkpointSeq
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, LastSeq: lastSeq}
	prevHash := options.PrevHash
	for {
		events, err := store.ListEvents(ctx, sessionID, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return result, nil
			}
			expectedSeq := result.LastSeq + 1
			if evt.Seq != expectedSeq {
				code := apperrors.CodeEventSequenceGap
				message := "event sequence gap detected"
				if evt.Seq <= result.LastSeq {
					code = apperrors.CodeEventDuplicateSeq
					message = "duplicate event sequence detected"
				}
				return result, apperrors.WithMetadata(code, message,
					map[string]string{
						"session_id": sessionID,
						"expected":   strconv.FormatUint(expectedSeq, 10),
						"got":        strconv.FormatUint(evt.Seq, 10),
					},
				)
			}
			if options.Verify {
				if err := verifyLink(sessionID, prevHash, evt); err != nil {
					return result, err
				}
				prevHash = evt.Hash
			}
			nextState, err := applier.Apply(result.State, evt)
			if err != nil {
				return result, err
			}
			result.State = nextState
			result.LastSeq = evt.Seq
			result.Applied++
			if err := checkpoints.Save(ctx, Checkpoint{SessionID: sessionID, LastSeq: result.LastSeq, UpdatedAt: time.Now().UTC()}); err != nil {
				return result, err
			}
		}
	}
}

// verifyLink checks one event against the running hash chain.
func verifyLink(sessionID, prevHash string, evt event.Event) error {
	if evt.PrevHash != prevHash {
		return apperrors.WithMetadata(apperrors.CodeEventChainBroken,
			"hash chain break detected",
			map[string]string{
				"session_id": sessionID,
				"seq":        strconv.FormatUint(evt.Seq, 10),
				"expected":   prevHash,
				"got":        evt.PrevHash,
			},
		)
	}
	computed, err := storage.EventHash(evt)
	if err != nil {
		return err
	}
	if computed != evt.Hash {
		return apperrors.WithMetadata(apperrors.CodeEventChainBroken,
			"event content does not match its hash",
			map[string]string{
				"session_id": sessionID,
				"seq":        strconv.FormatUint(evt.Seq, 10),
			},
		)
	}
	return nil
}

