package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/storage/memory"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

type countingApplier struct {
	seqs []uint64
}

func (a *countingApplier) Apply(state any, evt event.Event) (any, error) {
	a.seqs = append(a.seqs, evt.Seq)
	count, _ := state.(int)
	return count + 1, nil
}

type gapStore struct{}

func (gapStore) ListEvents(_ context.Context, _ string, afterSeq uint64, _ int) ([]event.Event, error) {
	if afterSeq > 0 {
		return nil, nil
	}
	return []event.Event{
		{Seq: 1, Type: event.TypePhaseEntered},
		{Seq: 3, Type: event.TypePhaseEntered},
	}, nil
}

func seedStore(t *testing.T, n int) *memory.Store {
	t.Helper()
	s := memory.New()
	for i := 0; i < n; i++ {
		if _, err := s.AppendEvent(context.Background(), event.Event{
			SessionID:   "s1",
			Type:        event.TypePhaseEntered,
			Visibility:  event.VisibilityPublic,
			PayloadJSON: []byte(`{}`),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return s
}

func TestReplayAppliesAllEventsInOrder(t *testing.T) {
	store := seedStore(t, 25)
	applier := &countingApplier{}
	result, err := Replay(context.Background(), store, NewMemoryCheckpoints(), applier, "s1", 0, Options{PageSize: 7})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 25 {
		t.Errorf("expected 25 applied, got %d", result.Applied)
	}
	if result.LastSeq != 25 {
		t.Errorf("expected last seq 25, got %d", result.LastSeq)
	}
	for i, seq := range applier.seqs {
		if seq != uint64(i+1) {
			t.Fatalf("apply order broken at index %d: seq %d", i, seq)
		}
	}
}

func TestReplayResumesFromCheckpoint(t *testing.T) {
	store := seedStore(t, 10)
	checkpoints := NewMemoryCheckpoints()
	if err := checkpoints.Save(context.Background(), Checkpoint{SessionID: "s1", LastSeq: 6}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	applier := &countingApplier{}
	result, err := Replay(context.Background(), store, checkpoints, applier, "s1", 0, Options{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 4 {
		t.Errorf("expected 4 applied after checkpoint, got %d", result.Applied)
	}
	if len(applier.seqs) > 0 && applier.seqs[0] != 7 {
		t.Errorf("expected first applied seq 7, got %d", applier.seqs[0])
	}
}

func TestReplayHonorsUntilSeq(t *testing.T) {
	store := seedStore(t, 10)
	applier := &countingApplier{}
	result, err := Replay(context.Background(), store, NewMemoryCheckpoints(), applier, "s1", 0, Options{UntilSeq: 4})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 4 {
		t.Errorf("expected 4 applied, got %d", result.Applied)
	}
}

func TestReplayDetectsSequenceGap(t *testing.T) {
	applier := &countingApplier{}
	_, err := Replay(context.Background(), gapStore{}, NewMemoryCheckpoints(), applier, "s1", 0, Options{})
	if err == nil {
		t.Fatal("expected gap error")
	}
	if !errors.Is(err, apperrors.New(apperrors.CodeEventSequenceGap, "")) {
		t.Fatalf("expected sequence gap error, got %v", err)
	}
}

// tamperStore rewrites one event's payload after the store hashed it.
type tamperStore struct {
	inner *memory.Store
	seq   uint64
}

func (s tamperStore) ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error) {
	events, err := s.inner.ListEvents(ctx, sessionID, afterSeq, limit)
	for i := range events {
		if events[i].Seq == s.seq {
			events[i].PayloadJSON = []byte(`{"forged":true}`)
		}
	}
	return events, err
}

// duplicatingStore returns the first event twice.
type duplicatingStore struct {
	inner *memory.Store
}

func (s duplicatingStore) ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]event.Event, error) {
	events, err := s.inner.ListEvents(ctx, sessionID, afterSeq, limit)
	if err != nil || afterSeq > 0 || len(events) < 2 {
		return events, err
	}
	events[1] = events[0]
	return events, err
}

func TestReplayVerifyDetectsTamperedEvent(t *testing.T) {
	store := seedStore(t, 5)
	_, err := Replay(context.Background(), tamperStore{inner: store, seq: 3}, NewMemoryCheckpoints(), &countingApplier{}, "s1", 0, Options{Verify: true})
	if !errors.Is(err, apperrors.New(apperrors.CodeEventChainBroken, "")) {
		t.Fatalf("expected chain broken error, got %v", err)
	}
}

func TestReplayDetectsDuplicateSequence(t *testing.T) {
	store := seedStore(t, 3)
	_, err := Replay(context.Background(), duplicatingStore{inner: store}, NewMemoryCheckpoints(), &countingApplier{}, "s1", 0, Options{})
	if !errors.Is(err, apperrors.New(apperrors.CodeEventDuplicateSeq, "")) {
		t.Fatalf("expected duplicate sequence error, got %v", err)
	}
}

func TestReplayValidatesInputs(t *testing.T) {
	store := seedStore(t, 1)
	if _, err := Replay(context.Background(), nil, NewMemoryCheckpoints(), &countingApplier{}, "s1", 0, Options{}); !errors.Is(err, ErrEventStoreRequired) {
		t.Errorf("expected event store error, got %v", err)
	}
	if _, err := Replay(context.Background(), store, nil, &countingApplier{}, "s1", 0, Options{}); !errors.Is(err, ErrCheckpointStoreRequired) {
		t.Errorf("expected checkpoint store error, got %v", err)
	}
	if _, err := Replay(context.Background(), store, NewMemoryCheckpoints(), nil, "s1", 0, Options{}); !errors.Is(err, ErrApplierRequired) {
		t.Errorf("expected applier error, got %v", err)
	}
	if _, err := Replay(context.Background(), store, NewMemoryCheckpoints(), &countingApplier{}, "  ", 0, Options{}); !errors.Is(err, ErrSessionIDRequired) {
		t.Errorf("expected session id error, got %v", err)
	}
}
