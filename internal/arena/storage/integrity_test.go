package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/event"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

func chainedEvents(t *testing.T, n int) []event.Event {
	t.Helper()
	events := make([]event.Event, 0, n)
	prev := ""
	for i := 1; i <= n; i++ {
		evt := event.Event{
			SessionID:   "s1",
			Seq:         uint64(i),
			Timestamp:   time.UnixMilli(int64(1000 + i)).UTC(),
			Type:        event.TypePhaseEntered,
			Visibility:  event.VisibilityPublic,
			PayloadJSON: []byte(`{}`),
			PrevHash:    prev,
		}
		hash, err := EventHash(evt)
		if err != nil {
			t.Fatalf("hash event %d: %v", i, err)
		}
		evt.Hash = hash
		prev = hash
		events = append(events, evt)
	}
	return events
}

func TestVerifyChainAcceptsValidChain(t *testing.T) {
	if err := VerifyChain(chainedEvents(t, 4), ""); err != nil {
		t.Fatalf("expected valid chain, got %v", err)
	}
}

func TestVerifyChainDetectsCorruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]event.Event)
		want   apperrors.Code
	}{
		{
			name:   "duplicate sequence",
			mutate: func(events []event.Event) { events[2] = events[1] },
			want:   apperrors.CodeEventDuplicateSeq,
		},
		{
			name:   "sequence gap",
			mutate: func(events []event.Event) { events[2].Seq = 5 },
			want:   apperrors.CodeEventSequenceGap,
		},
		{
			name:   "tampered payload",
			mutate: func(events []event.Event) { events[1].PayloadJSON = []byte(`{"forged":true}`) },
			want:   apperrors.CodeEventChainBroken,
		},
		{
			name:   "forged prev hash",
			mutate: func(events []event.Event) { events[2].PrevHash = "beef" },
			want:   apperrors.CodeEventChainBroken,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events := chainedEvents(t, 4)
			tc.mutate(events)
			err := VerifyChain(events, "")
			if !errors.Is(err, apperrors.New(tc.want, "")) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}
