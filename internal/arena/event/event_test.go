package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakeStore struct {
	events []Event
}

func (f *fakeStore) AppendEvent(_ context.Context, evt Event) (Event, error) {
	evt.Seq = uint64(len(f.events) + 1)
	f.events = append(f.events, evt)
	return evt, nil
}

func TestTypeDomain(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeSessionCreated, "session"},
		{TypeMafiaChatMessage, "night"},
		{TypeVoteResult, "day"},
		{Type("noseparator"), "noseparator"},
	}
	for _, tc := range tests {
		if got := tc.typ.Domain(); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.typ, tc.want, got)
		}
	}
}

func TestEmitAssignsSequenceAndTimestamp(t *testing.T) {
	store := &fakeStore{}
	emitter := NewEmitter(store)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	emitter.now = func() time.Time { return fixed }

	evt, err := emitter.EmitPhaseEntered(context.Background(), "s1", PhaseEnteredPayload{
		Phase: "NIGHT_ACTIONS",
		Day:   1,
		Round: 1,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if evt.Seq != 1 {
		t.Errorf("expected seq 1, got %d", evt.Seq)
	}
	if !evt.Timestamp.Equal(fixed) {
		t.Errorf("expected fixed timestamp, got %v", evt.Timestamp)
	}
	if evt.Visibility != VisibilityPublic {
		t.Errorf("expected PUBLIC visibility, got %s", evt.Visibility)
	}

	var payload PhaseEnteredPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Day != 1 || payload.Round != 1 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestEmitRejectsMissingVisibility(t *testing.T) {
	emitter := NewEmitter(&fakeStore{})
	_, err := emitter.Emit(context.Background(), EmitInput{
		SessionID: "s1",
		Type:      TypeVoteCast,
	})
	if err == nil {
		t.Fatal("expected error for missing visibility")
	}
}

func TestVisibilityOfTypedHelpers(t *testing.T) {
	store := &fakeStore{}
	emitter := NewEmitter(store)
	ctx := context.Background()

	if _, err := emitter.EmitMafiaChatMessage(ctx, "s1", "p1", MafiaChatMessagePayload{Message: "hm"}); err != nil {
		t.Fatalf("emit chat: %v", err)
	}
	if _, err := emitter.EmitInvestigation(ctx, "s1", "p2", InvestigationPayload{TargetID: "p3"}); err != nil {
		t.Fatalf("emit investigation: %v", err)
	}
	if _, err := emitter.EmitOracleThought(ctx, "s1", "p2", OracleThoughtPayload{Reasoning: "..."}); err != nil {
		t.Fatalf("emit thought: %v", err)
	}

	want := []Visibility{VisibilityMafiaPrivate, VisibilityRolePrivate, VisibilityAdmin}
	for i, evt := range store.events {
		if evt.Visibility != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], evt.Visibility)
		}
	}
}
