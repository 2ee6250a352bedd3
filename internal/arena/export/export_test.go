package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/storage/memory"
)

func seedJournal(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	visibilities := []event.Visibility{
		event.VisibilityPublic,
		event.VisibilityMafiaPrivate,
		event.VisibilityPublic,
		event.VisibilityAdmin,
		event.VisibilityRolePrivate,
		event.VisibilityPublic,
	}
	for _, visibility := range visibilities {
		if _, err := store.AppendEvent(context.Background(), event.Event{
			SessionID:   "s1",
			Type:        event.TypePhaseEntered,
			Visibility:  visibility,
			PayloadJSON: []byte(`{"phase":"NIGHT_ACTIONS"}`),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return store
}

func TestWriteLogFullJournal(t *testing.T) {
	store := seedJournal(t)
	var buf bytes.Buffer

	written, err := WriteLog(context.Background(), &buf, store, "s1", Options{})
	if err != nil {
		t.Fatalf("write log: %v", err)
	}
	if written != 6 {
		t.Errorf("expected 6 records, got %d", written)
	}

	scanner := bufio.NewScanner(&buf)
	var lastSeq uint64
	lines := 0
	for scanner.Scan() {
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if rec.Seq != lastSeq+1 {
			t.Errorf("expected seq %d, got %d", lastSeq+1, rec.Seq)
		}
		lastSeq = rec.Seq
		lines++
	}
	if lines != 6 {
		t.Errorf("expected 6 lines, got %d", lines)
	}
}

func TestWriteLogPublicOnly(t *testing.T) {
	store := seedJournal(t)
	var buf bytes.Buffer

	written, err := WriteLog(context.Background(), &buf, store, "s1", Options{PublicOnly: true})
	if err != nil {
		t.Fatalf("write log: %v", err)
	}
	if written != 3 {
		t.Errorf("expected 3 public records, got %d", written)
	}

	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if rec.Visibility != event.VisibilityPublic {
			t.Errorf("public-only export leaked %s event at seq %d", rec.Visibility, rec.Seq)
		}
	}
}

func TestWriteLogEmptySession(t *testing.T) {
	var buf bytes.Buffer
	written, err := WriteLog(context.Background(), &buf, memory.New(), "missing", Options{})
	if err != nil {
		t.Fatalf("write log: %v", err)
	}
	if written != 0 || buf.Len() != 0 {
		t.Errorf("expected empty export, got %d records, %d bytes", written, buf.Len())
	}
}
