package replay

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MemoryCheckpoints stores checkpoints in memory. Checkpoints are advisory
// replay cursors; durable recovery goes through the snapshot store.
type MemoryCheckpoints struct {
	mu          sync.Mutex
	checkpoints map[string]Checkpoint
}

// NewMemoryCheckpoints creates an empty in-memory checkpoint store.
func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{checkpoints: make(map[string]Checkpoint)}
}

// Get retrieves a checkpoint by session id.
func (m *MemoryCheckpoints) Get(ctx context.Context, sessionID string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, err
	}
	if m == nil {
		return Checkpoint{}, errors.New("checkpoint store is required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Checkpoint{}, ErrSessionIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint, ok := m.checkpoints[sessionID]
	if !ok {
		return Checkpoint{}, ErrCheckpointNotFound
	}
	return checkpoint, nil
}

// Save persists a checkpoint.
func (m *MemoryCheckpoints) Save(ctx context.Context, checkpoint Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	sessionID := strings.TrimSpace(checkpoint.SessionID)
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.SessionID = sessionID
	m.checkpoints[sessionID] = checkpoint
	return nil
}
