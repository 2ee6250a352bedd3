// Package controller owns the session lifecycle and the phase state machine.
// Every decision flows through the same pipeline: decide, append to the
// journal, fold through the pure state transition, publish. The controller is
// the single writer of each session's journal.
package controller

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/resolver"
	"github.com/louisbranch/nightfall/internal/arena/snapshot"
	"github.com/louisbranch/nightfall/internal/arena/state"
	"github.com/louisbranch/nightfall/internal/arena/storage"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
	"github.com/louisbranch/nightfall/internal/platform/id"
)

// Publisher receives every appended event for fan-out to subscribers.
type Publisher interface {
	Publish(evt event.Event)
}

// Controller drives sessions through the phase state machine.
type Controller struct {
	store     storage.Store
	emitter   *event.Emitter
	resolver  *resolver.Resolver
	snapshots *snapshot.Manager
	publisher Publisher

	mu       sync.Mutex
	sessions map[string]*runtime
}

// runtime is the in-memory execution state of one session. pending fields
// carry resolution outcomes between phases; they are rebuilt from the journal
// on recovery.
type runtime struct {
	mu           sync.Mutex
	game         state.Game
	lastSeq      uint64
	pauseAsked   bool
	pendingNight *resolver.NightResolution
	pendingVote  *resolver.VoteOutcome
}

// Option configures a controller.
type Option func(*Controller)

// WithPublisher fans appended events out to the given publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithSnapshotManager overrides the default snapshot manager.
func WithSnapshotManager(m *snapshot.Manager) Option {
	return func(c *Controller) { c.snapshots = m }
}

// New creates a controller over the given store and resolver.
func New(store storage.Store, r *resolver.Resolver, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "store is required")
	}
	if r == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "resolver is required")
	}
	c := &Controller{
		store:    store,
		emitter:  event.NewEmitter(store),
		resolver: r,
		sessions: make(map[string]*runtime),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.snapshots == nil {
		manager, err := snapshot.NewManager(store)
		if err != nil {
			return nil, err
		}
		c.snapshots = manager
	}
	return c, nil
}

// CreateParams describes a new session.
type CreateParams struct {
	PlayerNames []string
	Seed        uint64
}

// Create materializes the roster, then binds the shuffled role multiset to
// it. The roster exists in the journal before any role does, so no persona
// can be derived from its role.
func (c *Controller) Create(ctx context.Context, params CreateParams) (string, error) {
	count := len(params.PlayerNames)
	roleSets, err := domain.ScaleRoles(count)
	if err != nil {
		return "", err
	}

	roster := make([]event.RosterEntry, 0, count)
	seen := make(map[string]struct{}, count)
	for _, name := range params.PlayerNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return "", apperrors.New(apperrors.CodePlayerEmptyName, "player name is required")
		}
		if _, ok := seen[name]; ok {
			return "", apperrors.WithMetadata(apperrors.CodePlayerDuplicateID,
				"player names must be unique", map[string]string{"name": name})
		}
		seen[name] = struct{}{}
		roster = append(roster, event.RosterEntry{PlayerID: id.MustNewID(), Name: name})
	}

	sessionID := id.MustNewID()
	rt := &runtime{}

	created, err := c.emitter.EmitPublic(ctx, sessionID, event.TypeSessionCreated, event.SessionCreatedPayload{
		PlayerCount: count,
		Roster:      roster,
		Seed:        params.Seed,
	})
	if err := c.apply(rt, created, err); err != nil {
		return "", err
	}

	shuffled := domain.ShuffleRoles(roleSets, params.Seed)
	assignments := make([]event.RoleAssignment, 0, count)
	for i, entry := range roster {
		assignments = append(assignments, event.RoleAssignment{
			PlayerID: entry.PlayerID,
			Roles:    shuffled[i].List(),
		})
	}
	assigned, err := c.emitter.EmitRolesAssigned(ctx, sessionID, event.RolesAssignedPayload{Assignments: assignments})
	if err := c.apply(rt, assigned, err); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.sessions[sessionID] = rt
	c.mu.Unlock()
	return sessionID, nil
}

// Start transitions a created session to RUNNING and enters the first night.
func (c *Controller) Start(ctx context.Context, sessionID string) error {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := c.transitionStatus(ctx, rt, event.TypeSessionStarted, domain.StatusRunning); err != nil {
		return err
	}
	if win := domain.EvaluateWin(rt.game.Session.Players); win != domain.WinOngoing {
		return c.endSession(ctx, rt, win)
	}
	return c.enterPhase(ctx, rt, domain.PhaseNightActions, 0, 1)
}

// Pause checkpoints the session and halts stepping. In-flight oracle calls
// complete before the pause lands; Step observes the flag between phases.
func (c *Controller) Pause(ctx context.Context, sessionID string) error {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := c.transitionStatus(ctx, rt, event.TypeSessionPaused, domain.StatusPaused); err != nil {
		return err
	}
	rt.pauseAsked = false
	return c.snapshots.Capture(ctx, rt.game, rt.lastSeq)
}

// RequestPause asks a running session to pause at the next phase boundary.
func (c *Controller) RequestPause(ctx context.Context, sessionID string) error {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pauseAsked = true
	return nil
}

// Resume restarts a paused session.
func (c *Controller) Resume(ctx context.Context, sessionID string) error {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return c.transitionStatus(ctx, rt, event.TypeSessionResumed, domain.StatusRunning)
}

// Cancel terminates a session without a winner.
func (c *Controller) Cancel(ctx context.Context, sessionID string) error {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return c.transitionStatus(ctx, rt, event.TypeSessionCancelled, domain.StatusCancelled)
}

// Status is a read-only projection of a session.
type Status struct {
	SessionID  string
	Status     domain.Status
	Phase      domain.Phase
	Day        int
	Round      int
	Winner     domain.Winner
	AliveCount int
	LastSeq    uint64
}

// Status reports the session's current position.
func (c *Controller) Status(ctx context.Context, sessionID string) (Status, error) {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return Status{
		SessionID:  sessionID,
		Status:     rt.game.Session.Status,
		Phase:      rt.game.Session.Phase,
		Day:        rt.game.Session.Day,
		Round:      rt.game.Session.Round,
		Winner:     rt.game.Session.Winner,
		AliveCount: len(rt.game.Session.AlivePlayers()),
		LastSeq:    rt.lastSeq,
	}, nil
}

// Run steps the session until it reaches a terminal state, pauses, or the
// context is cancelled.
func (c *Controller) Run(ctx context.Context, sessionID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := c.Status(ctx, sessionID)
		if err != nil {
			return err
		}
		if status.Status.Terminal() || status.Status == domain.StatusPaused {
			return nil
		}
		if err := c.Step(ctx, sessionID); err != nil {
			return err
		}
	}
}

// runtime returns the in-memory session, recovering it from storage when the
// controller has not seen it yet.
func (c *Controller) runtime(ctx context.Context, sessionID string) (*runtime, error) {
	c.mu.Lock()
	rt, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if ok {
		return rt, nil
	}

	game, lastSeq, err := c.snapshots.Recover(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if game.Session.ID == "" {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			"session not found", map[string]string{"session_id": sessionID})
	}
	rt = &runtime{game: game, lastSeq: lastSeq}
	if err := c.rebuildPending(ctx, rt); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sessions[sessionID]; ok {
		return existing, nil
	}
	c.sessions[sessionID] = rt
	return rt, nil
}

// rebuildPending restores the between-phase resolution carried by a runtime
// from the journal after recovery.
func (c *Controller) rebuildPending(ctx context.Context, rt *runtime) error {
	switch rt.game.Session.Phase {
	case domain.PhaseMorningReveal:
		evt, ok, err := c.lastEventOfType(ctx, rt.game.Session.ID, rt.lastSeq, event.TypeNightResolved)
		if err != nil || !ok {
			return err
		}
		var payload event.NightResolvedPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return err
		}
		rt.pendingNight = &resolver.NightResolution{
			KillTargetID:           payload.KillTargetID,
			ShotTargetID:           payload.ShotTargetID,
			Killed:                 payload.KilledIDs,
			BlockedIDs:             payload.BlockedIDs,
			ProtectionPreventsKill: payload.ProtectionPreventsKill,
		}
	case domain.PhaseResolution:
		evt, ok, err := c.lastEventOfType(ctx, rt.game.Session.ID, rt.lastSeq, event.TypeVoteResult)
		if err != nil || !ok {
			return err
		}
		var payload event.VoteResultPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return err
		}
		rt.pendingVote = &resolver.VoteOutcome{
			Tally:        payload.Tally,
			Abstentions:  payload.Abstentions,
			EliminatedID: payload.EliminatedPlayerID,
			Tie:          payload.Tie,
		}
	}
	return nil
}

// lastEventOfType scans backwards from seq for the most recent event of the
// given type.
func (c *Controller) lastEventOfType(ctx context.Context, sessionID string, seq uint64, t event.Type) (event.Event, bool, error) {
	for ; seq > 0; seq-- {
		evt, err := c.store.GetEventBySeq(ctx, sessionID, seq)
		if err != nil {
			return event.Event{}, false, err
		}
		if evt.Type == t {
			return evt, true, nil
		}
	}
	return event.Event{}, false, nil
}

// apply folds an appended event into the runtime and publishes it. The emit
// error is threaded through so call sites stay single-line.
func (c *Controller) apply(rt *runtime, evt event.Event, emitErr error) error {
	if emitErr != nil {
		return emitErr
	}
	next, err := state.Apply(rt.game, evt)
	if err != nil {
		return err
	}
	rt.game = next
	rt.lastSeq = evt.Seq
	if c.publisher != nil {
		c.publisher.Publish(evt)
	}
	return nil
}

// transitionStatus validates and records a lifecycle transition.
func (c *Controller) transitionStatus(ctx context.Context, rt *runtime, t event.Type, to domain.Status) error {
	from := rt.game.Session.Status
	if !from.CanTransitionTo(to) {
		return apperrors.WithMetadata(apperrors.CodeSessionInvalidStatusTransition,
			"status transition not allowed",
			map[string]string{"from": string(from), "to": string(to)})
	}
	evt, err := c.emitter.EmitPublic(ctx, rt.game.Session.ID, t, event.SessionStatusPayload{
		FromStatus: from,
		ToStatus:   to,
	})
	return c.apply(rt, evt, err)
}

// enterPhase records a phase transition and captures a snapshot at the
// boundary, subject to the manager's round interval.
func (c *Controller) enterPhase(ctx context.Context, rt *runtime, phase domain.Phase, day, round int) error {
	evt, err := c.emitter.EmitPhaseEntered(ctx, rt.game.Session.ID, event.PhaseEnteredPayload{
		Phase: phase,
		Day:   day,
		Round: round,
	})
	if err := c.apply(rt, evt, err); err != nil {
		return err
	}
	if err := c.snapshots.CaptureBoundary(ctx, rt.game, rt.lastSeq); err != nil {
		log.Printf("snapshot capture at %s failed for session %s: %v", phase, rt.game.Session.ID, err)
	}
	return nil
}

// endSession records the terminal win.
func (c *Controller) endSession(ctx context.Context, rt *runtime, win domain.WinState) error {
	winner := domain.WinnerTown
	if win == domain.WinMafia {
		winner = domain.WinnerMafia
	}
	evt, err := c.emitter.EmitPublic(ctx, rt.game.Session.ID, event.TypeSessionEnded, event.SessionEndedPayload{
		Winner: winner,
		Day:    rt.game.Session.Day,
		Round:  rt.game.Session.Round,
	})
	if err := c.apply(rt, evt, err); err != nil {
		return err
	}
	return c.snapshots.Capture(ctx, rt.game, rt.lastSeq)
}

// fail records a session-fatal integrity failure.
func (c *Controller) fail(ctx context.Context, rt *runtime, reason string, code apperrors.Code) error {
	evt, err := c.emitter.EmitPublic(ctx, rt.game.Session.ID, event.TypeSessionFailed, event.SessionFailedPayload{
		Reason: reason,
		Code:   string(code),
	})
	return c.apply(rt, evt, err)
}

func unmarshalPayload(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return apperrors.Wrap(apperrors.CodeEventInvalidPayload, "unmarshal event payload", err)
	}
	return nil
}
