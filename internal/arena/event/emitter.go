package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store defines the interface for persisting events. Append is atomic per
// session: the store assigns the next gapless sequence number.
type Store interface {
	AppendEvent(ctx context.Context, evt Event) (Event, error)
}

// Emitter is the single writer of a session's journal. One emitter instance
// exists per session controller; no two writers race for a sequence number.
type Emitter struct {
	store Store
	now   func() time.Time
}

// NewEmitter creates a new event emitter.
func NewEmitter(store Store) *Emitter {
	return &Emitter{
		store: store,
		now:   time.Now,
	}
}

// EmitInput describes the input for emitting an event.
type EmitInput struct {
	SessionID  string
	Type       Type
	Visibility Visibility
	ActorID    string
	Payload    any
}

// Emit appends an event to the session journal and returns it with its
// assigned sequence number and hash.
func (e *Emitter) Emit(ctx context.Context, input EmitInput) (Event, error) {
	if e == nil || e.store == nil {
		return Event{}, fmt.Errorf("event store is not configured")
	}
	if !input.Type.IsValid() {
		return Event{}, fmt.Errorf("event type is required")
	}
	if !input.Visibility.IsValid() {
		return Event{}, fmt.Errorf("event visibility is required")
	}

	payloadJSON, err := json.Marshal(input.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	evt := Event{
		SessionID:   input.SessionID,
		Timestamp:   e.now().UTC(),
		Type:        input.Type,
		Visibility:  input.Visibility,
		ActorID:     input.ActorID,
		PayloadJSON: payloadJSON,
	}

	return e.store.AppendEvent(ctx, evt)
}

// EmitPublic appends a PUBLIC system event.
func (e *Emitter) EmitPublic(ctx context.Context, sessionID string, t Type, payload any) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       t,
		Visibility: VisibilityPublic,
		Payload:    payload,
	})
}

// EmitPhaseEntered appends a phase.entered event.
func (e *Emitter) EmitPhaseEntered(ctx context.Context, sessionID string, payload PhaseEnteredPayload) (Event, error) {
	return e.EmitPublic(ctx, sessionID, TypePhaseEntered, payload)
}

// EmitMafiaChatMessage appends a MAFIA_PRIVATE chat utterance.
func (e *Emitter) EmitMafiaChatMessage(ctx context.Context, sessionID, actorID string, payload MafiaChatMessagePayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeMafiaChatMessage,
		Visibility: VisibilityMafiaPrivate,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitKillProposed appends a MAFIA_PRIVATE target preference.
func (e *Emitter) EmitKillProposed(ctx context.Context, sessionID, actorID string, payload KillProposedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeKillProposed,
		Visibility: VisibilityMafiaPrivate,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitKillAgreed appends the MAFIA_PRIVATE consensus outcome.
func (e *Emitter) EmitKillAgreed(ctx context.Context, sessionID string, payload KillAgreedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeKillAgreed,
		Visibility: VisibilityMafiaPrivate,
		Payload:    payload,
	})
}

// EmitProtectionSet appends a ROLE_PRIVATE protect choice.
func (e *Emitter) EmitProtectionSet(ctx context.Context, sessionID, actorID string, payload ProtectionSetPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeProtectionSet,
		Visibility: VisibilityRolePrivate,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitInvestigation appends a ROLE_PRIVATE investigation result.
func (e *Emitter) EmitInvestigation(ctx context.Context, sessionID, actorID string, payload InvestigationPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeInvestigationDone,
		Visibility: VisibilityRolePrivate,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitShotFired appends the ROLE_PRIVATE accepted shot.
func (e *Emitter) EmitShotFired(ctx context.Context, sessionID, actorID string, payload ShotFiredPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeShotFired,
		Visibility: VisibilityRolePrivate,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitShotRejected appends a ROLE_PRIVATE rejected shot attempt.
func (e *Emitter) EmitShotRejected(ctx context.Context, sessionID, actorID string, payload ShotRejectedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeShotRejected,
		Visibility: VisibilityRolePrivate,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitOracleThought appends an ADMIN reasoning audit event.
func (e *Emitter) EmitOracleThought(ctx context.Context, sessionID, actorID string, payload OracleThoughtPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeOracleThought,
		Visibility: VisibilityAdmin,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitStatementMade appends a PUBLIC discussion statement.
func (e *Emitter) EmitStatementMade(ctx context.Context, sessionID, actorID string, payload StatementMadePayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeStatementMade,
		Visibility: VisibilityPublic,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitVoteCast appends a PUBLIC vote.
func (e *Emitter) EmitVoteCast(ctx context.Context, sessionID, actorID string, payload VoteCastPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeVoteCast,
		Visibility: VisibilityPublic,
		ActorID:    actorID,
		Payload:    payload,
	})
}

// EmitPlayerEliminated appends a PUBLIC elimination.
func (e *Emitter) EmitPlayerEliminated(ctx context.Context, sessionID string, payload PlayerEliminatedPayload) (Event, error) {
	return e.EmitPublic(ctx, sessionID, TypePlayerEliminated, payload)
}

// EmitRolesAssigned appends the ADMIN role binding record.
func (e *Emitter) EmitRolesAssigned(ctx context.Context, sessionID string, payload RolesAssignedPayload) (Event, error) {
	return e.Emit(ctx, EmitInput{
		SessionID:  sessionID,
		Type:       TypeRolesAssigned,
		Visibility: VisibilityAdmin,
		Payload:    payload,
	})
}
