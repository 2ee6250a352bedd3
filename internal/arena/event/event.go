// Package event defines the immutable session event journal: the sole unit
// of observable history. Events are append-only, sequenced per session, and
// tagged with a visibility class at creation time.
package event

import (
	"strings"
	"time"
)

// Type identifies the type of a session event.
type Type string

// Session lifecycle events.
const (
	// TypeSessionCreated records the creation of a session and its roster.
	TypeSessionCreated Type = "session.created"
	// TypeRolesAssigned records the binding of the shuffled role multiset.
	TypeRolesAssigned Type = "session.roles_assigned"
	// TypeSessionStarted records the transition to RUNNING.
	TypeSessionStarted Type = "session.started"
	// TypeSessionPaused records a pause checkpoint.
	TypeSessionPaused Type = "session.paused"
	// TypeSessionResumed records a resume from checkpoint.
	TypeSessionResumed Type = "session.resumed"
	// TypeSessionEnded records a terminal win condition.
	TypeSessionEnded Type = "session.ended"
	// TypeSessionCancelled records operator cancellation.
	TypeSessionCancelled Type = "session.cancelled"
	// TypeSessionFailed records a session-fatal integrity failure.
	TypeSessionFailed Type = "session.failed"
)

// Phase events.
const (
	// TypePhaseEntered records a phase transition with counters.
	TypePhaseEntered Type = "phase.entered"
)

// Night events.
const (
	// TypeMafiaChatMessage records one utterance of the mafia exchange.
	TypeMafiaChatMessage Type = "night.chat_message"
	// TypeKillProposed records one mafia member's target preference.
	TypeKillProposed Type = "night.kill_proposed"
	// TypeKillAgreed records the resolved mafia kill target, if any.
	TypeKillAgreed Type = "night.kill_agreed"
	// TypeProtectionSet records one doctor's protect choice.
	TypeProtectionSet Type = "night.protection_set"
	// TypeInvestigationDone records one sheriff's result: the target's
	// complete role set.
	TypeInvestigationDone Type = "night.investigation"
	// TypeShotFired records the accepted vigilante shot.
	TypeShotFired Type = "night.shot_fired"
	// TypeShotRejected records a vigilante attempt after the flag was spent.
	TypeShotRejected Type = "night.shot_rejected"
	// TypeNightResolved records proposed deaths reduced against protections.
	TypeNightResolved Type = "night.resolved"
)

// Day events.
const (
	// TypeStatementMade records a public statement during discussion.
	TypeStatementMade Type = "day.statement"
	// TypeVoteCast records one player's vote or abstention.
	TypeVoteCast Type = "day.vote_cast"
	// TypeVoteResult records the tally outcome.
	TypeVoteResult Type = "day.vote_result"
)

// Player events.
const (
	// TypePlayerEliminated records a death; alive flag and log must agree.
	TypePlayerEliminated Type = "player.eliminated"
)

// Oracle events.
const (
	// TypeOracleThought records opaque reasoning text for operator audit.
	TypeOracleThought Type = "oracle.thought"
)

// Visibility classifies which subscriber grants may receive an event.
type Visibility string

const (
	// VisibilityPublic events reach every subscriber.
	VisibilityPublic Visibility = "PUBLIC"
	// VisibilityMafiaPrivate events reach mafia-view and admin subscribers.
	VisibilityMafiaPrivate Visibility = "MAFIA_PRIVATE"
	// VisibilityRolePrivate events reach role-view and admin subscribers.
	VisibilityRolePrivate Visibility = "ROLE_PRIVATE"
	// VisibilityAdmin events reach full-visibility operators only.
	VisibilityAdmin Visibility = "ADMIN"
)

// IsValid reports whether the visibility tag is known.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPublic, VisibilityMafiaPrivate, VisibilityRolePrivate, VisibilityAdmin:
		return true
	}
	return false
}

// Event represents an immutable event in the session journal.
type Event struct {
	// SessionID is the session this event belongs to.
	SessionID string
	// Seq is the event sequence number within the session (starts at 1).
	// Assigned by storage on append; strictly increasing, gapless.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// PrevHash links to the previous event's hash for integrity detection.
	PrevHash string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// Visibility classifies which subscriber grants may receive the event.
	Visibility Visibility
	// ActorID is the player that triggered the event, empty for system events.
	ActorID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "night", "day").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
