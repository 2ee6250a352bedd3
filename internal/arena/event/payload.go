package event

import "github.com/louisbranch/nightfall/internal/arena/domain"

// RosterEntry is the public projection of a player at creation time.
// Roles are deliberately absent: persona materialization completes before
// any role is assigned.
type RosterEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// SessionCreatedPayload captures the payload for session.created events.
type SessionCreatedPayload struct {
	PlayerCount int           `json:"player_count"`
	Roster      []RosterEntry `json:"roster"`
	Seed        uint64        `json:"seed"`
}

// RoleAssignment binds one roster entry to its role set.
type RoleAssignment struct {
	PlayerID string        `json:"player_id"`
	Roles    []domain.Role `json:"roles"`
}

// RolesAssignedPayload captures the payload for session.roles_assigned events.
type RolesAssignedPayload struct {
	Assignments []RoleAssignment `json:"assignments"`
}

// SessionStatusPayload captures status transitions (started, paused, resumed,
// cancelled).
type SessionStatusPayload struct {
	FromStatus domain.Status `json:"from_status"`
	ToStatus   domain.Status `json:"to_status"`
}

// SessionEndedPayload captures the payload for session.ended events.
type SessionEndedPayload struct {
	Winner domain.Winner `json:"winner"`
	Day    int           `json:"day"`
	Round  int           `json:"round"`
}

// SessionFailedPayload captures the payload for session.failed events.
type SessionFailedPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// PhaseEnteredPayload captures the payload for phase.entered events.
type PhaseEnteredPayload struct {
	Phase domain.Phase `json:"phase"`
	Day   int          `json:"day"`
	Round int          `json:"round"`
}

// MafiaChatMessagePayload captures one utterance of the mafia exchange.
// The full exchange is retained as mafia memory for the rest of the game;
// it is bounded by game length, never truncated by a window.
type MafiaChatMessagePayload struct {
	ProposalRound int    `json:"proposal_round"`
	Message       string `json:"message"`
	Degraded      bool   `json:"degraded,omitempty"`
}

// KillProposedPayload captures one mafia member's target preference.
type KillProposedPayload struct {
	ProposalRound int    `json:"proposal_round"`
	TargetID      string `json:"target_id,omitempty"`
	NoKill        bool   `json:"no_kill,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
}

// KillAgreedPayload captures the resolved mafia kill target.
type KillAgreedPayload struct {
	TargetID string `json:"target_id,omitempty"`
	NoKill   bool   `json:"no_kill"`
	Rounds   int    `json:"rounds"`
}

// ProtectionSetPayload captures one doctor's protect choice.
type ProtectionSetPayload struct {
	TargetID string `json:"target_id,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// InvestigationPayload captures one sheriff's result: the target's complete
// role set, never a single role.
type InvestigationPayload struct {
	TargetID string        `json:"target_id"`
	Roles    []domain.Role `json:"roles"`
	Degraded bool          `json:"degraded,omitempty"`
}

// ShotFiredPayload captures the accepted vigilante shot.
type ShotFiredPayload struct {
	TargetID string `json:"target_id"`
	Degraded bool   `json:"degraded,omitempty"`
}

// ShotRejectedPayload captures a shot attempt with the flag already spent.
type ShotRejectedPayload struct {
	TargetID string `json:"target_id,omitempty"`
	Reason   string `json:"reason"`
}

// NightResolvedPayload captures proposed deaths reduced against protections.
type NightResolvedPayload struct {
	KillTargetID           string   `json:"kill_target_id,omitempty"`
	ShotTargetID           string   `json:"shot_target_id,omitempty"`
	KilledIDs              []string `json:"killed_ids"`
	ProtectionPreventsKill bool     `json:"protection_prevents_kill"`
	BlockedIDs             []string `json:"blocked_ids,omitempty"`
}

// StatementMadePayload captures a public statement during discussion.
type StatementMadePayload struct {
	Statement string `json:"statement"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// VoteCastPayload captures one player's vote or abstention.
type VoteCastPayload struct {
	Round    int    `json:"round"`
	TargetID string `json:"target_id,omitempty"`
	Abstain  bool   `json:"abstain,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// VoteResultPayload captures the tally outcome.
type VoteResultPayload struct {
	Round              int            `json:"round"`
	EliminatedPlayerID string         `json:"eliminated_player_id,omitempty"`
	Tie                bool           `json:"tie"`
	Tally              map[string]int `json:"tally"`
	Abstentions        int            `json:"abstentions"`
}

// EliminationCause identifies what killed a player.
type EliminationCause string

const (
	// CauseNightKill is a mafia kill that survived protection.
	CauseNightKill EliminationCause = "night_kill"
	// CauseVigilanteShot is a vigilante shot that survived protection.
	CauseVigilanteShot EliminationCause = "vigilante_shot"
	// CauseDayVote is a strict-majority day vote.
	CauseDayVote EliminationCause = "day_vote"
)

// PlayerEliminatedPayload captures a death. The roles of the dead player are
// revealed publicly.
type PlayerEliminatedPayload struct {
	PlayerID string           `json:"player_id"`
	Cause    EliminationCause `json:"cause"`
	Roles    []domain.Role    `json:"roles"`
	Day      int              `json:"day"`
}

// OracleThoughtPayload captures opaque reasoning text for operator audit.
type OracleThoughtPayload struct {
	Phase     domain.Phase `json:"phase"`
	Reasoning string       `json:"reasoning"`
	Degraded  bool         `json:"degraded,omitempty"`
}
