package domain

// Status identifies the lifecycle state of a session.
type Status string

const (
	// StatusCreated indicates a session that has not started running.
	StatusCreated Status = "CREATED"
	// StatusRunning indicates an actively advancing session.
	StatusRunning Status = "RUNNING"
	// StatusPaused indicates a checkpointed, suspended session.
	StatusPaused Status = "PAUSED"
	// StatusEnded indicates a session that reached a win condition.
	StatusEnded Status = "ENDED"
	// StatusCancelled indicates a session terminated by an operator.
	StatusCancelled Status = "CANCELLED"
	// StatusFailed indicates a session terminated by an integrity failure.
	StatusFailed Status = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled || s == StatusFailed
}

// CanTransitionTo reports whether a status transition is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusCreated:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusPaused || next == StatusEnded || next == StatusCancelled || next == StatusFailed
	case StatusPaused:
		return next == StatusRunning || next == StatusCancelled || next == StatusFailed
	}
	return false
}

// Winner identifies the faction that won a session.
type Winner string

const (
	// WinnerNone indicates no winner yet.
	WinnerNone Winner = ""
	// WinnerTown indicates the town faction won.
	WinnerTown Winner = "TOWN"
	// WinnerMafia indicates the mafia faction won.
	WinnerMafia Winner = "MAFIA"
)

// Phase identifies the current stage of the session state machine.
type Phase string

const (
	// PhaseSetup covers persona materialization and role assignment.
	PhaseSetup Phase = "SETUP"
	// PhaseNightActions covers the ordered night sub-sequence.
	PhaseNightActions Phase = "NIGHT_ACTIONS"
	// PhaseMorningReveal announces night outcomes.
	PhaseMorningReveal Phase = "MORNING_REVEAL"
	// PhaseDayDiscussion collects public statements.
	PhaseDayDiscussion Phase = "DAY_DISCUSSION"
	// PhaseDayVoting collects and tallies votes.
	PhaseDayVoting Phase = "DAY_VOTING"
	// PhaseResolution applies the vote outcome.
	PhaseResolution Phase = "RESOLUTION"
	// PhaseEnd is the terminal phase.
	PhaseEnd Phase = "END"
)

// NightStep identifies a sub-step of the night phase, executed in order.
type NightStep string

const (
	// NightStepMafiaChat is the shared mafia kill-target exchange.
	NightStepMafiaChat NightStep = "MAFIA_CHAT"
	// NightStepDoctorAction collects independent protections.
	NightStepDoctorAction NightStep = "DOCTOR_ACTION"
	// NightStepSheriffInvestigation collects independent investigations.
	NightStepSheriffInvestigation NightStep = "SHERIFF_INVESTIGATION"
	// NightStepVigilanteAction collects the gated vigilante shot.
	NightStepVigilanteAction NightStep = "VIGILANTE_ACTION"
	// NightStepNightResolution reduces proposals against protections.
	NightStepNightResolution NightStep = "NIGHT_RESOLUTION"
)

// Session is one complete run of the game from setup to a terminal state.
// It is mutated only through the pure state transition function; the round,
// day, and sequence counters are owned exclusively by the controlling
// instance, never by ambient globals.
type Session struct {
	ID      string   `json:"id"`
	Players []Player `json:"players"`
	Phase   Phase    `json:"phase"`
	Day     int      `json:"day"`
	Round   int      `json:"round"`
	Status  Status   `json:"status"`
	Winner  Winner   `json:"winner,omitempty"`
	// VigilanteShotUsed is the session-wide one-shot gate shared by every
	// vigilante-role holder. It flips false to true at most once.
	VigilanteShotUsed bool `json:"vigilante_shot_used"`
}

// Player returns the roster entry with the given id.
func (s Session) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// AlivePlayers returns the alive roster members in roster order.
func (s Session) AlivePlayers() []Player {
	out := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// AliveWithRole returns alive players holding the role, in roster order.
func (s Session) AliveWithRole(r Role) []Player {
	out := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive && p.Roles.Has(r) {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	clone := s
	clone.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		clone.Players[i] = p.Clone()
	}
	return clone
}
