// Package oracle defines the decision boundary between the engine and the
// language models playing the personas. The engine treats every oracle as an
// unreliable collaborator: decisions are validated against the legal move
// set, failures degrade to deterministic defaults, and the session never
// stalls on a misbehaving model.
package oracle

import (
	"context"
	"sync"

	"github.com/louisbranch/nightfall/internal/arena/domain"
)

// Capacity identifies what kind of decision is being solicited.
type Capacity string

const (
	// CapacityMafiaChat solicits one utterance of the mafia exchange.
	CapacityMafiaChat Capacity = "MAFIA_CHAT"
	// CapacityKillProposal solicits a mafia member's kill target preference.
	CapacityKillProposal Capacity = "KILL_PROPOSAL"
	// CapacityProtect solicits a doctor's protect target.
	CapacityProtect Capacity = "PROTECT"
	// CapacityInvestigate solicits a sheriff's investigation target.
	CapacityInvestigate Capacity = "INVESTIGATE"
	// CapacityShoot solicits the vigilante's shoot-or-hold choice.
	CapacityShoot Capacity = "SHOOT"
	// CapacityStatement solicits a public day statement.
	CapacityStatement Capacity = "STATEMENT"
	// CapacityVote solicits a day vote or abstention.
	CapacityVote Capacity = "VOTE"
)

// Candidate is one legal target for the solicited decision.
type Candidate struct {
	ID   string
	Name string
}

// Request is one solicitation of a persona decision. Context carries the
// private memory lines the persona is entitled to: the full mafia exchange
// for mafia, prior investigation results for sheriffs, public statements for
// everyone.
type Request struct {
	SessionID  string
	Capacity   Capacity
	Player     domain.Player
	Phase      domain.Phase
	Day        int
	Round      int
	Candidates []Candidate
	// AllowNone permits abstaining (vote), holding fire (vigilante), or
	// proposing no kill (mafia).
	AllowNone bool
	Context   []string
}

// Decision is the persona's answer. Reasoning is opaque text retained for
// operator audit; it never feeds back into rule enforcement.
type Decision struct {
	Reasoning string
	Statement string
	TargetID  string
	None      bool
	// Degraded marks a decision substituted by the deterministic fallback
	// after the oracle failed or timed out.
	Degraded bool
}

// Oracle produces decisions for persona solicitations.
type Oracle interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, req Request) (Decision, error)

// Decide implements Oracle.
func (f Func) Decide(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Scripted is a deterministic oracle that replays queued decisions per
// player, in order. Used in tests and dry runs.
type Scripted struct {
	mu     sync.Mutex
	queues map[string][]Decision
}

// NewScripted creates an empty scripted oracle.
func NewScripted() *Scripted {
	return &Scripted{queues: make(map[string][]Decision)}
}

// Queue appends decisions to a player's script.
func (s *Scripted) Queue(playerID string, decisions ...Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[playerID] = append(s.queues[playerID], decisions...)
}

// Decide pops the next scripted decision for the requesting player. An
// exhausted script abstains when the request allows it and otherwise targets
// the first candidate, so scripts only need to cover the moves under test.
func (s *Scripted) Decide(_ context.Context, req Request) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[req.Player.ID]
	if len(queue) == 0 {
		return Fallback(req), nil
	}
	decision := queue[0]
	s.queues[req.Player.ID] = queue[1:]
	return decision, nil
}

// Fallback returns the deterministic default decision for a request: abstain
// when the request allows it, otherwise the first legal candidate in roster
// order. The result is marked degraded.
func Fallback(req Request) Decision {
	decision := Decision{Degraded: true}
	switch {
	case req.AllowNone:
		decision.None = true
	case len(req.Candidates) > 0:
		decision.TargetID = req.Candidates[0].ID
	default:
		decision.None = true
	}
	return decision
}
