package resolver

import (
	"context"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/oracle"
	"github.com/louisbranch/nightfall/internal/arena/state"
)

// StatementRecord is one public statement collected during discussion.
type StatementRecord struct {
	ActorID   string
	Statement string
	Reasoning string
	Degraded  bool
}

// DayStatements collects one public statement from each alive player in
// roster order. Solicitation is sequential so each speaker hears everything
// said before their turn.
func (r *Resolver) DayStatements(ctx context.Context, g state.Game) ([]StatementRecord, error) {
	alive := g.Session.AlivePlayers()
	statements := make([]StatementRecord, 0, len(alive))
	heard := publicContext(g)

	for _, player := range alive {
		decision, err := r.oracle.Decide(ctx, oracle.Request{
			SessionID: g.Session.ID,
			Capacity:  oracle.CapacityStatement,
			Player:    player,
			Phase:     g.Session.Phase,
			Day:       g.Session.Day,
			Round:     g.Session.Round,
			AllowNone: true,
			Context:   heard,
		})
		if err != nil {
			return statements, err
		}
		if decision.Statement == "" {
			continue
		}
		statements = append(statements, StatementRecord{
			ActorID:   player.ID,
			Statement: decision.Statement,
			Reasoning: decision.Reasoning,
			Degraded:  decision.Degraded,
		})
		heard = append(heard, player.Name+" said: "+decision.Statement)
	}
	return statements, nil
}

// Vote is one player's day vote or abstention.
type Vote struct {
	VoterID   string
	TargetID  string
	Abstain   bool
	Reasoning string
	Degraded  bool
}

// VoteOutcome is the reduced result of a voting round.
type VoteOutcome struct {
	Votes        []Vote
	Tally        map[string]int
	Abstentions  int
	EliminatedID string
	Tie          bool
}

// DayVotes solicits a vote from every alive player in parallel and tallies
// the result. Nobody may vote for themselves.
func (r *Resolver) DayVotes(ctx context.Context, g state.Game) (VoteOutcome, error) {
	alive := g.Session.AlivePlayers()

	decisions, err := r.solicitAll(ctx, alive, func(p domain.Player) oracle.Request {
		return oracle.Request{
			SessionID:  g.Session.ID,
			Capacity:   oracle.CapacityVote,
			Player:     p,
			Phase:      g.Session.Phase,
			Day:        g.Session.Day,
			Round:      g.Session.Round,
			Candidates: candidates(aliveExcept(g, p.ID)),
			AllowNone:  true,
			Context:    publicContext(g),
		}
	})
	if err != nil {
		return VoteOutcome{}, err
	}

	votes := make([]Vote, 0, len(alive))
	for i, decision := range decisions {
		votes = append(votes, Vote{
			VoterID:   alive[i].ID,
			TargetID:  decision.TargetID,
			Abstain:   decision.None,
			Reasoning: decision.Reasoning,
			Degraded:  decision.Degraded,
		})
	}
	return TallyVotes(votes, len(alive)), nil
}

// TallyVotes reduces votes to an outcome. Elimination requires a strict
// majority of all alive voters, abstentions included in the denominator. A
// shared leading count is a tie; ties and sub-majority leads eliminate
// nobody.
func TallyVotes(votes []Vote, aliveCount int) VoteOutcome {
	outcome := VoteOutcome{
		Votes: votes,
		Tally: make(map[string]int),
	}
	for _, vote := range votes {
		if vote.Abstain || vote.TargetID == "" {
			outcome.Abstentions++
			continue
		}
		outcome.Tally[vote.TargetID]++
	}

	leader, leaderCount, shared := "", 0, false
	for target, count := range outcome.Tally {
		switch {
		case count > leaderCount:
			leader, leaderCount, shared = target, count, false
		case count == leaderCount:
			shared = true
		}
	}
	if leaderCount > 0 && shared {
		outcome.Tie = true
		return outcome
	}
	if leaderCount*2 > aliveCount {
		outcome.EliminatedID = leader
	}
	return outcome
}
