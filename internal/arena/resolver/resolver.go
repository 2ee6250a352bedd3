// Package resolver solicits persona decisions and reduces them into phase
// outcomes under the game rules. Solicitations within a step run in
// parallel; results always join in roster order so reductions stay
// deterministic regardless of completion order.
package resolver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/oracle"
	"github.com/louisbranch/nightfall/internal/arena/state"
)

const defaultConsensusRounds = 3

// Resolver reduces oracle decisions into phase outcomes.
type Resolver struct {
	oracle              oracle.Oracle
	consensusRounds     int
	forbidRepeatProtect bool
}

// Option configures a resolver.
type Option func(*Resolver)

// WithConsensusRounds caps the mafia proposal rounds before defaulting to no
// kill.
func WithConsensusRounds(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.consensusRounds = n
		}
	}
}

// WithForbidRepeatProtect forbids doctors from protecting the same target on
// consecutive nights.
func WithForbidRepeatProtect(enabled bool) Option {
	return func(r *Resolver) {
		r.forbidRepeatProtect = enabled
	}
}

// New creates a resolver backed by the given oracle.
func New(o oracle.Oracle, opts ...Option) *Resolver {
	r := &Resolver{
		oracle:          o,
		consensusRounds: defaultConsensusRounds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// solicitAll queries the oracle for each player concurrently and returns
// decisions indexed to match the players slice.
func (r *Resolver) solicitAll(ctx context.Context, players []domain.Player, build func(domain.Player) oracle.Request) ([]oracle.Decision, error) {
	decisions := make([]oracle.Decision, len(players))
	g, ctx := errgroup.WithContext(ctx)
	for i, player := range players {
		g.Go(func() error {
			decision, err := r.oracle.Decide(ctx, build(player))
			if err != nil {
				return fmt.Errorf("solicit %s: %w", player.ID, err)
			}
			decisions[i] = decision
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// candidates converts players to oracle candidates in roster order.
func candidates(players []domain.Player) []oracle.Candidate {
	out := make([]oracle.Candidate, 0, len(players))
	for _, p := range players {
		out = append(out, oracle.Candidate{ID: p.ID, Name: p.Name})
	}
	return out
}

// aliveExcept returns alive players excluding the given ids.
func aliveExcept(g state.Game, exclude ...string) []domain.Player {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]domain.Player, 0, len(g.Session.Players))
	for _, p := range g.Session.AlivePlayers() {
		if _, ok := skip[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// publicContext builds the memory lines every persona is entitled to.
func publicContext(g state.Game) []string {
	lines := make([]string, 0, len(g.Statements)+1)
	alive := g.Session.AlivePlayers()
	names := make([]string, 0, len(alive))
	for _, p := range alive {
		names = append(names, p.Name)
	}
	lines = append(lines, fmt.Sprintf("Alive players: %v", names))
	for _, s := range g.Statements {
		if p, ok := g.Session.Player(s.ActorID); ok {
			lines = append(lines, fmt.Sprintf("Day %d, %s said: %s", s.Day, p.Name, s.Text))
		}
	}
	return lines
}

// mafiaContext adds the full untruncated mafia exchange.
func mafiaContext(g state.Game) []string {
	lines := publicContext(g)
	for _, entry := range g.MafiaChat {
		if p, ok := g.Session.Player(entry.ActorID); ok {
			lines = append(lines, fmt.Sprintf("Mafia chat (night %d): %s: %s", entry.Round, p.Name, entry.Message))
		}
	}
	return lines
}

// sheriffContext adds the sheriff's own prior investigation results.
func sheriffContext(g state.Game, sheriffID string) []string {
	lines := publicContext(g)
	for _, inv := range g.Investigations {
		if inv.SheriffID != sheriffID {
			continue
		}
		if p, ok := g.Session.Player(inv.TargetID); ok {
			lines = append(lines, fmt.Sprintf("Your investigation of %s found roles %v", p.Name, inv.Roles))
		}
	}
	return lines
}
