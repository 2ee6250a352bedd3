package resolver

import (
	"context"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/oracle"
	"github.com/louisbranch/nightfall/internal/arena/state"
)

// noKillKey marks the no-kill option in proposal tallies. Player ids are
// url-safe base32, so the sentinel cannot collide.
const noKillKey = "!no_kill"

// ChatMessage is one mafia utterance produced during consensus.
type ChatMessage struct {
	ActorID       string
	ProposalRound int
	Message       string
	Reasoning     string
	Degraded      bool
}

// KillProposal is one mafia member's target preference for a proposal round.
type KillProposal struct {
	ActorID       string
	ProposalRound int
	TargetID      string
	NoKill        bool
	Reasoning     string
	Degraded      bool
}

// MafiaOutcome is the reduced result of the mafia exchange: the full chat
// transcript, every proposal, and the agreed target if consensus was reached.
type MafiaOutcome struct {
	Chat      []ChatMessage
	Proposals []KillProposal
	TargetID  string
	NoKill    bool
	Rounds    int
}

// MafiaConsensus runs the shared mafia exchange. Each proposal round every
// alive mafia member speaks, then proposes a target or no kill. A strict
// plurality (unique maximum) settles the round; a tie re-proposes until the
// round cap, which defaults to no kill.
func (r *Resolver) MafiaConsensus(ctx context.Context, g state.Game) (MafiaOutcome, error) {
	outcome := MafiaOutcome{NoKill: true}
	mafia := g.Session.AliveWithRole(domain.RoleMafia)
	if len(mafia) == 0 {
		return outcome, nil
	}

	mafiaIDs := make([]string, 0, len(mafia))
	for _, m := range mafia {
		mafiaIDs = append(mafiaIDs, m.ID)
	}
	targets := candidates(aliveExcept(g, mafiaIDs...))

	transcript := mafiaContext(g)
	for round := 1; round <= r.consensusRounds; round++ {
		outcome.Rounds = round

		chat, err := r.solicitAll(ctx, mafia, func(p domain.Player) oracle.Request {
			return oracle.Request{
				SessionID: g.Session.ID,
				Capacity:  oracle.CapacityMafiaChat,
				Player:    p,
				Phase:     g.Session.Phase,
				Day:       g.Session.Day,
				Round:     g.Session.Round,
				AllowNone: true,
				Context:   transcript,
			}
		})
		if err != nil {
			return outcome, err
		}
		for i, decision := range chat {
			if decision.Statement == "" {
				continue
			}
			outcome.Chat = append(outcome.Chat, ChatMessage{
				ActorID:       mafia[i].ID,
				ProposalRound: round,
				Message:       decision.Statement,
				Reasoning:     decision.Reasoning,
				Degraded:      decision.Degraded,
			})
			transcript = append(transcript, mafia[i].Name+": "+decision.Statement)
		}

		proposals, err := r.solicitAll(ctx, mafia, func(p domain.Player) oracle.Request {
			return oracle.Request{
				SessionID:  g.Session.ID,
				Capacity:   oracle.CapacityKillProposal,
				Player:     p,
				Phase:      g.Session.Phase,
				Day:        g.Session.Day,
				Round:      g.Session.Round,
				Candidates: targets,
				AllowNone:  true,
				Context:    transcript,
			}
		})
		if err != nil {
			return outcome, err
		}

		tally := make(map[string]int, len(proposals))
		for i, decision := range proposals {
			proposal := KillProposal{
				ActorID:       mafia[i].ID,
				ProposalRound: round,
				TargetID:      decision.TargetID,
				NoKill:        decision.None,
				Reasoning:     decision.Reasoning,
				Degraded:      decision.Degraded,
			}
			outcome.Proposals = append(outcome.Proposals, proposal)
			key := decision.TargetID
			if decision.None {
				key = noKillKey
			}
			tally[key]++
		}

		if winner, ok := uniqueMaximum(tally); ok {
			outcome.NoKill = winner == noKillKey
			if !outcome.NoKill {
				outcome.TargetID = winner
			}
			return outcome, nil
		}
	}

	// Round cap exhausted without consensus: the night passes with no kill.
	return outcome, nil
}

// uniqueMaximum returns the key holding a strict plurality of the tally.
func uniqueMaximum(tally map[string]int) (string, bool) {
	best, bestCount, dup := "", 0, false
	for key, count := range tally {
		switch {
		case count > bestCount:
			best, bestCount, dup = key, count, false
		case count == bestCount:
			dup = true
		}
	}
	if bestCount == 0 || dup {
		return "", false
	}
	return best, true
}

// Protection is one doctor's protect choice for the night.
type Protection struct {
	DoctorID  string
	TargetID  string
	Reasoning string
	Degraded  bool
}

// DoctorProtections solicits every alive doctor independently. Doctors may
// protect anyone alive, themselves included; with the no-repeat rule enabled
// the previous night's target is removed from the candidate set.
func (r *Resolver) DoctorProtections(ctx context.Context, g state.Game) ([]Protection, error) {
	doctors := g.Session.AliveWithRole(domain.RoleDoctor)
	if len(doctors) == 0 {
		return nil, nil
	}

	decisions, err := r.solicitAll(ctx, doctors, func(p domain.Player) oracle.Request {
		options := g.Session.AlivePlayers()
		if r.forbidRepeatProtect && p.LastProtectedTargetID != "" {
			options = aliveExcept(g, p.LastProtectedTargetID)
		}
		return oracle.Request{
			SessionID:  g.Session.ID,
			Capacity:   oracle.CapacityProtect,
			Player:     p,
			Phase:      g.Session.Phase,
			Day:        g.Session.Day,
			Round:      g.Session.Round,
			Candidates: candidates(options),
			Context:    publicContext(g),
		}
	})
	if err != nil {
		return nil, err
	}

	protections := make([]Protection, 0, len(doctors))
	for i, decision := range decisions {
		protections = append(protections, Protection{
			DoctorID:  doctors[i].ID,
			TargetID:  decision.TargetID,
			Reasoning: decision.Reasoning,
			Degraded:  decision.Degraded,
		})
	}
	return protections, nil
}

// InvestigationResult is one sheriff's result: the target's complete role
// set, never a single role.
type InvestigationResult struct {
	SheriffID string
	TargetID  string
	Roles     []domain.Role
	Reasoning string
	Degraded  bool
}

// SheriffInvestigations solicits every alive sheriff independently. Each
// result reveals the target's full assigned role set to that sheriff alone.
func (r *Resolver) SheriffInvestigations(ctx context.Context, g state.Game) ([]InvestigationResult, error) {
	sheriffs := g.Session.AliveWithRole(domain.RoleSheriff)
	if len(sheriffs) == 0 {
		return nil, nil
	}

	decisions, err := r.solicitAll(ctx, sheriffs, func(p domain.Player) oracle.Request {
		return oracle.Request{
			SessionID:  g.Session.ID,
			Capacity:   oracle.CapacityInvestigate,
			Player:     p,
			Phase:      g.Session.Phase,
			Day:        g.Session.Day,
			Round:      g.Session.Round,
			Candidates: candidates(aliveExcept(g, p.ID)),
			Context:    sheriffContext(g, p.ID),
		}
	})
	if err != nil {
		return nil, err
	}

	results := make([]InvestigationResult, 0, len(sheriffs))
	for i, decision := range decisions {
		result := InvestigationResult{
			SheriffID: sheriffs[i].ID,
			TargetID:  decision.TargetID,
			Reasoning: decision.Reasoning,
			Degraded:  decision.Degraded,
		}
		if target, ok := g.Session.Player(decision.TargetID); ok {
			result.Roles = target.Roles.List()
		}
		results = append(results, result)
	}
	return results, nil
}

// ShotAttempt is a vigilante shot that was not accepted.
type ShotAttempt struct {
	ActorID  string
	TargetID string
	Reason   string
}

// ShotOutcome is the reduced vigilante result. At most one shot is accepted
// per session; later attempts in the same night are rejected against the
// shared gate.
type ShotOutcome struct {
	Fired     bool
	ActorID   string
	TargetID  string
	Reasoning string
	Degraded  bool
	Rejected  []ShotAttempt
}

// VigilanteAction solicits every alive vigilante. Holding fire never spends
// the shot. When more than one vigilante fires in the same night, the first
// in roster order is accepted and the rest are rejected.
func (r *Resolver) VigilanteAction(ctx context.Context, g state.Game) (ShotOutcome, error) {
	var outcome ShotOutcome
	vigilantes := g.Session.AliveWithRole(domain.RoleVigilante)
	if len(vigilantes) == 0 {
		return outcome, nil
	}

	decisions, err := r.solicitAll(ctx, vigilantes, func(p domain.Player) oracle.Request {
		return oracle.Request{
			SessionID:  g.Session.ID,
			Capacity:   oracle.CapacityShoot,
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
		return outcome, err
	}

	spent := g.Session.VigilanteShotUsed
	for i, decision := range decisions {
		if decision.None {
			continue
		}
		if spent {
			outcome.Rejected = append(outcome.Rejected, ShotAttempt{
				ActorID:  vigilantes[i].ID,
				TargetID: decision.TargetID,
				Reason:   "shot already spent",
			})
			continue
		}
		spent = true
		outcome.Fired = true
		outcome.ActorID = vigilantes[i].ID
		outcome.TargetID = decision.TargetID
		outcome.Reasoning = decision.Reasoning
		outcome.Degraded = decision.Degraded
	}
	return outcome, nil
}

// NightResolution reduces the night's proposed deaths against protections.
type NightResolution struct {
	KillTargetID           string
	ShotTargetID           string
	Killed                 []string
	BlockedIDs             []string
	ProtectionPreventsKill bool
}

// ResolveNight applies the union of protections to the agreed kill and the
// accepted shot. A protected target survives; protection never transfers.
func ResolveNight(mafia MafiaOutcome, shot ShotOutcome, protections []Protection) NightResolution {
	protected := make(map[string]struct{}, len(protections))
	for _, p := range protections {
		if p.TargetID != "" {
			protected[p.TargetID] = struct{}{}
		}
	}

	var resolution NightResolution
	killed := make(map[string]struct{}, 2)

	if !mafia.NoKill && mafia.TargetID != "" {
		resolution.KillTargetID = mafia.TargetID
		if _, ok := protected[mafia.TargetID]; ok {
			resolution.ProtectionPreventsKill = true
			resolution.BlockedIDs = append(resolution.BlockedIDs, mafia.TargetID)
		} else {
			killed[mafia.TargetID] = struct{}{}
			resolution.Killed = append(resolution.Killed, mafia.TargetID)
		}
	}

	if shot.Fired && shot.TargetID != "" {
		resolution.ShotTargetID = shot.TargetID
		if _, ok := protected[shot.TargetID]; ok {
			if shot.TargetID != resolution.KillTargetID {
				resolution.BlockedIDs = append(resolution.BlockedIDs, shot.TargetID)
			}
		} else if _, dead := killed[shot.TargetID]; !dead {
			resolution.Killed = append(resolution.Killed, shot.TargetID)
		}
	}

	return resolution
}
