package controller

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/resolver"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

// Step advances the session by one phase. A requested pause lands here,
// between phases, never inside one.
func (c *Controller) Step(ctx context.Context, sessionID string) error {
	rt, err := c.runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	session := rt.game.Session
	if session.Status == domain.StatusEnded {
		return apperrors.New(apperrors.CodeSessionAlreadyEnded, "session has ended")
	}
	if session.Status != domain.StatusRunning {
		return apperrors.WithMetadata(apperrors.CodeSessionStatusDisallowsOp,
			"session is not running", map[string]string{"status": string(session.Status)})
	}
	if rt.pauseAsked {
		rt.pauseAsked = false
		if err := c.transitionStatus(ctx, rt, event.TypeSessionPaused, domain.StatusPaused); err != nil {
			return err
		}
		return c.snapshots.Capture(ctx, rt.game, rt.lastSeq)
	}

	err = c.stepPhase(ctx, rt)
	if err != nil && sessionFatal(err) {
		if failErr := c.fail(ctx, rt, err.Error(), errorCode(err)); failErr != nil {
			return errors.Join(err, failErr)
		}
	}
	return err
}

func (c *Controller) stepPhase(ctx context.Context, rt *runtime) error {
	ctx, span := otel.Tracer("nightfall/controller").Start(ctx, "session.step",
		trace.WithAttributes(
			attribute.String("session_id", rt.game.Session.ID),
			attribute.String("phase", string(rt.game.Session.Phase)),
			attribute.Int("day", rt.game.Session.Day),
			attribute.Int("round", rt.game.Session.Round),
		))
	defer span.End()

	switch rt.game.Session.Phase {
	case domain.PhaseSetup:
		return c.enterPhase(ctx, rt, domain.PhaseNightActions, 0, 1)
	case domain.PhaseNightActions:
		return c.stepNight(ctx, rt)
	case domain.PhaseMorningReveal:
		return c.stepMorning(ctx, rt)
	case domain.PhaseDayDiscussion:
		return c.stepDiscussion(ctx, rt)
	case domain.PhaseDayVoting:
		return c.stepVoting(ctx, rt)
	case domain.PhaseResolution:
		return c.stepResolution(ctx, rt)
	default:
		return apperrors.WithMetadata(apperrors.CodeSessionStatusDisallowsOp,
			"phase cannot be stepped", map[string]string{"phase": string(rt.game.Session.Phase)})
	}
}

// sessionFatal reports whether an error indicates journal corruption.
func sessionFatal(err error) bool {
	for _, code := range []apperrors.Code{
		apperrors.CodeEventSequenceGap,
		apperrors.CodeEventDuplicateSeq,
		apperrors.CodeEventChainBroken,
	} {
		if errors.Is(err, apperrors.New(code, "")) {
			return true
		}
	}
	return false
}

func errorCode(err error) apperrors.Code {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperrors.CodeUnknown
}

// stepNight runs the night sub-steps in fixed order: mafia exchange, doctor
// protections, sheriff investigations, vigilante action, then resolution.
func (c *Controller) stepNight(ctx context.Context, rt *runtime) error {
	sessionID := rt.game.Session.ID

	mafia, err := c.resolver.MafiaConsensus(ctx, rt.game)
	if err != nil {
		return err
	}
	for _, msg := range mafia.Chat {
		if err := c.emitThought(ctx, rt, msg.ActorID, msg.Reasoning, msg.Degraded); err != nil {
			return err
		}
		evt, err := c.emitter.EmitMafiaChatMessage(ctx, sessionID, msg.ActorID, event.MafiaChatMessagePayload{
			ProposalRound: msg.ProposalRound,
			Message:       msg.Message,
			Degraded:      msg.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}
	for _, proposal := range mafia.Proposals {
		evt, err := c.emitter.EmitKillProposed(ctx, sessionID, proposal.ActorID, event.KillProposedPayload{
			ProposalRound: proposal.ProposalRound,
			TargetID:      proposal.TargetID,
			NoKill:        proposal.NoKill,
			Degraded:      proposal.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}
	evt, err := c.emitter.EmitKillAgreed(ctx, sessionID, event.KillAgreedPayload{
		TargetID: mafia.TargetID,
		NoKill:   mafia.NoKill,
		Rounds:   mafia.Rounds,
	})
	if err := c.apply(rt, evt, err); err != nil {
		return err
	}

	protections, err := c.resolver.DoctorProtections(ctx, rt.game)
	if err != nil {
		return err
	}
	for _, protection := range protections {
		if err := c.emitThought(ctx, rt, protection.DoctorID, protection.Reasoning, protection.Degraded); err != nil {
			return err
		}
		evt, err := c.emitter.EmitProtectionSet(ctx, sessionID, protection.DoctorID, event.ProtectionSetPayload{
			TargetID: protection.TargetID,
			Degraded: protection.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}

	investigations, err := c.resolver.SheriffInvestigations(ctx, rt.game)
	if err != nil {
		return err
	}
	for _, investigation := range investigations {
		if err := c.emitThought(ctx, rt, investigation.SheriffID, investigation.Reasoning, investigation.Degraded); err != nil {
			return err
		}
		evt, err := c.emitter.EmitInvestigation(ctx, sessionID, investigation.SheriffID, event.InvestigationPayload{
			TargetID: investigation.TargetID,
			Roles:    investigation.Roles,
			Degraded: investigation.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}

	shot, err := c.resolver.VigilanteAction(ctx, rt.game)
	if err != nil {
		return err
	}
	if shot.Fired {
		if err := c.emitThought(ctx, rt, shot.ActorID, shot.Reasoning, shot.Degraded); err != nil {
			return err
		}
		evt, err := c.emitter.EmitShotFired(ctx, sessionID, shot.ActorID, event.ShotFiredPayload{
			TargetID: shot.TargetID,
			Degraded: shot.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}
	for _, attempt := range shot.Rejected {
		evt, err := c.emitter.EmitShotRejected(ctx, sessionID, attempt.ActorID, event.ShotRejectedPayload{
			TargetID: attempt.TargetID,
			Reason:   attempt.Reason,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}

	resolution := resolver.ResolveNight(mafia, shot, protections)
	resolved, err := c.emitter.Emit(ctx, event.EmitInput{
		SessionID:  sessionID,
		Type:       event.TypeNightResolved,
		Visibility: event.VisibilityAdmin,
		Payload: event.NightResolvedPayload{
			KillTargetID:           resolution.KillTargetID,
			ShotTargetID:           resolution.ShotTargetID,
			KilledIDs:              resolution.Killed,
			ProtectionPreventsKill: resolution.ProtectionPreventsKill,
			BlockedIDs:             resolution.BlockedIDs,
		},
	})
	if err := c.apply(rt, resolved, err); err != nil {
		return err
	}
	rt.pendingNight = &resolution

	return c.enterPhase(ctx, rt, domain.PhaseMorningReveal, rt.game.Session.Day, rt.game.Session.Round)
}

// stepMorning announces the night's deaths with full role reveal. The win
// condition is evaluated after each death: the first decisive one ends the
// session and any remaining death is never applied. A mafia kill that
// reaches parity wins even when the vigilante's shot would have felled the
// last mafia the same night.
func (c *Controller) stepMorning(ctx context.Context, rt *runtime) error {
	resolution := rt.pendingNight
	rt.pendingNight = nil

	if resolution != nil {
		for _, killedID := range resolution.Killed {
			player, ok := rt.game.Session.Player(killedID)
			if !ok {
				return apperrors.WithMetadata(apperrors.CodePlayerNotFound,
					"eliminated player not on roster", map[string]string{"player_id": killedID})
			}
			cause := event.CauseNightKill
			if killedID == resolution.ShotTargetID && killedID != resolution.KillTargetID {
				cause = event.CauseVigilanteShot
			}
			evt, err := c.emitter.EmitPlayerEliminated(ctx, rt.game.Session.ID, event.PlayerEliminatedPayload{
				PlayerID: killedID,
				Cause:    cause,
				Roles:    player.Roles.List(),
				Day:      rt.game.Session.Day,
			})
			if err := c.apply(rt, evt, err); err != nil {
				return err
			}
			if win := domain.EvaluateWin(rt.game.Session.Players); win != domain.WinOngoing {
				return c.endSession(ctx, rt, win)
			}
		}
	}

	if win := domain.EvaluateWin(rt.game.Session.Players); win != domain.WinOngoing {
		return c.endSession(ctx, rt, win)
	}
	return c.enterPhase(ctx, rt, domain.PhaseDayDiscussion, rt.game.Session.Day+1, rt.game.Session.Round)
}

// stepDiscussion collects public statements in roster order.
func (c *Controller) stepDiscussion(ctx context.Context, rt *runtime) error {
	statements, err := c.resolver.DayStatements(ctx, rt.game)
	if err != nil {
		return err
	}
	for _, statement := range statements {
		if err := c.emitThought(ctx, rt, statement.ActorID, statement.Reasoning, statement.Degraded); err != nil {
			return err
		}
		evt, err := c.emitter.EmitStatementMade(ctx, rt.game.Session.ID, statement.ActorID, event.StatementMadePayload{
			Statement: statement.Statement,
			Degraded:  statement.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}
	return c.enterPhase(ctx, rt, domain.PhaseDayVoting, rt.game.Session.Day, rt.game.Session.Round)
}

// stepVoting collects votes, publishes the tally, and carries the outcome to
// resolution.
func (c *Controller) stepVoting(ctx context.Context, rt *runtime) error {
	outcome, err := c.resolver.DayVotes(ctx, rt.game)
	if err != nil {
		return err
	}
	for _, vote := range outcome.Votes {
		if err := c.emitThought(ctx, rt, vote.VoterID, vote.Reasoning, vote.Degraded); err != nil {
			return err
		}
		evt, err := c.emitter.EmitVoteCast(ctx, rt.game.Session.ID, vote.VoterID, event.VoteCastPayload{
			Round:    rt.game.Session.Round,
			TargetID: vote.TargetID,
			Abstain:  vote.Abstain,
			Degraded: vote.Degraded,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}
	evt, err := c.emitter.EmitPublic(ctx, rt.game.Session.ID, event.TypeVoteResult, event.VoteResultPayload{
		Round:              rt.game.Session.Round,
		EliminatedPlayerID: outcome.EliminatedID,
		Tie:                outcome.Tie,
		Tally:              outcome.Tally,
		Abstentions:        outcome.Abstentions,
	})
	if err := c.apply(rt, evt, err); err != nil {
		return err
	}
	rt.pendingVote = &outcome

	return c.enterPhase(ctx, rt, domain.PhaseResolution, rt.game.Session.Day, rt.game.Session.Round)
}

// stepResolution applies the vote outcome, evaluates the win condition, and
// either ends the session or enters the next night.
func (c *Controller) stepResolution(ctx context.Context, rt *runtime) error {
	outcome := rt.pendingVote
	rt.pendingVote = nil

	if outcome != nil && outcome.EliminatedID != "" {
		player, ok := rt.game.Session.Player(outcome.EliminatedID)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodePlayerNotFound,
				"voted player not on roster", map[string]string{"player_id": outcome.EliminatedID})
		}
		evt, err := c.emitter.EmitPlayerEliminated(ctx, rt.game.Session.ID, event.PlayerEliminatedPayload{
			PlayerID: outcome.EliminatedID,
			Cause:    event.CauseDayVote,
			Roles:    player.Roles.List(),
			Day:      rt.game.Session.Day,
		})
		if err := c.apply(rt, evt, err); err != nil {
			return err
		}
	}

	if win := domain.EvaluateWin(rt.game.Session.Players); win != domain.WinOngoing {
		return c.endSession(ctx, rt, win)
	}
	return c.enterPhase(ctx, rt, domain.PhaseNightActions, rt.game.Session.Day, rt.game.Session.Round+1)
}

// emitThought records the persona's private reasoning for operator audit.
func (c *Controller) emitThought(ctx context.Context, rt *runtime, actorID, reasoning string, degraded bool) error {
	if reasoning == "" {
		return nil
	}
	evt, err := c.emitter.EmitOracleThought(ctx, rt.game.Session.ID, actorID, event.OracleThoughtPayload{
		Phase:     rt.game.Session.Phase,
		Reasoning: reasoning,
		Degraded:  degraded,
	})
	return c.apply(rt, evt, err)
}
