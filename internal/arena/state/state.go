// Package state holds the derived session state and the pure transition
// function that folds journal events into it. Live execution and recovery
// replay go through the same Apply, so replaying a session's full log from
// sequence 0 reproduces exactly the state captured in any snapshot.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/event"
)

// ChatEntry is one utterance of the mafia exchange, retained untruncated as
// mafia memory for the rest of the game.
type ChatEntry struct {
	ActorID       string `json:"actor_id"`
	Round         int    `json:"round"`
	ProposalRound int    `json:"proposal_round"`
	Message       string `json:"message"`
}

// Investigation is one sheriff's private memory of a completed investigation.
type Investigation struct {
	SheriffID string        `json:"sheriff_id"`
	TargetID  string        `json:"target_id"`
	Roles     []domain.Role `json:"roles"`
	Round     int           `json:"round"`
}

// Statement is one public utterance during day discussion.
type Statement struct {
	ActorID string `json:"actor_id"`
	Day     int    `json:"day"`
	Text    string `json:"text"`
}

// Game is the full reconstructable session state: the session roster plus the
// role-private memory derived from the journal.
type Game struct {
	Session        domain.Session  `json:"session"`
	MafiaChat      []ChatEntry     `json:"mafia_chat,omitempty"`
	Investigations []Investigation `json:"investigations,omitempty"`
	Statements     []Statement     `json:"statements,omitempty"`
}

// Clone returns a deep copy of the game state.
func (g Game) Clone() Game {
	clone := g
	clone.Session = g.Session.Clone()
	if g.MafiaChat != nil {
		clone.MafiaChat = append([]ChatEntry(nil), g.MafiaChat...)
	}
	if g.Investigations != nil {
		clone.Investigations = append([]Investigation(nil), g.Investigations...)
	}
	if g.Statements != nil {
		clone.Statements = append([]Statement(nil), g.Statements...)
	}
	return clone
}

// Marshal encodes the game state canonically for snapshots.
func (g Game) Marshal() ([]byte, error) {
	return json.Marshal(g)
}

// Unmarshal decodes a snapshot payload into a game state.
func Unmarshal(data []byte) (Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return Game{}, fmt.Errorf("unmarshal game state: %w", err)
	}
	return g, nil
}

// Apply folds a single event into the state and returns the next state. The
// input state is never mutated. Event types with no state effect return the
// state unchanged.
func Apply(g Game, evt event.Event) (Game, error) {
	switch evt.Type {
	case event.TypeSessionCreated:
		var payload event.SessionCreatedPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := Game{Session: domain.Session{
			ID:      evt.SessionID,
			Phase:   domain.PhaseSetup,
			Status:  domain.StatusCreated,
			Players: make([]domain.Player, 0, len(payload.Roster)),
		}}
		for _, entry := range payload.Roster {
			next.Session.Players = append(next.Session.Players, domain.Player{
				ID:    entry.PlayerID,
				Name:  entry.Name,
				Roles: domain.NewRoleSet(),
				Alive: true,
			})
		}
		return next, nil

	case event.TypeRolesAssigned:
		var payload event.RolesAssignedPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		byID := make(map[string][]domain.Role, len(payload.Assignments))
		for _, a := range payload.Assignments {
			byID[a.PlayerID] = a.Roles
		}
		for i, p := range next.Session.Players {
			roles, ok := byID[p.ID]
			if !ok {
				return g, fmt.Errorf("no role assignment for player %s", p.ID)
			}
			next.Session.Players[i].Roles = domain.NewRoleSet(roles...)
		}
		return next, nil

	case event.TypeSessionStarted, event.TypeSessionPaused, event.TypeSessionResumed, event.TypeSessionCancelled:
		var payload event.SessionStatusPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		next.Session.Status = payload.ToStatus
		return next, nil

	case event.TypeSessionEnded:
		var payload event.SessionEndedPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		next.Session.Status = domain.StatusEnded
		next.Session.Winner = payload.Winner
		next.Session.Phase = domain.PhaseEnd
		return next, nil

	case event.TypeSessionFailed:
		next := g.Clone()
		next.Session.Status = domain.StatusFailed
		return next, nil

	case event.TypePhaseEntered:
		var payload event.PhaseEnteredPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		next.Session.Phase = payload.Phase
		next.Session.Day = payload.Day
		next.Session.Round = payload.Round
		return next, nil

	case event.TypeMafiaChatMessage:
		var payload event.MafiaChatMessagePayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		next.MafiaChat = append(next.MafiaChat, ChatEntry{
			ActorID:       evt.ActorID,
			Round:         g.Session.Round,
			ProposalRound: payload.ProposalRound,
			Message:       payload.Message,
		})
		return next, nil

	case event.TypeProtectionSet:
		var payload event.ProtectionSetPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		for i, p := range next.Session.Players {
			if p.ID == evt.ActorID {
				next.Session.Players[i].LastProtectedTargetID = payload.TargetID
			}
		}
		return next, nil

	case event.TypeInvestigationDone:
		var payload event.InvestigationPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		next.Investigations = append(next.Investigations, Investigation{
			SheriffID: evt.ActorID,
			TargetID:  payload.TargetID,
			Roles:     payload.Roles,
			Round:     g.Session.Round,
		})
		return next, nil

	case event.TypeShotFired:
		next := g.Clone()
		next.Session.VigilanteShotUsed = true
		return next, nil

	case event.TypeStatementMade:
		var payload event.StatementMadePayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		next.Statements = append(next.Statements, Statement{
			ActorID: evt.ActorID,
			Day:     g.Session.Day,
			Text:    payload.Statement,
		})
		return next, nil

	case event.TypePlayerEliminated:
		var payload event.PlayerEliminatedPayload
		if err := unmarshalPayload(evt, &payload); err != nil {
			return g, err
		}
		next := g.Clone()
		for i, p := range next.Session.Players {
			if p.ID == payload.PlayerID {
				next.Session.Players[i].Alive = false
			}
		}
		return next, nil
	}

	return g, nil
}

// Applier adapts Apply to the replay applier contract.
type Applier struct{}

// Apply implements the replay applier over Game states.
func (Applier) Apply(s any, evt event.Event) (any, error) {
	g, ok := s.(Game)
	if !ok {
		return s, fmt.Errorf("state is not a game: %T", s)
	}
	return Apply(g, evt)
}

func unmarshalPayload(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", evt.Type, err)
	}
	return nil
}
