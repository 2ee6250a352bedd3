package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/event"
	"github.com/louisbranch/nightfall/internal/arena/oracle"
	"github.com/louisbranch/nightfall/internal/arena/resolver"
	"github.com/louisbranch/nightfall/internal/arena/snapshot"
	"github.com/louisbranch/nightfall/internal/arena/storage"
	"github.com/louisbranch/nightfall/internal/arena/storage/memory"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

// policyOracle plays a fixed strategy: targets the first legal candidate,
// holds the vigilante shot, and keeps statements short. Deterministic enough
// to drive any session to termination.
func policyOracle() oracle.Oracle {
	return oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Decision, error) {
		switch req.Capacity {
		case oracle.CapacityMafiaChat:
			return oracle.Decision{Statement: "the usual plan"}, nil
		case oracle.CapacityShoot:
			return oracle.Decision{None: true}, nil
		case oracle.CapacityStatement:
			return oracle.Decision{Statement: "someone here is lying", Reasoning: "stir the pot"}, nil
		default:
			if len(req.Candidates) == 0 {
				return oracle.Decision{None: true}, nil
			}
			return oracle.Decision{TargetID: req.Candidates[0].ID}, nil
		}
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func newController(t *testing.T, store storage.Store, o oracle.Oracle, opts ...Option) *Controller {
	t.Helper()
	c, err := New(store, resolver.New(o), opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func fiveNames() []string {
	return []string{"Ada", "Brice", "Cleo", "Dmitri", "Eve"}
}

func listAll(t *testing.T, store storage.Store, sessionID string) []event.Event {
	t.Helper()
	events, err := store.ListEvents(context.Background(), sessionID, 0, 100000)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return events
}

func TestCreateEmitsRosterBeforeRoles(t *testing.T) {
	store := memory.New()
	c := newController(t, store, policyOracle())

	sessionID, err := c.Create(context.Background(), CreateParams{PlayerNames: fiveNames(), Seed: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	events := listAll(t, store, sessionID)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != event.TypeSessionCreated || events[0].Visibility != event.VisibilityPublic {
		t.Errorf("expected public session.created first, got %s/%s", events[0].Type, events[0].Visibility)
	}
	if events[1].Type != event.TypeRolesAssigned || events[1].Visibility != event.VisibilityAdmin {
		t.Errorf("expected admin roles_assigned second, got %s/%s", events[1].Type, events[1].Visibility)
	}

	var created event.SessionCreatedPayload
	if err := json.Unmarshal(events[0].PayloadJSON, &created); err != nil {
		t.Fatalf("unmarshal created payload: %v", err)
	}
	if len(created.Roster) != 5 {
		t.Errorf("expected roster of 5, got %d", len(created.Roster))
	}
}

func TestCreateRejectsSmallRoster(t *testing.T) {
	c := newController(t, memory.New(), policyOracle())
	_, err := c.Create(context.Background(), CreateParams{PlayerNames: []string{"Ada", "Brice"}})
	if !errors.Is(err, apperrors.New(apperrors.CodeSessionPlayerCountTooLow, "")) {
		t.Fatalf("expected player count error, got %v", err)
	}
}

func TestFullGameRunsToTermination(t *testing.T) {
	store := memory.New()
	publisher := &recordingPublisher{}
	c := newController(t, store, policyOracle(), WithPublisher(publisher))
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 42})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Run(ctx, sessionID); err != nil {
		t.Fatalf("run: %v", err)
	}

	status, err := c.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.StatusEnded {
		t.Fatalf("expected ENDED, got %s", status.Status)
	}
	if status.Winner != domain.WinnerTown && status.Winner != domain.WinnerMafia {
		t.Fatalf("expected a winner, got %q", status.Winner)
	}

	events := listAll(t, store, sessionID)
	if err := storage.VerifyChain(events, ""); err != nil {
		t.Errorf("journal chain broken: %v", err)
	}

	// Exactly one terminal event, and nothing after it.
	endedAt := -1
	for i, evt := range events {
		if evt.Type == event.TypeSessionEnded {
			if endedAt != -1 {
				t.Fatal("session ended twice")
			}
			endedAt = i
		}
	}
	if endedAt != len(events)-1 {
		t.Errorf("expected session.ended to be the final event, got index %d of %d", endedAt, len(events))
	}

	// The publisher saw every event in journal order.
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != len(events) {
		t.Fatalf("publisher saw %d events, journal has %d", len(publisher.events), len(events))
	}
	for i, evt := range publisher.events {
		if evt.Seq != events[i].Seq {
			t.Fatalf("publish order diverged at %d", i)
		}
	}
}

func TestEliminatedPlayersStayConsistentWithJournal(t *testing.T) {
	store := memory.New()
	c := newController(t, store, policyOracle())
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Run(ctx, sessionID); err != nil {
		t.Fatalf("run: %v", err)
	}

	eliminated := make(map[string]int)
	for _, evt := range listAll(t, store, sessionID) {
		if evt.Type != event.TypePlayerEliminated {
			continue
		}
		var payload event.PlayerEliminatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			t.Fatalf("unmarshal elimination: %v", err)
		}
		eliminated[payload.PlayerID]++
		if len(payload.Roles) == 0 {
			t.Errorf("elimination of %s revealed no roles", payload.PlayerID)
		}
	}
	for playerID, count := range eliminated {
		if count != 1 {
			t.Errorf("player %s eliminated %d times", playerID, count)
		}
	}
}

func TestPauseLandsBetweenPhases(t *testing.T) {
	store := memory.New()
	c := newController(t, store, policyOracle())
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 9})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.RequestPause(ctx, sessionID); err != nil {
		t.Fatalf("request pause: %v", err)
	}
	if err := c.Step(ctx, sessionID); err != nil {
		t.Fatalf("step: %v", err)
	}

	status, err := c.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.StatusPaused {
		t.Fatalf("expected PAUSED, got %s", status.Status)
	}
	if _, err := store.GetLatestSnapshot(ctx, sessionID); err != nil {
		t.Errorf("expected pause checkpoint snapshot: %v", err)
	}

	if err := c.Step(ctx, sessionID); err == nil {
		t.Error("expected step on paused session to fail")
	}
	if err := c.Resume(ctx, sessionID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := c.Step(ctx, sessionID); err != nil {
		t.Fatalf("step after resume: %v", err)
	}
}

func TestRecoveryAcrossControllers(t *testing.T) {
	store := memory.New()
	first := newController(t, store, policyOracle())
	ctx := context.Background()

	sessionID, err := first.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 11})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := first.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Advance through the first night and morning.
	for i := 0; i < 2; i++ {
		if err := first.Step(ctx, sessionID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	before, err := first.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	// A fresh controller over the same store recovers and finishes the game.
	second := newController(t, store, policyOracle())
	after, err := second.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("recovered status: %v", err)
	}
	if after.Phase != before.Phase || after.Day != before.Day || after.Round != before.Round || after.LastSeq != before.LastSeq {
		t.Fatalf("recovered position diverged: %+v != %+v", after, before)
	}

	if err := second.Run(ctx, sessionID); err != nil {
		t.Fatalf("run after recovery: %v", err)
	}
	final, err := second.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("final status: %v", err)
	}
	if final.Status != domain.StatusEnded {
		t.Errorf("expected recovered session to end, got %s", final.Status)
	}
	if err := storage.VerifyChain(listAll(t, store, sessionID), ""); err != nil {
		t.Errorf("journal chain broken after recovery: %v", err)
	}
}

func TestStepAfterEndFails(t *testing.T) {
	store := memory.New()
	c := newController(t, store, policyOracle())
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Run(ctx, sessionID); err != nil {
		t.Fatalf("run: %v", err)
	}

	err = c.Step(ctx, sessionID)
	if !errors.Is(err, apperrors.New(apperrors.CodeSessionAlreadyEnded, "")) {
		t.Fatalf("expected already ended error, got %v", err)
	}
}

func TestStatusForUnknownSession(t *testing.T) {
	c := newController(t, memory.New(), policyOracle())
	_, err := c.Status(context.Background(), "missing")
	if !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// seedCraftedNight writes a journal for a session already in the first night
// with the given role assignments and prior eliminations, so a recovering
// controller picks it up with a known board.
func seedCraftedNight(t *testing.T, store storage.Store, sessionID string, roles map[string][]domain.Role, dead []string) {
	t.Helper()
	ctx := context.Background()
	emitter := event.NewEmitter(store)
	mustEmit := func(_ event.Event, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed journal: %v", err)
		}
	}

	roster := []event.RosterEntry{
		{PlayerID: "p1", Name: "Ada"},
		{PlayerID: "p2", Name: "Brice"},
		{PlayerID: "p3", Name: "Cleo"},
		{PlayerID: "p4", Name: "Dmitri"},
		{PlayerID: "p5", Name: "Eve"},
	}
	assignments := make([]event.RoleAssignment, 0, len(roster))
	for _, entry := range roster {
		assignments = append(assignments, event.RoleAssignment{PlayerID: entry.PlayerID, Roles: roles[entry.PlayerID]})
	}

	mustEmit(emitter.EmitPublic(ctx, sessionID, event.TypeSessionCreated, event.SessionCreatedPayload{
		PlayerCount: len(roster),
		Roster:      roster,
	}))
	mustEmit(emitter.EmitRolesAssigned(ctx, sessionID, event.RolesAssignedPayload{Assignments: assignments}))
	mustEmit(emitter.EmitPublic(ctx, sessionID, event.TypeSessionStarted, event.SessionStatusPayload{
		FromStatus: domain.StatusCreated,
		ToStatus:   domain.StatusRunning,
	}))
	mustEmit(emitter.EmitPhaseEntered(ctx, sessionID, event.PhaseEnteredPayload{
		Phase: domain.PhaseNightActions, Day: 0, Round: 1,
	}))
	for _, playerID := range dead {
		mustEmit(emitter.EmitPlayerEliminated(ctx, sessionID, event.PlayerEliminatedPayload{
			PlayerID: playerID,
			Cause:    event.CauseDayVote,
			Roles:    roles[playerID],
		}))
	}
}

func TestMorningStopsAtFirstDecisiveDeath(t *testing.T) {
	// Three alive: the mafia, the vigilante, one villager. The mafia kills the
	// villager, which reaches parity; the vigilante's shot at the mafia lands
	// the same night. The kill resolves first, so mafia wins and the shot's
	// death is never revealed.
	store := memory.New()
	sessionID := "parity-night"
	seedCraftedNight(t, store, sessionID, map[string][]domain.Role{
		"p1": {domain.RoleMafia},
		"p2": {domain.RoleVigilante},
		"p3": {domain.RoleVillager},
		"p4": {domain.RoleVillager},
		"p5": {domain.RoleVillager},
	}, []string{"p4", "p5"})

	crossfire := oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Decision, error) {
		switch req.Capacity {
		case oracle.CapacityMafiaChat:
			return oracle.Decision{Statement: "take the quiet one"}, nil
		case oracle.CapacityKillProposal:
			return oracle.Decision{TargetID: "p3"}, nil
		case oracle.CapacityShoot:
			return oracle.Decision{TargetID: "p1"}, nil
		default:
			return oracle.Decision{None: true}, nil
		}
	})

	c := newController(t, store, crossfire)
	ctx := context.Background()
	if err := c.Step(ctx, sessionID); err != nil {
		t.Fatalf("night step: %v", err)
	}
	if err := c.Step(ctx, sessionID); err != nil {
		t.Fatalf("morning step: %v", err)
	}

	status, err := c.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != domain.StatusEnded {
		t.Fatalf("expected ENDED after decisive kill, got %s", status.Status)
	}
	if status.Winner != domain.WinnerMafia {
		t.Fatalf("expected mafia win at parity, got %q", status.Winner)
	}

	for _, evt := range listAll(t, store, sessionID) {
		if evt.Type != event.TypePlayerEliminated {
			continue
		}
		var payload event.PlayerEliminatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			t.Fatalf("unmarshal elimination: %v", err)
		}
		if payload.PlayerID == "p1" {
			t.Error("mafia death was revealed after the session had been decided")
		}
	}
}

func TestVoteEventsCarrySessionRound(t *testing.T) {
	// Everyone abstains, so the session survives into a second day; the
	// second day's vote events must carry round 2.
	passive := oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Decision, error) {
		if req.AllowNone {
			return oracle.Decision{None: true}, nil
		}
		if len(req.Candidates) > 0 {
			return oracle.Decision{TargetID: req.Candidates[0].ID}, nil
		}
		return oracle.Decision{}, nil
	})

	store := memory.New()
	c := newController(t, store, passive)
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 21})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Two full day cycles: the ninth step completes the second day's voting.
	for i := 0; i < 9; i++ {
		if err := c.Step(ctx, sessionID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	rounds := []int{}
	for _, evt := range listAll(t, store, sessionID) {
		if evt.Type != event.TypeVoteResult {
			continue
		}
		var payload event.VoteResultPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			t.Fatalf("unmarshal vote result: %v", err)
		}
		rounds = append(rounds, payload.Round)
	}
	if len(rounds) != 2 || rounds[0] != 1 || rounds[1] != 2 {
		t.Fatalf("expected vote results for rounds [1 2], got %v", rounds)
	}
}

func TestRoundIntervalThrottlesBoundarySnapshots(t *testing.T) {
	store := memory.New()
	manager, err := snapshot.NewManager(store, snapshot.WithRoundInterval(100))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	c := newController(t, store, policyOracle(), WithSnapshotManager(manager))
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 13})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := store.GetLatestSnapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("expected first boundary snapshot: %v", err)
	}

	// Later boundaries within the interval add no snapshots.
	for i := 0; i < 2; i++ {
		if err := c.Step(ctx, sessionID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	latest, err := store.GetLatestSnapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("get latest snapshot: %v", err)
	}
	if latest.Seq != first.Seq {
		t.Fatalf("expected boundary snapshots throttled, advanced %d -> %d", first.Seq, latest.Seq)
	}

	// A pause checkpoint bypasses the interval.
	if err := c.RequestPause(ctx, sessionID); err != nil {
		t.Fatalf("request pause: %v", err)
	}
	if err := c.Step(ctx, sessionID); err != nil {
		t.Fatalf("pausing step: %v", err)
	}
	latest, err = store.GetLatestSnapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("get latest snapshot: %v", err)
	}
	if latest.Seq <= first.Seq {
		t.Error("expected pause checkpoint to capture regardless of interval")
	}
}

func TestStalemateDayPassesWithoutElimination(t *testing.T) {
	// Mafia never agrees and everyone abstains: the session keeps cycling
	// without deaths until cancelled.
	passive := oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Decision, error) {
		if req.AllowNone {
			return oracle.Decision{None: true}, nil
		}
		if len(req.Candidates) > 0 {
			return oracle.Decision{TargetID: req.Candidates[0].ID}, nil
		}
		return oracle.Decision{}, nil
	})

	store := memory.New()
	c := newController(t, store, passive)
	ctx := context.Background()

	sessionID, err := c.Create(ctx, CreateParams{PlayerNames: fiveNames(), Seed: 8})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Start(ctx, sessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// One full cycle: night, morning, discussion, voting, resolution.
	for i := 0; i < 5; i++ {
		if err := c.Step(ctx, sessionID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	status, err := c.Status(ctx, sessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.AliveCount != 5 {
		t.Errorf("expected all 5 alive, got %d", status.AliveCount)
	}
	if status.Phase != domain.PhaseNightActions || status.Round != 2 {
		t.Errorf("expected second night, got %s round %d", status.Phase, status.Round)
	}
	if err := c.Cancel(ctx, sessionID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}
