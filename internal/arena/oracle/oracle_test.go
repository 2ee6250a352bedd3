package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

func voteRequest() Request {
	return Request{
		SessionID: "s1",
		Capacity:  CapacityVote,
		Player:    domain.Player{ID: "p1", Name: "Ada"},
		Phase:     domain.PhaseDayVoting,
		Day:       1,
		Candidates: []Candidate{
			{ID: "p2", Name: "Brice"},
			{ID: "p3", Name: "Cleo"},
		},
		AllowNone: true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Request)
		decision Decision
		wantErr  bool
	}{
		{name: "legal target", decision: Decision{TargetID: "p3"}},
		{name: "abstain allowed", decision: Decision{None: true}},
		{
			name:     "abstain forbidden",
			mutate:   func(r *Request) { r.AllowNone = false },
			decision: Decision{None: true},
			wantErr:  true,
		},
		{name: "illegal target", decision: Decision{TargetID: "p99"}, wantErr: true},
		{
			name:     "free-form statement",
			mutate:   func(r *Request) { r.Candidates = nil },
			decision: Decision{Statement: "I trust Cleo"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := voteRequest()
			if tc.mutate != nil {
				tc.mutate(&req)
			}
			err := Validate(req, tc.decision)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr && !errors.Is(err, apperrors.New(apperrors.CodeOracleDecisionInvalid, "")) {
				t.Fatalf("expected decision invalid error, got %v", err)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	req := voteRequest()
	decision := Fallback(req)
	if !decision.None || !decision.Degraded {
		t.Errorf("expected degraded abstention, got %+v", decision)
	}

	req.AllowNone = false
	decision = Fallback(req)
	if decision.TargetID != "p2" || !decision.Degraded {
		t.Errorf("expected degraded first-candidate target, got %+v", decision)
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	calls := 0
	flaky := Func(func(ctx context.Context, req Request) (Decision, error) {
		calls++
		if calls < 3 {
			return Decision{}, errors.New("transient")
		}
		return Decision{TargetID: "p2"}, nil
	})

	client := NewClient(flaky, WithMaxTries(3), WithTimeout(time.Second))
	decision, err := client.Decide(context.Background(), voteRequest())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.TargetID != "p2" || decision.Degraded {
		t.Errorf("expected clean decision after retries, got %+v", decision)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestClientFallsBackAfterRetryBudget(t *testing.T) {
	broken := Func(func(ctx context.Context, req Request) (Decision, error) {
		return Decision{}, errors.New("model offline")
	})

	client := NewClient(broken, WithMaxTries(2), WithTimeout(time.Second))
	decision, err := client.Decide(context.Background(), voteRequest())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !decision.Degraded || !decision.None {
		t.Errorf("expected degraded abstention, got %+v", decision)
	}
}

func TestClientRejectsIllegalDecisionsViaRetry(t *testing.T) {
	hallucinating := Func(func(ctx context.Context, req Request) (Decision, error) {
		return Decision{TargetID: "ghost"}, nil
	})

	client := NewClient(hallucinating, WithMaxTries(2), WithTimeout(time.Second))
	decision, err := client.Decide(context.Background(), voteRequest())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !decision.Degraded {
		t.Errorf("expected degraded decision, got %+v", decision)
	}
}

func TestClientHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Func(func(ctx context.Context, req Request) (Decision, error) {
		return Decision{None: true}, nil
	}), WithRateLimit(0.001, 1))

	// Burn the single burst token, then the cancelled wait must surface.
	_, _ = client.Decide(context.Background(), voteRequest())
	_, err := client.Decide(ctx, voteRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestScriptedReplaysInOrder(t *testing.T) {
	scripted := NewScripted()
	scripted.Queue("p1",
		Decision{Statement: "first"},
		Decision{Statement: "second"},
	)

	req := voteRequest()
	for _, want := range []string{"first", "second"} {
		decision, err := scripted.Decide(context.Background(), req)
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if decision.Statement != want {
			t.Errorf("expected %q, got %q", want, decision.Statement)
		}
	}

	decision, err := scripted.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !decision.Degraded {
		t.Errorf("expected exhausted script to degrade, got %+v", decision)
	}
}

func TestParseDecisionStripsCodeFences(t *testing.T) {
	decision, err := parseDecision("```json\n{\"reasoning\":\"r\",\"target_id\":\"p2\"}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if decision.TargetID != "p2" || decision.Reasoning != "r" {
		t.Errorf("unexpected decision: %+v", decision)
	}

	_, err = parseDecision("I shall vote for p2!")
	if !errors.Is(err, apperrors.New(apperrors.CodeOracleDecisionInvalid, "")) {
		t.Fatalf("expected invalid decision error, got %v", err)
	}
}
