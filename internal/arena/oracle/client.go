package oracle

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxTries = 3
)

// Client wraps an oracle with the resilience the engine requires: a per-call
// timeout, bounded retries with exponential backoff, rate limiting across
// calls, and validation of every decision against the request's legal move
// set. When the oracle stays unusable past the retry budget, the client
// substitutes the deterministic fallback so the session keeps advancing.
type Client struct {
	inner    Oracle
	timeout  time.Duration
	maxTries uint
	limiter  *rate.Limiter
}

// ClientOption configures a client.
type ClientOption func(*Client)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxTries sets the total attempt budget per solicitation.
func WithMaxTries(n uint) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithRateLimit caps solicitations per second across all sessions served by
// this client.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewClient wraps the inner oracle.
func NewClient(inner Oracle, opts ...ClientOption) *Client {
	c := &Client{
		inner:    inner,
		timeout:  defaultTimeout,
		maxTries: defaultMaxTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decide solicits a decision, retrying transient failures and invalid
// decisions. The returned decision is always legal for the request; it is
// marked degraded when the fallback had to stand in.
func (c *Client) Decide(ctx context.Context, req Request) (Decision, error) {
	ctx, span := otel.Tracer("nightfall/oracle").Start(ctx, "oracle.decide",
		trace.WithAttributes(
			attribute.String("capacity", string(req.Capacity)),
			attribute.String("player_id", req.Player.ID),
		))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Decision{}, err
		}
	}

	operation := func() (Decision, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		decision, err := c.inner.Decide(callCtx, req)
		if err != nil {
			return Decision{}, err
		}
		if err := Validate(req, decision); err != nil {
			return Decision{}, err
		}
		return decision, nil
	}

	decision, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		log.Printf("oracle unavailable for player %s (%s), using fallback: %v", req.Player.ID, req.Capacity, err)
		return Fallback(req), nil
	}
	return decision, nil
}

// Validate checks a decision against the request's legal move set.
func Validate(req Request, decision Decision) error {
	if decision.None {
		if !req.AllowNone {
			return apperrors.WithMetadata(apperrors.CodeOracleDecisionInvalid,
				"abstention not permitted for this decision",
				map[string]string{"capacity": string(req.Capacity)})
		}
		return nil
	}
	if len(req.Candidates) == 0 {
		return nil
	}
	for _, candidate := range req.Candidates {
		if candidate.ID == decision.TargetID {
			return nil
		}
	}
	return apperrors.WithMetadata(apperrors.CodeOracleDecisionInvalid,
		"decision target is not a legal candidate",
		map[string]string{
			"capacity":  string(req.Capacity),
			"target_id": decision.TargetID,
		})
}
