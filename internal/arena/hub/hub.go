// Package hub fans session events out to subscribers with per-subscription
// visibility filtering. Each session keeps a bounded ring of recent events so
// reconnecting subscribers can be caught up exactly; anything older has to be
// re-read from the journal. All mutable hub state is owned by a single run
// goroutine fed through channels.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/louisbranch/nightfall/internal/arena/domain"
	"github.com/louisbranch/nightfall/internal/arena/event"
	apperrors "github.com/louisbranch/nightfall/internal/platform/errors"
	"github.com/louisbranch/nightfall/internal/platform/id"
)

const (
	defaultRingCapacity      = 1000
	defaultSendBuffer        = 64
	defaultHeartbeatInterval = 15 * time.Second
)

// Grant is the visibility a subscriber was admitted with. Grants are sets,
// not a linear order: mafia and role views are incomparable.
type Grant string

const (
	// GrantPublic receives PUBLIC events only.
	GrantPublic Grant = "PUBLIC"
	// GrantMafia receives PUBLIC and MAFIA_PRIVATE events.
	GrantMafia Grant = "MAFIA"
	// GrantRole receives PUBLIC and ROLE_PRIVATE events.
	GrantRole Grant = "ROLE"
	// GrantAdmin receives everything.
	GrantAdmin Grant = "ADMIN"
)

// Allows reports whether the grant admits events with the given visibility.
func (g Grant) Allows(v event.Visibility) bool {
	switch g {
	case GrantAdmin:
		return true
	case GrantMafia:
		return v == event.VisibilityPublic || v == event.VisibilityMafiaPrivate
	case GrantRole:
		return v == event.VisibilityPublic || v == event.VisibilityRolePrivate
	case GrantPublic:
		return v == event.VisibilityPublic
	}
	return false
}

// IsValid reports whether the grant is known.
func (g Grant) IsValid() bool {
	switch g {
	case GrantPublic, GrantMafia, GrantRole, GrantAdmin:
		return true
	}
	return false
}

// Heartbeat is the idle-stream summary frame.
type Heartbeat struct {
	SessionID string
	Phase     domain.Phase
	Day       int
	Round     int
	Alive     int
	LastSeq   uint64
}

// Frame is one unit of subscriber delivery: exactly one of Event, Heartbeat,
// or Err is set. An Err frame is fatal; the channel closes after it.
type Frame struct {
	Event     *event.Event
	Heartbeat *Heartbeat
	Err       error
}

// Subscription is one subscriber's attachment to a session stream.
type Subscription struct {
	ID string
	// LastSeq is the session's latest sequence at subscribe time.
	LastSeq uint64
	C       <-chan Frame

	hub       *Hub
	sessionID string
	once      sync.Once
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.sessionID, s.ID)
	})
}

type subscriber struct {
	id    string
	grant Grant
	ch    chan Frame
}

// room is one session's fan-out state: the ring of recent events, the live
// subscribers, and the summary used for heartbeats.
type room struct {
	ring        *ring
	subscribers map[string]*subscriber
	lastSeq     uint64
	idle        bool

	phase domain.Phase
	day   int
	round int
	alive int
}

// Hub distributes session events. Create with New, stop with Stop.
type Hub struct {
	ringCapacity int
	sendBuffer   int
	heartbeat    time.Duration

	publishCh     chan event.Event
	subscribeCh   chan subscribeRequest
	unsubscribeCh chan unsubscribeRequest
	failCh        chan failRequest
	stopCh        chan struct{}
	doneCh        chan struct{}
	stopOnce      sync.Once
}

type subscribeRequest struct {
	sessionID string
	grant     Grant
	lastSeq   uint64
	reply     chan subscribeReply
}

type subscribeReply struct {
	sub *Subscription
	err error
}

type unsubscribeRequest struct {
	sessionID string
	subID     string
}

type failRequest struct {
	sessionID string
	err       error
}

// Option configures a hub.
type Option func(*Hub)

// WithRingCapacity sets the per-session replay window.
func WithRingCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.ringCapacity = n
		}
	}
}

// WithSendBuffer sets the per-subscriber channel depth. A subscriber that
// falls this far behind is pruned.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithHeartbeatInterval sets the idle summary cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// New creates a hub and starts its run loop.
func New(opts ...Option) *Hub {
	h := &Hub{
		ringCapacity:  defaultRingCapacity,
		sendBuffer:    defaultSendBuffer,
		heartbeat:     defaultHeartbeatInterval,
		publishCh:     make(chan event.Event, 256),
		subscribeCh:   make(chan subscribeRequest),
		unsubscribeCh: make(chan unsubscribeRequest, 16),
		failCh:        make(chan failRequest),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

// Stop shuts the hub down and closes every subscriber channel. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.doneCh
}

// Publish hands an appended event to the hub. Never blocks the caller past
// the publish queue; ordering per session is preserved by the single caller
// per session (the controller).
func (h *Hub) Publish(evt event.Event) {
	select {
	case h.publishCh <- evt:
	case <-h.stopCh:
	}
}

// Fail delivers a fatal error frame to every subscriber of the session and
// closes their streams. Used for session-fatal integrity failures.
func (h *Hub) Fail(sessionID string, err error) {
	select {
	case h.failCh <- failRequest{sessionID: sessionID, err: err}:
	case <-h.stopCh:
	}
}

// Subscribe attaches to a session's stream with the given grant. A non-zero
// lastSeq requests catch-up: the subscriber receives the exact missed events
// after lastSeq when they are still inside the ring window, and
// SUBSCRIPTION_OUT_OF_RANGE when the window has moved past them.
func (h *Hub) Subscribe(ctx context.Context, sessionID string, grant Grant, lastSeq uint64) (*Subscription, error) {
	if !grant.IsValid() {
		return nil, apperrors.WithMetadata(apperrors.CodeSubscriptionGrantDenied,
			"unknown visibility grant", map[string]string{"grant": string(grant)})
	}
	req := subscribeRequest{
		sessionID: sessionID,
		grant:     grant,
		lastSeq:   lastSeq,
		reply:     make(chan subscribeReply, 1),
	}
	select {
	case h.subscribeCh <- req:
	case <-h.stopCh:
		return nil, apperrors.New(apperrors.CodeSubscriptionSessionGone, "hub stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-req.reply:
		return reply.sub, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) unsubscribe(sessionID, subID string) {
	select {
	case h.unsubscribeCh <- unsubscribeRequest{sessionID: sessionID, subID: subID}:
	case <-h.stopCh:
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)

	rooms := make(map[string]*room)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			for _, r := range rooms {
				for _, sub := range r.subscribers {
					close(sub.ch)
				}
			}
			return

		case evt := <-h.publishCh:
			r := rooms[evt.SessionID]
			if r == nil {
				r = h.newRoom()
				rooms[evt.SessionID] = r
			}
			h.ingest(r, evt)

		case req := <-h.subscribeCh:
			r := rooms[req.sessionID]
			if r == nil {
				r = h.newRoom()
				rooms[req.sessionID] = r
			}
			req.reply <- h.attach(r, req)

		case req := <-h.unsubscribeCh:
			if r := rooms[req.sessionID]; r != nil {
				if sub, ok := r.subscribers[req.subID]; ok {
					delete(r.subscribers, req.subID)
					close(sub.ch)
				}
			}

		case req := <-h.failCh:
			if r := rooms[req.sessionID]; r != nil {
				for subID, sub := range r.subscribers {
					h.send(sub, Frame{Err: req.err})
					close(sub.ch)
					delete(r.subscribers, subID)
				}
			}

		case <-ticker.C:
			for sessionID, r := range rooms {
				if !r.idle {
					r.idle = true
					continue
				}
				heartbeat := Heartbeat{
					SessionID: sessionID,
					Phase:     r.phase,
					Day:       r.day,
					Round:     r.round,
					Alive:     r.alive,
					LastSeq:   r.lastSeq,
				}
				for subID, sub := range r.subscribers {
					if !h.send(sub, Frame{Heartbeat: &heartbeat}) {
						delete(r.subscribers, subID)
					}
				}
			}
		}
	}
}

func (h *Hub) newRoom() *room {
	return &room{
		ring:        newRing(h.ringCapacity),
		subscribers: make(map[string]*subscriber),
	}
}

// ingest buffers the event, updates the heartbeat summary, and fans it out.
func (h *Hub) ingest(r *room, evt event.Event) {
	r.ring.push(evt)
	r.lastSeq = evt.Seq
	r.idle = false
	h.track(r, evt)

	for subID, sub := range r.subscribers {
		if !sub.grant.Allows(evt.Visibility) {
			continue
		}
		if !h.send(sub, Frame{Event: &evt}) {
			// Slow consumer: drop the subscription rather than stall or skip.
			close(sub.ch)
			delete(r.subscribers, subID)
		}
	}
}

// track maintains the phase/day/alive summary from the event stream.
func (h *Hub) track(r *room, evt event.Event) {
	switch evt.Type {
	case event.TypeSessionCreated:
		var payload event.SessionCreatedPayload
		if json.Unmarshal(evt.PayloadJSON, &payload) == nil {
			r.alive = payload.PlayerCount
		}
	case event.TypePhaseEntered:
		var payload event.PhaseEnteredPayload
		if json.Unmarshal(evt.PayloadJSON, &payload) == nil {
			r.phase = payload.Phase
			r.day = payload.Day
			r.round = payload.Round
		}
	case event.TypePlayerEliminated:
		if r.alive > 0 {
			r.alive--
		}
	case event.TypeSessionEnded:
		r.phase = domain.PhaseEnd
	}
}

func (h *Hub) attach(r *room, req subscribeRequest) subscribeReply {
	var missed []event.Event
	if req.lastSeq > 0 && req.lastSeq < r.lastSeq {
		oldest := r.ring.oldestSeq()
		if oldest == 0 || req.lastSeq < oldest-1 {
			return subscribeReply{err: apperrors.WithMetadata(
				apperrors.CodeSubscriptionOutOfRange,
				"requested sequence no longer buffered",
				map[string]string{"session_id": req.sessionID},
			)}
		}
		missed = r.ring.since(req.lastSeq)
	}

	filtered := make([]event.Event, 0, len(missed))
	for _, evt := range missed {
		if req.grant.Allows(evt.Visibility) {
			filtered = append(filtered, evt)
		}
	}

	ch := make(chan Frame, h.sendBuffer+len(filtered))
	for i := range filtered {
		ch <- Frame{Event: &filtered[i]}
	}

	sub := &subscriber{id: id.MustNewID(), grant: req.grant, ch: ch}
	r.subscribers[sub.id] = sub
	return subscribeReply{sub: &Subscription{
		ID:        sub.id,
		LastSeq:   r.lastSeq,
		C:         ch,
		hub:       h,
		sessionID: req.sessionID,
	}}
}

// send delivers without blocking; reports false when the subscriber's buffer
// is full.
func (h *Hub) send(sub *subscriber, frame Frame) bool {
	select {
	case sub.ch <- frame:
		return true
	default:
		return false
	}
}
